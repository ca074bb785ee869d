// Package money formats decimal amounts using currency metadata. All
// arithmetic stays in shopspring/decimal; go-money supplies the fraction
// digits, symbol, and grouping for display.
package money

import (
	money "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Fraction returns the number of minor-unit digits for a currency code
// (2 for USD/EUR, 0 for JPY). Unknown codes default to 2.
func Fraction(code string) int {
	if c := money.GetCurrency(code); c != nil {
		return c.Fraction
	}
	return 2
}

// Round rounds an amount to the currency's minor unit.
func Round(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(int32(Fraction(code)))
}

// MinorUnit returns one minor unit of the currency (0.01 for USD).
func MinorUnit(code string) decimal.Decimal {
	return decimal.New(1, -int32(Fraction(code)))
}

// Format renders an amount with the currency's symbol and grouping,
// e.g. Format(dec("1234.5"), "USD") == "$1,234.50".
func Format(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), code).Display()
}
