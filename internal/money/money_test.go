package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	amount := decimal.RequireFromString("1234.5")
	assert.Equal(t, "$1,234.50", Format(amount, "USD"))
}

func TestFormat_UnknownCurrency(t *testing.T) {
	amount := decimal.RequireFromString("10")
	assert.Equal(t, "10.00 ZZZ", Format(amount, "ZZZ"))
}

func TestRound(t *testing.T) {
	amount := decimal.RequireFromString("10.005")
	assert.True(t, Round(amount, "USD").Equal(decimal.RequireFromString("10.01")))
}

func TestMinorUnit(t *testing.T) {
	assert.True(t, MinorUnit("USD").Equal(decimal.RequireFromString("0.01")))
	assert.True(t, MinorUnit("JPY").Equal(decimal.RequireFromString("1")))
}
