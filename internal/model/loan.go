package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentFrequency is how often a loan payment is due.
type PaymentFrequency string

const (
	PayMonthly  PaymentFrequency = "monthly"
	PayBiweekly PaymentFrequency = "biweekly"
	PayWeekly   PaymentFrequency = "weekly"
)

// PaymentsPerYear returns the number of payments per year for the frequency.
func (f PaymentFrequency) PaymentsPerYear() int {
	switch f {
	case PayBiweekly:
		return 26
	case PayWeekly:
		return 52
	default:
		return 12
	}
}

// ExtraPayment is a one-time additional principal payment.
type ExtraPayment struct {
	AfterPeriod int // applied immediately after this period number (1-based)
	Amount      decimal.Decimal
}

// Loan defines an amortizing loan. The schedule is derived, never stored.
type Loan struct {
	Name          string
	Principal     decimal.Decimal
	AnnualRate    decimal.Decimal // 0.05 = 5%
	TermPeriods   int
	Frequency     PaymentFrequency
	StartDate     time.Time
	Currency      string
	ExtraPayments []ExtraPayment

	// PaymentAccountName and LoanAccountName tie the loan's cash flows to
	// ledger accounts for projection; empty names leave the loan unlinked.
	PaymentAccountName string
	LoanAccountName    string
}

// PeriodicRate returns the per-period interest rate.
func (l Loan) PeriodicRate() decimal.Decimal {
	return l.AnnualRate.Div(decimal.NewFromInt(int64(l.Frequency.PaymentsPerYear())))
}
