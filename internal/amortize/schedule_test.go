package amortize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLoan() model.Loan {
	return model.Loan{
		Name:        "car",
		Principal:   dec("10000"),
		AnnualRate:  dec("0.05"),
		TermPeriods: 12,
		Frequency:   model.PayMonthly,
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Currency:    "USD",
	}
}

func TestSchedule_StandardLoan(t *testing.T) {
	schedule, err := Schedule(testLoan())
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	pay, err := Payment(testLoan())
	require.NoError(t, err)
	assert.True(t, pay.Equal(dec("856.07")), "payment: %s", pay)

	// Closure: the final balance is exactly zero and principal portions sum
	// to the original principal.
	assert.True(t, schedule[11].Remaining.IsZero(), "final remaining: %s", schedule[11].Remaining)

	totalPrincipal := decimal.Zero
	totalInterest := decimal.Zero
	for _, p := range schedule {
		assert.True(t, p.Payment.Equal(p.Interest.Add(p.Principal)),
			"period %d: payment != interest + principal", p.Number)
		totalPrincipal = totalPrincipal.Add(p.Principal)
		totalInterest = totalInterest.Add(p.Interest)
	}
	assert.True(t, totalPrincipal.Equal(dec("10000")), "total principal: %s", totalPrincipal)
	assert.True(t, totalInterest.GreaterThan(dec("270")) && totalInterest.LessThan(dec("276")),
		"total interest: %s", totalInterest)

	// Interest declines as the balance is paid down.
	assert.True(t, schedule[0].Interest.GreaterThan(schedule[11].Interest))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), schedule[0].Date)
}

func TestSchedule_ZeroRate(t *testing.T) {
	l := testLoan()
	l.AnnualRate = decimal.Zero

	schedule, err := Schedule(l)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	assert.True(t, schedule[0].Payment.Equal(dec("833.33")))
	assert.True(t, schedule[0].Interest.IsZero())
	assert.True(t, schedule[11].Remaining.IsZero())

	totalPrincipal := decimal.Zero
	for _, p := range schedule {
		totalPrincipal = totalPrincipal.Add(p.Principal)
	}
	assert.True(t, totalPrincipal.Equal(dec("10000")))
}

func TestSchedule_InvalidParameters(t *testing.T) {
	var ilpe InvalidLoanParametersError

	l := testLoan()
	l.Principal = dec("-1")
	_, err := Schedule(l)
	require.ErrorAs(t, err, &ilpe)

	l = testLoan()
	l.TermPeriods = 0
	_, err = Schedule(l)
	require.ErrorAs(t, err, &ilpe)

	l = testLoan()
	l.AnnualRate = dec("1.5")
	_, err = Schedule(l)
	require.ErrorAs(t, err, &ilpe)

	l = testLoan()
	l.AnnualRate = dec("-0.01")
	_, err = Schedule(l)
	require.ErrorAs(t, err, &ilpe)
}

func TestPayoff(t *testing.T) {
	l := testLoan()

	// 2025-06-15: boundary is the June 1 payment (period 5).
	principal, accrued, err := Payoff(l, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	schedule, err := Schedule(l)
	require.NoError(t, err)
	assert.True(t, principal.Equal(schedule[4].Remaining), "principal %s != period-5 remaining %s",
		principal, schedule[4].Remaining)

	// 14 days of simple daily interest on the remaining principal.
	want := principal.Mul(dec("0.05")).Div(dec("365")).Mul(dec("14")).Round(2)
	assert.True(t, accrued.Equal(want), "accrued %s != %s", accrued, want)
}

func TestPayoff_BeforeStart(t *testing.T) {
	_, _, err := Payoff(testLoan(), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	var ide InvalidDateError
	require.ErrorAs(t, err, &ide)
}

func TestSimulateExtraPayment_ShortenTerm(t *testing.T) {
	schedule, err := SimulateExtraPayment(testLoan(), dec("5000"), 1, ShortenTerm)
	require.NoError(t, err)

	require.Less(t, len(schedule), 12, "term must shorten")
	assert.True(t, schedule[len(schedule)-1].Remaining.IsZero())

	// The periodic payment is unchanged (final period aside).
	base, err := Schedule(testLoan())
	require.NoError(t, err)
	assert.True(t, schedule[1].Interest.Add(schedule[1].Principal).
		Sub(base[1].Payment).Abs().LessThanOrEqual(dec("0.01")))
}

func TestSimulateExtraPayment_ReducePayment(t *testing.T) {
	schedule, err := SimulateExtraPayment(testLoan(), dec("5000"), 1, ReducePayment)
	require.NoError(t, err)

	require.Len(t, schedule, 12, "term must hold")
	assert.True(t, schedule[11].Remaining.IsZero())

	base, err := Schedule(testLoan())
	require.NoError(t, err)
	assert.True(t, schedule[2].Payment.LessThan(base[2].Payment),
		"payment must drop after the extra payment")
}

func TestSimulateExtraPayment_ModeRequired(t *testing.T) {
	_, err := SimulateExtraPayment(testLoan(), dec("1000"), 1, ExtraMode("guess"))
	var ilpe InvalidLoanParametersError
	require.ErrorAs(t, err, &ilpe)
}

func TestCompareScenarios(t *testing.T) {
	base := testLoan()

	cheaper := testLoan()
	cheaper.Name = "refinanced"
	cheaper.AnnualRate = dec("0.03")

	longer := testLoan()
	longer.Name = "stretched"
	longer.TermPeriods = 24

	results, err := CompareScenarios(base, []model.Loan{cheaper, longer})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "car", results[0].Name)
	assert.True(t, results[1].TotalInterest.LessThan(results[0].TotalInterest),
		"lower rate must cost less interest")
	assert.True(t, results[2].TotalInterest.GreaterThan(results[0].TotalInterest),
		"longer term must cost more interest")
	assert.Equal(t, 24, results[2].Periods)
}

func TestSchedule_ConfiguredExtraPayments(t *testing.T) {
	l := testLoan()
	l.ExtraPayments = []model.ExtraPayment{{AfterPeriod: 2, Amount: dec("2000")}}

	schedule, err := Schedule(l)
	require.NoError(t, err)
	assert.Less(t, len(schedule), 12)
	assert.True(t, schedule[len(schedule)-1].Remaining.IsZero())
}
