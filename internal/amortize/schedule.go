// Package amortize computes loan amortization schedules, payoff amounts, and
// what-if simulations. Everything is a pure function over a Loan definition;
// all arithmetic is exact decimal with rounding confined to the currency's
// minor unit.
package amortize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
)

// maxAnnualRate is the sanity ceiling on annual interest (100%).
var maxAnnualRate = decimal.NewFromInt(1)

// InvalidLoanParametersError reports loan inputs that cannot be amortized.
type InvalidLoanParametersError struct {
	Reason string
}

func (e InvalidLoanParametersError) Error() string {
	return "invalid loan parameters: " + e.Reason
}

// InvalidDateError reports a payoff query outside the loan's life.
type InvalidDateError struct {
	Reason string
}

func (e InvalidDateError) Error() string {
	return "invalid date: " + e.Reason
}

// Period is one row of an amortization schedule.
type Period struct {
	Number    int
	Date      time.Time
	Payment   decimal.Decimal
	Interest  decimal.Decimal
	Principal decimal.Decimal
	Remaining decimal.Decimal
}

// ExtraMode selects how a simulated extra payment reshapes the schedule.
// The caller must choose; the engine never infers.
type ExtraMode string

const (
	// ShortenTerm keeps the periodic payment and ends the loan early.
	ShortenTerm ExtraMode = "shorten_term"
	// ReducePayment keeps the term and re-amortizes to a lower payment.
	ReducePayment ExtraMode = "reduce_payment"
)

func validate(l model.Loan) error {
	if !l.Principal.IsPositive() {
		return InvalidLoanParametersError{Reason: fmt.Sprintf("principal %s must be positive", l.Principal)}
	}
	if l.TermPeriods <= 0 {
		return InvalidLoanParametersError{Reason: fmt.Sprintf("term %d must be positive", l.TermPeriods)}
	}
	if l.AnnualRate.IsNegative() {
		return InvalidLoanParametersError{Reason: fmt.Sprintf("rate %s must not be negative", l.AnnualRate)}
	}
	if l.AnnualRate.GreaterThanOrEqual(maxAnnualRate) {
		return InvalidLoanParametersError{Reason: fmt.Sprintf("rate %s exceeds the %s ceiling", l.AnnualRate, maxAnnualRate)}
	}
	for _, ep := range l.ExtraPayments {
		if ep.AfterPeriod < 1 || ep.AfterPeriod >= l.TermPeriods {
			return InvalidLoanParametersError{Reason: fmt.Sprintf("extra payment after period %d is outside the term", ep.AfterPeriod)}
		}
		if !ep.Amount.IsPositive() {
			return InvalidLoanParametersError{Reason: "extra payment amount must be positive"}
		}
	}
	return nil
}

// Payment returns the fixed periodic payment for the loan, rounded to the
// currency's minor unit.
func Payment(l model.Loan) (decimal.Decimal, error) {
	if err := validate(l); err != nil {
		return decimal.Zero, err
	}
	return payment(l.Principal, l.PeriodicRate(), l.TermPeriods, l.Currency), nil
}

// payment = principal * rate / (1 - (1+rate)^-n); principal / n at zero rate.
func payment(principal, rate decimal.Decimal, n int, currency string) decimal.Decimal {
	if rate.IsZero() {
		return money.Round(principal.Div(decimal.NewFromInt(int64(n))), currency)
	}
	pow := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(int64(n)))
	denom := decimal.NewFromInt(1).Sub(decimal.NewFromInt(1).Div(pow))
	return money.Round(principal.Mul(rate).Div(denom), currency)
}

// Schedule builds the loan's full amortization schedule, applying any
// configured extra payments. The final period absorbs the rounding residue
// so the remaining balance lands exactly at zero.
func Schedule(l model.Loan) ([]Period, error) {
	if err := validate(l); err != nil {
		return nil, err
	}
	return amortize(l, l.Principal, payment(l.Principal, l.PeriodicRate(), l.TermPeriods, l.Currency), 0, l.ExtraPayments), nil
}

// amortize rolls the balance forward from startPeriod with a fixed payment.
// extras are applied to principal immediately after their period.
func amortize(l model.Loan, principal, pay decimal.Decimal, startPeriod int, extras []model.ExtraPayment) []Period {
	rate := l.PeriodicRate()
	remaining := principal
	var out []Period

	for i := startPeriod + 1; i <= l.TermPeriods && remaining.IsPositive(); i++ {
		interest := money.Round(remaining.Mul(rate), l.Currency)
		principalPortion := pay.Sub(interest)

		last := i == l.TermPeriods || principalPortion.GreaterThanOrEqual(remaining)
		if last {
			principalPortion = remaining
		}

		p := Period{
			Number:    i,
			Date:      periodDate(l, i),
			Payment:   interest.Add(principalPortion),
			Interest:  interest,
			Principal: principalPortion,
			Remaining: remaining.Sub(principalPortion),
		}
		remaining = p.Remaining
		out = append(out, p)

		for _, ep := range extras {
			if ep.AfterPeriod == i && remaining.IsPositive() {
				applied := decimal.Min(ep.Amount, remaining)
				remaining = remaining.Sub(applied)
				out[len(out)-1].Payment = out[len(out)-1].Payment.Add(applied)
				out[len(out)-1].Principal = out[len(out)-1].Principal.Add(applied)
				out[len(out)-1].Remaining = remaining
			}
		}
	}
	return out
}

// periodDate returns the due date of period number i (1-based).
func periodDate(l model.Loan, i int) time.Time {
	switch l.Frequency {
	case model.PayBiweekly:
		return l.StartDate.AddDate(0, 0, 14*i)
	case model.PayWeekly:
		return l.StartDate.AddDate(0, 0, 7*i)
	default:
		return l.StartDate.AddDate(0, i, 0)
	}
}

// Payoff returns the remaining principal at the period boundary at or before
// asOf, plus simple daily interest accrued from that boundary to asOf.
func Payoff(l model.Loan, asOf time.Time) (principal, accrued decimal.Decimal, err error) {
	if err := validate(l); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if asOf.Before(l.StartDate) {
		return decimal.Zero, decimal.Zero, InvalidDateError{
			Reason: fmt.Sprintf("payoff date %s precedes loan start %s",
				asOf.Format("2006-01-02"), l.StartDate.Format("2006-01-02")),
		}
	}

	schedule, err := Schedule(l)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	principal = l.Principal
	boundary := l.StartDate
	for _, p := range schedule {
		if p.Date.After(asOf) {
			break
		}
		principal = p.Remaining
		boundary = p.Date
	}

	days := int(asOf.Sub(boundary).Hours() / 24)
	daily := l.AnnualRate.Div(decimal.NewFromInt(365))
	accrued = money.Round(principal.Mul(daily).Mul(decimal.NewFromInt(int64(days))), l.Currency)
	return principal, accrued, nil
}

// SimulateExtraPayment re-amortizes the loan with one extra principal payment
// applied immediately after the given period. ShortenTerm keeps the payment
// and drops periods off the end; ReducePayment keeps the term and lowers the
// payment for the remaining periods.
func SimulateExtraPayment(l model.Loan, extra decimal.Decimal, afterPeriod int, mode ExtraMode) ([]Period, error) {
	if err := validate(l); err != nil {
		return nil, err
	}
	if !extra.IsPositive() {
		return nil, InvalidLoanParametersError{Reason: "extra payment must be positive"}
	}
	if afterPeriod < 1 || afterPeriod >= l.TermPeriods {
		return nil, InvalidLoanParametersError{Reason: fmt.Sprintf("period %d is outside the term", afterPeriod)}
	}

	switch mode {
	case ShortenTerm:
		withExtra := l
		withExtra.ExtraPayments = append(append([]model.ExtraPayment(nil), l.ExtraPayments...),
			model.ExtraPayment{AfterPeriod: afterPeriod, Amount: extra})
		return Schedule(withExtra)
	case ReducePayment:
		base, err := Schedule(l)
		if err != nil {
			return nil, err
		}
		if afterPeriod > len(base) {
			return nil, InvalidLoanParametersError{Reason: fmt.Sprintf("period %d is past the loan's payoff", afterPeriod)}
		}

		head := append([]Period(nil), base[:afterPeriod]...)
		remaining := head[len(head)-1].Remaining.Sub(extra)
		if !remaining.IsPositive() {
			head[len(head)-1].Remaining = decimal.Zero
			return head, nil
		}
		head[len(head)-1].Remaining = remaining

		periodsLeft := l.TermPeriods - afterPeriod
		newPay := payment(remaining, l.PeriodicRate(), periodsLeft, l.Currency)
		tail := amortize(l, remaining, newPay, afterPeriod, nil)
		return append(head, tail...), nil
	default:
		return nil, InvalidLoanParametersError{Reason: fmt.Sprintf("unknown extra-payment mode %q", mode)}
	}
}

// ScenarioResult summarizes one loan scenario for comparison.
type ScenarioResult struct {
	Name          string
	Payment       decimal.Decimal
	Periods       int
	TotalInterest decimal.Decimal
	TotalPaid     decimal.Decimal
}

// CompareScenarios amortizes the base loan and each alternative and returns
// their total interest and term, base first. Purely comparative.
func CompareScenarios(base model.Loan, alts []model.Loan) ([]ScenarioResult, error) {
	out := make([]ScenarioResult, 0, len(alts)+1)
	for _, l := range append([]model.Loan{base}, alts...) {
		schedule, err := Schedule(l)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", l.Name, err)
		}
		r := ScenarioResult{Name: l.Name, Periods: len(schedule)}
		if len(schedule) > 0 {
			r.Payment = schedule[0].Payment
		}
		for _, p := range schedule {
			r.TotalInterest = r.TotalInterest.Add(p.Interest)
			r.TotalPaid = r.TotalPaid.Add(p.Payment)
		}
		out = append(out, r)
	}
	return out, nil
}
