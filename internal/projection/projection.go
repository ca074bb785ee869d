// Package projection simulates forward balance timelines from a ledger
// snapshot, scheduled recurrence rules, and loan cash flows. It never writes
// back to the ledger; identical inputs always produce identical timelines.
package projection

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/amortize"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/recurrence"
)

// Point is the simulated balance-by-account state on one date. Only dates
// where something happened are emitted.
type Point struct {
	Date     time.Time
	Balances map[uuid.UUID]decimal.Decimal
}

// Input bundles everything a projection reads. Accounts carry the snapshot
// balances; the projector copies them and works on the copy.
type Input struct {
	Accounts []model.Account
	Rules    []model.RecurrenceRule
	Loans    []model.Loan
	From     time.Time
	To       time.Time
}

// event is one simulated cash flow. Loan payments order before recurring
// transactions on the same date to match amortization-period semantics.
type event struct {
	date     time.Time
	priority int // 0 = loan payment, 1 = recurring transaction
	seq      int // input order, for a stable total order
	apply    func(balances map[uuid.UUID]decimal.Decimal)
}

// Project replays every recurrence occurrence and loan period falling within
// [From, To] on top of the snapshot balances and returns the resulting
// timeline, one point per event date.
func Project(in Input) ([]Point, error) {
	byID := make(map[uuid.UUID]model.Account, len(in.Accounts))
	byName := make(map[string]model.Account, len(in.Accounts))
	balances := make(map[uuid.UUID]decimal.Decimal, len(in.Accounts))
	for _, a := range in.Accounts {
		byID[a.ID] = a
		byName[a.Name] = a
		balances[a.ID] = a.Balance
	}

	var events []event

	for i, l := range in.Loans {
		schedule, err := amortize.Schedule(l)
		if err != nil {
			return nil, fmt.Errorf("loan %q: %w", l.Name, err)
		}
		if l.PaymentAccountName == "" && l.LoanAccountName == "" {
			continue // unlinked loans project no cash flows
		}
		payAcct, ok := byName[l.PaymentAccountName]
		if !ok {
			return nil, fmt.Errorf("loan %q: no account named %q", l.Name, l.PaymentAccountName)
		}
		loanAcct, ok := byName[l.LoanAccountName]
		if !ok {
			return nil, fmt.Errorf("loan %q: no account named %q", l.Name, l.LoanAccountName)
		}
		for _, p := range schedule {
			if p.Date.Before(in.From) || p.Date.After(in.To) {
				continue
			}
			p := p
			events = append(events, event{
				date:     p.Date,
				priority: 0,
				seq:      i,
				apply: func(b map[uuid.UUID]decimal.Decimal) {
					// Cash leaves the payment account; the principal portion
					// reduces the loan liability (credit on an asset,
					// debit on a liability).
					b[payAcct.ID] = b[payAcct.ID].Sub(p.Payment)
					b[loanAcct.ID] = b[loanAcct.ID].Sub(p.Principal)
				},
			})
		}
	}

	for i, r := range in.Rules {
		if !r.IsActive {
			continue
		}
		debit, debitOK := byID[r.DebitAccountID]
		credit, creditOK := byID[r.CreditAccountID]
		if !debitOK || !creditOK {
			return nil, fmt.Errorf("rule %q references an unknown account", r.Name)
		}
		r := r
		for occ := range recurrence.Occurrences(r, in.From, in.To) {
			events = append(events, event{
				date:     occ,
				priority: 1,
				seq:      i,
				apply: func(b map[uuid.UUID]decimal.Decimal) {
					entry := model.Entry{Type: model.Debit, Amount: r.Amount}
					b[debit.ID] = b[debit.ID].Add(entry.SignedEffect(debit.Class))
					entry.Type = model.Credit
					b[credit.ID] = b[credit.ID].Add(entry.SignedEffect(credit.Class))
				},
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].date.Equal(events[j].date) {
			return events[i].date.Before(events[j].date)
		}
		if events[i].priority != events[j].priority {
			return events[i].priority < events[j].priority
		}
		return events[i].seq < events[j].seq
	})

	var timeline []Point
	for i := 0; i < len(events); {
		d := events[i].date
		for ; i < len(events) && events[i].date.Equal(d); i++ {
			events[i].apply(balances)
		}
		timeline = append(timeline, Point{Date: d, Balances: snapshot(balances)})
	}
	return timeline, nil
}

// NetWorth returns assets minus liabilities for one timeline point.
func NetWorth(p Point, accounts []model.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		b, ok := p.Balances[a.ID]
		if !ok {
			continue
		}
		switch a.Class {
		case model.ClassAsset:
			total = total.Add(b)
		case model.ClassLiability:
			total = total.Sub(b)
		}
	}
	return total
}

func snapshot(b map[uuid.UUID]decimal.Decimal) map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
