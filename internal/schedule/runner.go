// Package schedule sweeps active recurrence rules and posts the transactions
// that are due. A failing rule never stops the sweep; its error is reported
// alongside the results.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/recurrence"
	"github.com/tally-dev/tally/internal/runlog"
	"github.com/tally-dev/tally/internal/store"
)

// Runner executes due recurrence rules against a ledger.
type Runner struct {
	ledger *ledger.Service
	store  store.Store
	logger *slog.Logger

	// logDir is where the CSV run log lives; empty disables it.
	logDir string
}

// NewRunner creates a Runner. logger must not be nil; pass slog.Default() if
// no specific logger is configured.
func NewRunner(svc *ledger.Service, st store.Store, logger *slog.Logger, logDir string) *Runner {
	return &Runner{ledger: svc, store: st, logger: logger, logDir: logDir}
}

// Result reports what happened to one due rule during a sweep.
type Result struct {
	RuleID      uuid.UUID
	RuleName    string
	Transaction model.Transaction
	Err         error
}

// RunDue evaluates every active rule against today and posts a transaction for
// each rule that is due. Each posted transaction is linked back to its rule,
// and the rule's LastExecuted and NextOccurrence advance so the same day never
// fires twice. Per-rule failures are collected in the returned results; only
// infrastructure failures (store access, run-log writes) abort the sweep.
func (rn *Runner) RunDue(ctx context.Context, today time.Time) ([]Result, error) {
	rules, err := rn.store.ActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active rules: %w", err)
	}

	var results []Result
	var logRows []runlog.Entry
	now := time.Now().UTC()

	for _, rule := range rules {
		if !recurrence.ShouldExecute(rule, today) {
			continue
		}

		res := rn.execute(ctx, rule, today)
		results = append(results, res)

		row := runlog.Entry{
			Timestamp: now,
			RuleID:    rule.ID.String(),
			RuleName:  rule.Name,
			Amount:    rule.Amount.StringFixed(2),
		}
		if res.Err != nil {
			row.Outcome = runlog.OutcomeError
			row.Details = res.Err.Error()
			rn.logger.Error("recurring transaction failed",
				"rule", rule.Name, "date", today.Format("2006-01-02"), "error", res.Err)
		} else {
			row.Outcome = runlog.OutcomePosted
			row.TransactionID = res.Transaction.ID.String()
			rn.logger.Info("recurring transaction posted",
				"rule", rule.Name, "date", today.Format("2006-01-02"),
				"amount", rule.Amount.StringFixed(2), "transaction", res.Transaction.ID)
		}
		logRows = append(logRows, row)
	}

	if rn.logDir != "" && len(logRows) > 0 {
		if err := runlog.Append(rn.logDir, logRows); err != nil {
			return results, fmt.Errorf("append run log: %w", err)
		}
	}
	return results, nil
}

// execute posts one due rule's transaction and advances the rule's schedule
// state in the same store transaction.
func (rn *Runner) execute(ctx context.Context, rule model.RecurrenceRule, today time.Time) Result {
	res := Result{RuleID: rule.ID, RuleName: rule.Name}

	err := rn.store.RunInTransaction(ctx, func(tx store.Store) error {
		txn, err := ledger.NewService(tx).PostTransaction(ctx, ledger.PostParams{
			Date:        today,
			Description: ruleDescription(rule),
			IsRecurring: true,
			RuleID:      rule.ID,
			Entries: []ledger.EntryParams{
				{AccountID: rule.DebitAccountID, Type: model.Debit, Amount: rule.Amount},
				{AccountID: rule.CreditAccountID, Type: model.Credit, Amount: rule.Amount},
			},
		})
		if err != nil {
			return err
		}
		res.Transaction = txn

		rule.LastExecuted = today
		if next, ok, err := recurrence.NextOccurrence(rule, today); err != nil {
			return fmt.Errorf("advance schedule: %w", err)
		} else if ok {
			rule.NextOccurrence = next
		} else {
			// Past the end date; nothing left to schedule.
			rule.NextOccurrence = time.Time{}
		}
		return tx.SaveRule(ctx, rule)
	})
	res.Err = err
	return res
}

func ruleDescription(r model.RecurrenceRule) string {
	if r.Description != "" {
		return r.Description
	}
	return r.Name
}
