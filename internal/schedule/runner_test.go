package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/runlog"
	"github.com/tally-dev/tally/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func setup(t *testing.T) (*store.Memory, *ledger.Service, model.Account, model.Account) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	svc := ledger.NewService(st)
	require.NoError(t, svc.SeedDefaultChart(ctx, "USD"))

	checking, err := svc.AccountByName(ctx, "Checking")
	require.NoError(t, err)
	rent, err := svc.AccountByName(ctx, "Rent")
	require.NoError(t, err)
	return st, svc, checking, rent
}

func monthlyRent(debit, credit uuid.UUID) model.RecurrenceRule {
	return model.RecurrenceRule{
		ID:              uuid.New(),
		Name:            "rent",
		Frequency:       model.Monthly,
		Interval:        1,
		DayOfMonth:      1,
		StartDate:       date(2025, 1, 1),
		Amount:          dec("1200"),
		Currency:        "USD",
		DebitAccountID:  debit,
		CreditAccountID: credit,
		IsActive:        true,
	}
}

func TestRunDue_PostsDueRule(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)
	rule := monthlyRent(rent.ID, checking.ID)
	require.NoError(t, st.SaveRule(ctx, rule))

	rn := NewRunner(svc, st, quietLogger(), "")
	results, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	txn := results[0].Transaction
	assert.True(t, txn.IsRecurring)
	assert.Equal(t, rule.ID, txn.RuleID)
	assert.Equal(t, "rent", txn.Description)

	got, err := st.Account(ctx, checking.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("-1200")), "checking: %s", got.Balance)

	// Schedule state advanced.
	updated, err := st.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 4, 1), updated.LastExecuted)
	assert.Equal(t, date(2025, 5, 1), updated.NextOccurrence)
}

func TestRunDue_SkipsWhenNotDue(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)
	require.NoError(t, st.SaveRule(ctx, monthlyRent(rent.ID, checking.ID)))

	rn := NewRunner(svc, st, quietLogger(), "")
	results, err := rn.RunDue(ctx, date(2025, 4, 15))
	require.NoError(t, err)
	assert.Empty(t, results)

	txns, err := st.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestRunDue_SameDayRunsOnce(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)
	require.NoError(t, st.SaveRule(ctx, monthlyRent(rent.ID, checking.ID)))

	rn := NewRunner(svc, st, quietLogger(), "")
	first, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	assert.Empty(t, second, "a rule fires at most once per day")

	txns, err := st.Transactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRunDue_FailingRuleDoesNotStopSweep(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)

	// This rule references an account that does not exist, so posting fails.
	broken := monthlyRent(uuid.New(), checking.ID)
	broken.Name = "broken"
	require.NoError(t, st.SaveRule(ctx, broken))
	require.NoError(t, st.SaveRule(ctx, monthlyRent(rent.ID, checking.ID)))

	rn := NewRunner(svc, st, quietLogger(), "")
	results, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, results, 2)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.RuleName] = r
	}
	assert.Error(t, byName["broken"].Err)
	require.NoError(t, byName["rent"].Err)

	// Only the healthy rule posted; the broken one left no partial state.
	txns, err := st.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "rent", txns[0].Description)

	updated, err := st.Rule(ctx, broken.ID)
	require.NoError(t, err)
	assert.True(t, updated.LastExecuted.IsZero(), "failed rule keeps its schedule state")
}

func TestRunDue_WritesRunLog(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)
	rule := monthlyRent(rent.ID, checking.ID)
	require.NoError(t, st.SaveRule(ctx, rule))

	dir := t.TempDir()
	rn := NewRunner(svc, st, quietLogger(), dir)
	results, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, results, 1)

	rows, err := runlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rule.ID.String(), rows[0].RuleID)
	assert.Equal(t, runlog.OutcomePosted, rows[0].Outcome)
	assert.Equal(t, "1200.00", rows[0].Amount)
	assert.Equal(t, results[0].Transaction.ID.String(), rows[0].TransactionID)
}

func TestRunDue_EndedRuleClearsNextOccurrence(t *testing.T) {
	ctx := context.Background()
	st, svc, checking, rent := setup(t)
	rule := monthlyRent(rent.ID, checking.ID)
	rule.EndDate = date(2025, 4, 1)
	require.NoError(t, st.SaveRule(ctx, rule))

	rn := NewRunner(svc, st, quietLogger(), "")
	results, err := rn.RunDue(ctx, date(2025, 4, 1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	updated, err := st.Rule(ctx, rule.ID)
	require.NoError(t, err)
	assert.True(t, updated.NextOccurrence.IsZero(), "no occurrences remain past the end date")
}
