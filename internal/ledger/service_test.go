package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTestLedger seeds a memory-backed ledger and returns the service plus
// the checking and groceries accounts.
func newTestLedger(t *testing.T) (*Service, model.Account, model.Account) {
	t.Helper()
	ctx := context.Background()
	svc := NewService(store.NewMemory())
	require.NoError(t, svc.SeedDefaultChart(ctx, "USD"))

	checking, err := svc.AccountByName(ctx, "Checking")
	require.NoError(t, err)
	groceries, err := svc.AccountByName(ctx, "Groceries")
	require.NoError(t, err)
	return svc, checking, groceries
}

func TestPostTransaction_UpdatesBalances(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	txn, err := svc.PostTransaction(ctx, PostParams{
		Date:        date(2025, 3, 1),
		Description: "weekly shop",
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("82.19")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("82.19")},
		},
	})
	require.NoError(t, err)
	assert.True(t, txn.IsBalanced())

	// Expense increases on debit, asset decreases on credit.
	got, err := svc.AccountBalance(ctx, groceries.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("82.19")), "groceries balance: %s", got)

	got, err = svc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("-82.19")), "checking balance: %s", got)
}

func TestPostTransaction_Unbalanced(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	_, err := svc.PostTransaction(ctx, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("50.00")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("49.00")},
		},
	})
	var ube UnbalancedTransactionError
	require.ErrorAs(t, err, &ube)
	assert.True(t, ube.Debits.Equal(dec("50.00")))
	assert.True(t, ube.Credits.Equal(dec("49.00")))

	// Nothing may have been applied.
	got, err := svc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestPostTransaction_UnknownEntryType(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	// Two entries of a bogus type sum to zero on both sides and would pass
	// the balance check alone.
	_, err := svc.PostTransaction(ctx, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.EntryType("refund"), Amount: dec("50.00")},
			{AccountID: checking.ID, Type: model.EntryType("refund"), Amount: dec("50.00")},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not debit or credit")

	got, err := svc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "failed post must not touch balances")
}

func TestPostTransaction_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	svc, checking, _ := newTestLedger(t)

	_, err := svc.PostTransaction(ctx, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: uuid.New(), Type: model.Debit, Amount: dec("10")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("10")},
		},
	})
	var nfe NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "account", nfe.Kind)

	got, err := svc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "failed post must not touch balances")
}

func TestReverseTransaction(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	txn, err := svc.PostTransaction(ctx, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("30.00")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("30.00")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseTransaction(ctx, txn.ID))

	for _, id := range []uuid.UUID{checking.ID, groceries.ID} {
		got, err := svc.AccountBalance(ctx, id, time.Time{})
		require.NoError(t, err)
		assert.True(t, got.IsZero(), "balance after reversal: %s", got)
	}

	txns, err := svc.Transactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestReverseTransaction_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestLedger(t)

	err := svc.ReverseTransaction(ctx, uuid.New())
	var nfe NotFoundError
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "transaction", nfe.Kind)
}

func TestEditTransaction_Atomic(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	txn, err := svc.PostTransaction(ctx, PostParams{
		Date:        date(2025, 3, 1),
		Description: "typo amount",
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("10.00")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("10.00")},
		},
	})
	require.NoError(t, err)

	// Invalid replacement: the reversal must not stick.
	_, err = svc.EditTransaction(ctx, txn.ID, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("99.00")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("1.00")},
		},
	})
	require.Error(t, err)

	got, err := svc.AccountBalance(ctx, groceries.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("10.00")), "failed edit must preserve old state, got %s", got)

	// Valid replacement.
	edited, err := svc.EditTransaction(ctx, txn.ID, PostParams{
		Date:        date(2025, 3, 2),
		Description: "corrected",
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("12.50")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("12.50")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "corrected", edited.Description)

	got, err = svc.AccountBalance(ctx, groceries.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("12.50")))

	txns, err := svc.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

func TestAccountBalance_AsOf(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	for day, amount := range map[int]string{5: "10.00", 15: "20.00", 25: "30.00"} {
		_, err := svc.PostTransaction(ctx, PostParams{
			Date: date(2025, 3, day),
			Entries: []EntryParams{
				{AccountID: groceries.ID, Type: model.Debit, Amount: dec(amount)},
				{AccountID: checking.ID, Type: model.Credit, Amount: dec(amount)},
			},
		})
		require.NoError(t, err)
	}

	got, err := svc.AccountBalance(ctx, groceries.ID, date(2025, 3, 15))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("30.00")), "as-of balance: %s", got)

	// Cached balance covers everything.
	got, err = svc.AccountBalance(ctx, groceries.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("60.00")))
}

func TestBalanceMatchesEntryReplay(t *testing.T) {
	// Cached balance must equal the signed sum of all entries on the account.
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	salary, err := svc.AccountByName(ctx, "Salary")
	require.NoError(t, err)

	post := func(debit, credit uuid.UUID, amount string) {
		_, err := svc.PostTransaction(ctx, PostParams{
			Date: date(2025, 3, 1),
			Entries: []EntryParams{
				{AccountID: debit, Type: model.Debit, Amount: dec(amount)},
				{AccountID: credit, Type: model.Credit, Amount: dec(amount)},
			},
		})
		require.NoError(t, err)
	}
	post(checking.ID, salary.ID, "2500.00")
	post(groceries.ID, checking.ID, "300.00")
	post(groceries.ID, checking.ID, "55.10")

	accounts, err := svc.Accounts(ctx)
	require.NoError(t, err)
	txns, err := svc.Transactions(ctx)
	require.NoError(t, err)

	for _, a := range accounts {
		replayed := decimal.Zero
		for _, txn := range txns {
			for _, e := range txn.Entries {
				if e.AccountID == a.ID {
					replayed = replayed.Add(e.SignedEffect(a.Class))
				}
			}
		}
		assert.True(t, a.Balance.Equal(replayed),
			"account %s: cached %s != replayed %s", a.Name, a.Balance, replayed)
	}
}

func TestOpeningBalance(t *testing.T) {
	ctx := context.Background()
	svc, checking, _ := newTestLedger(t)

	_, err := svc.OpeningBalance(ctx, checking.ID, dec("1000.00"), date(2025, 1, 1))
	require.NoError(t, err)

	got, err := svc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("1000.00")))

	equity, err := svc.AccountByName(ctx, "Opening Balances")
	require.NoError(t, err)
	assert.True(t, equity.IsSystem)
	assert.True(t, equity.Balance.Equal(dec("1000.00")))
}

func TestDeleteAccount_Protections(t *testing.T) {
	ctx := context.Background()
	svc, checking, groceries := newTestLedger(t)

	equity, err := svc.AccountByName(ctx, "Opening Balances")
	require.NoError(t, err)
	require.Error(t, svc.DeleteAccount(ctx, equity.ID), "system account must be protected")

	_, err = svc.PostTransaction(ctx, PostParams{
		Date: date(2025, 3, 1),
		Entries: []EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("5.00")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("5.00")},
		},
	})
	require.NoError(t, err)
	require.Error(t, svc.DeleteAccount(ctx, groceries.ID), "referenced account must be protected")

	savings, err := svc.AccountByName(ctx, "Savings")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, savings.ID))
}

func TestCreateAccount_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemory())

	_, err := svc.CreateAccount(ctx, model.Account{
		Name: "Broken", Currency: "USD",
		Class: model.ClassIncome, Type: model.TypeBank, IsActive: true,
	})
	require.Error(t, err, "type/class mismatch must be rejected")

	a, err := svc.CreateAccount(ctx, model.Account{
		Name: "Brokerage", Currency: "USD",
		Class: model.ClassAsset, Type: model.TypeInvestment, IsActive: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, a.ID)

	_, err = svc.CreateAccount(ctx, model.Account{
		Name: "Brokerage", Currency: "USD",
		Class: model.ClassAsset, Type: model.TypeInvestment, IsActive: true,
	})
	require.Error(t, err, "duplicate name must be rejected")
}
