package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedLedger builds a small but representative ledger: default chart, an
// opening balance, a grocery purchase with a comma-laden description, and an
// active recurrence rule that has not executed yet.
func seedLedger(t *testing.T) (*store.Memory, *ledger.Service) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	svc := ledger.NewService(st)
	require.NoError(t, svc.SeedDefaultChart(ctx, "USD"))

	checking, err := svc.AccountByName(ctx, "Checking")
	require.NoError(t, err)
	groceries, err := svc.AccountByName(ctx, "Groceries")
	require.NoError(t, err)

	_, err = svc.OpeningBalance(ctx, checking.ID, dec("2500"), date(2025, 1, 1))
	require.NoError(t, err)

	_, err = svc.PostTransaction(ctx, ledger.PostParams{
		Date:        date(2025, 1, 10),
		Description: `Groceries, "weekly" run`,
		Reference:   "POS-1234",
		Entries: []ledger.EntryParams{
			{AccountID: groceries.ID, Type: model.Debit, Amount: dec("84.15")},
			{AccountID: checking.ID, Type: model.Credit, Amount: dec("84.15")},
		},
	})
	require.NoError(t, err)

	rule := model.RecurrenceRule{
		ID: uuid.New(), Name: "rent", Frequency: model.Monthly, Interval: 1, DayOfMonth: 1,
		StartDate: date(2025, 2, 1), Amount: dec("1200"), Currency: "USD",
		DebitAccountID: groceries.ID, CreditAccountID: checking.ID, IsActive: true,
	}
	require.NoError(t, st.SaveRule(ctx, rule))

	return st, svc
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, svc := seedLedger(t)

	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	dst := store.NewMemory()
	require.NoError(t, ImportBackup(ctx, dst, data))

	srcAccounts, err := src.Accounts(ctx)
	require.NoError(t, err)
	for _, want := range srcAccounts {
		got, err := dst.Account(ctx, want.ID)
		require.NoError(t, err, "account %q survives the round trip", want.Name)
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Class, got.Class)
		assert.True(t, want.Balance.Equal(got.Balance),
			"%q balance: exported %s, imported %s", want.Name, want.Balance, got.Balance)
	}

	srcTxns, err := src.Transactions(ctx)
	require.NoError(t, err)
	dstTxns, err := dst.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, dstTxns, len(srcTxns))

	srcRules, err := src.Rules(ctx)
	require.NoError(t, err)
	dstRules, err := dst.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, dstRules, len(srcRules))
	assert.Equal(t, srcRules[0].Name, dstRules[0].Name)
	assert.True(t, srcRules[0].Amount.Equal(dstRules[0].Amount))

	// Balances reported by the service match too, not just the cache.
	checking, err := svc.AccountByName(ctx, "Checking")
	require.NoError(t, err)
	dstSvc := ledger.NewService(dst)
	bal, err := dstSvc.AccountBalance(ctx, checking.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("2415.85")), "checking after import: %s", bal)
}

func TestBackupCarriesVersionAndUnmaterializedRules(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)

	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	var b Backup
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, BackupVersion, b.Version)
	assert.Equal(t, "2025-01-15T00:00:00Z", b.ExportDate)
	// The rent rule has produced no transaction yet, so it rides at the top
	// level rather than embedded.
	require.Len(t, b.Rules, 1)
	assert.Equal(t, "rent", b.Rules[0].Name)
}

func TestImportRejectsWrongVersion(t *testing.T) {
	ctx := context.Background()
	dst := store.NewMemory()

	err := ImportBackup(ctx, dst, []byte(`{"version": 99, "accounts": []}`))
	var formatErr ImportFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "unsupported version")

	err = ImportBackup(ctx, dst, []byte(`{"accounts": []}`))
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "missing version")
}

func TestImportRejectsNonEmptyTarget(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)
	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	err = ImportBackup(ctx, src, data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not empty")
}

func TestImportAbortsOnUnbalancedTransaction(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)
	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	var b Backup
	require.NoError(t, json.Unmarshal(data, &b))
	require.NotEmpty(t, b.Transactions)
	b.Transactions[0].Entries[0].Amount = b.Transactions[0].Entries[0].Amount.Add(dec("1"))
	tampered, err := json.Marshal(b)
	require.NoError(t, err)

	dst := store.NewMemory()
	err = ImportBackup(ctx, dst, tampered)
	var unbalanced ledger.UnbalancedTransactionError
	require.ErrorAs(t, err, &unbalanced)

	// Nothing committed.
	accounts, err := dst.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestImportAbortsOnUnknownEntryType(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)
	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	// Two entries of an unknown type still "balance" (both sides sum to
	// zero), so the type domain itself must be enforced.
	var b Backup
	require.NoError(t, json.Unmarshal(data, &b))
	require.NotEmpty(t, b.Transactions)
	for i := range b.Transactions[0].Entries {
		b.Transactions[0].Entries[i].Type = "refund"
	}
	tampered, err := json.Marshal(b)
	require.NoError(t, err)

	dst := store.NewMemory()
	err = ImportBackup(ctx, dst, tampered)
	var formatErr ImportFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "unknown entry type")

	accounts, err := dst.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestImportAbortsOnMissingAccount(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)
	data, err := ExportBackup(ctx, src, date(2025, 1, 15))
	require.NoError(t, err)

	var b Backup
	require.NoError(t, json.Unmarshal(data, &b))
	// Drop an account still referenced by entries.
	kept := b.Accounts[:0]
	for _, a := range b.Accounts {
		if a.Name != "Checking" {
			kept = append(kept, a)
		}
	}
	b.Accounts = kept
	tampered, err := json.Marshal(b)
	require.NoError(t, err)

	dst := store.NewMemory()
	err = ImportBackup(ctx, dst, tampered)
	var mismatch ledger.AccountMismatchError
	require.ErrorAs(t, err, &mismatch)

	accounts, err := dst.Accounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestWriteCSVQuotesSpecialCharacters(t *testing.T) {
	ctx := context.Background()
	src, _ := seedLedger(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(ctx, src, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, strings.Join(csvHeader, ","), lines[0])
	// Opening balance (2 entries) + grocery run (2 entries).
	assert.Len(t, lines, 5)
	assert.Contains(t, buf.String(), `"Groceries, ""weekly"" run"`)
}

func TestWriteOFX(t *testing.T) {
	ctx := context.Background()
	src, svc := seedLedger(t)
	checking, err := svc.AccountByName(ctx, "Checking")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOFX(ctx, src, checking.ID, &buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "OFXHEADER:100"))
	assert.Contains(t, out, "<CURDEF>USD")
	assert.Contains(t, out, "<DTSTART>20250101")
	assert.Contains(t, out, "<DTEND>20250110")
	// Opening deposit is a credit into an asset, the grocery run a debit out.
	assert.Contains(t, out, "<TRNAMT>2500.00")
	assert.Contains(t, out, "<TRNAMT>-84.15")
	assert.Contains(t, out, "<TRNTYPE>DEBIT")
	assert.Contains(t, out, "<BALAMT>2415.85")
	// Only the two transactions touching this account appear.
	assert.Equal(t, 2, strings.Count(out, "<STMTTRN>"))
}

func TestWriteOFX_EmptyAccount(t *testing.T) {
	ctx := context.Background()
	src, svc := seedLedger(t)
	savings, err := svc.AccountByName(ctx, "Savings")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteOFX(ctx, src, savings.ID, &buf))

	out := buf.String()
	assert.Equal(t, 0, strings.Count(out, "<STMTTRN>"))
	assert.NotContains(t, out, "00010101", "zero dates must not leak into the statement")
	assert.Contains(t, out, "<BALAMT>0.00")
}
