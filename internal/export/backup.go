// Package export reads and writes the ledger's interchange formats: a
// versioned JSON backup (round-trippable), and one-way CSV and OFX
// projections of the same transaction data.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

// BackupVersion is the current backup schema version.
const BackupVersion = 1

const dateFormat = "2006-01-02"

// ImportFormatError reports a malformed or unsupported backup payload.
type ImportFormatError struct {
	Reason string
}

func (e ImportFormatError) Error() string {
	return "import format: " + e.Reason
}

// Backup is the versioned top-level export object.
type Backup struct {
	Version      int                 `json:"version"`
	ExportDate   string              `json:"exportDate"`
	Accounts     []backupAccount     `json:"accounts"`
	Transactions []backupTransaction `json:"transactions"`
	// Rules carries recurrence rules that have not yet materialized a
	// transaction; materialized rules also ride embedded in their
	// transactions.
	Rules []backupRule `json:"rules,omitempty"`
}

type backupAccount struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Number   string          `json:"number,omitempty"`
	Currency string          `json:"currency"`
	Class    string          `json:"class"`
	Type     string          `json:"type"`
	IsActive bool            `json:"isActive"`
	IsSystem bool            `json:"isSystem,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}

type backupTransaction struct {
	ID          uuid.UUID          `json:"id"`
	Date        string             `json:"date"`
	Description string             `json:"description,omitempty"`
	Reference   string             `json:"reference,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	IsRecurring bool               `json:"isRecurring,omitempty"`
	Entries     []backupEntry      `json:"entries"`
	Attachments []backupAttachment `json:"attachments,omitempty"`
	Rule        *backupRule        `json:"recurrenceRule,omitempty"`
}

type backupEntry struct {
	ID        uuid.UUID       `json:"id"`
	AccountID uuid.UUID       `json:"accountId"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
}

type backupAttachment struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	MimeType string    `json:"mimeType,omitempty"`
	Data     []byte    `json:"data"` // base64 in the JSON encoding
}

type backupRule struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Frequency       string          `json:"frequency"`
	Interval        int             `json:"interval"`
	DayOfMonth      int             `json:"dayOfMonth,omitempty"`
	DayOfWeek       int             `json:"dayOfWeek,omitempty"`
	DayOfWeekSet    bool            `json:"dayOfWeekSet,omitempty"`
	MonthOfYear     int             `json:"monthOfYear,omitempty"`
	Weekend         string          `json:"weekendAdjustment"`
	StartDate       string          `json:"startDate"`
	EndDate         string          `json:"endDate,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	DebitAccountID  uuid.UUID       `json:"debitAccountId"`
	CreditAccountID uuid.UUID       `json:"creditAccountId"`
	NextOccurrence  string          `json:"nextOccurrence,omitempty"`
	LastExecuted    string          `json:"lastExecuted,omitempty"`
	IsActive        bool            `json:"isActive"`
}

// ExportBackup serializes the full ledger state as a versioned JSON backup.
func ExportBackup(ctx context.Context, st store.Store, now time.Time) ([]byte, error) {
	accounts, err := st.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	txns, err := st.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	rules, err := st.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	ruleByID := make(map[uuid.UUID]model.RecurrenceRule, len(rules))
	for _, r := range rules {
		ruleByID[r.ID] = r
	}

	b := Backup{
		Version:    BackupVersion,
		ExportDate: now.UTC().Format(time.RFC3339),
	}
	for _, a := range accounts {
		b.Accounts = append(b.Accounts, backupAccount{
			ID: a.ID, Name: a.Name, Number: a.Number, Currency: a.Currency,
			Class: string(a.Class), Type: string(a.Type),
			IsActive: a.IsActive, IsSystem: a.IsSystem, Balance: a.Balance,
		})
	}

	embedded := make(map[uuid.UUID]bool)
	for _, t := range txns {
		bt := backupTransaction{
			ID: t.ID, Date: t.Date.Format(dateFormat),
			Description: t.Description, Reference: t.Reference,
			CreatedAt: t.CreatedAt, IsRecurring: t.IsRecurring,
		}
		for _, e := range t.Entries {
			bt.Entries = append(bt.Entries, backupEntry{
				ID: e.ID, AccountID: e.AccountID, Type: string(e.Type), Amount: e.Amount,
			})
		}
		for _, a := range t.Attachments {
			bt.Attachments = append(bt.Attachments, backupAttachment{
				ID: a.ID, Filename: a.Filename, MimeType: a.MimeType, Data: a.Data,
			})
		}
		if r, ok := ruleByID[t.RuleID]; ok && !embedded[r.ID] {
			br := marshalRule(r)
			bt.Rule = &br
			embedded[r.ID] = true
		}
		b.Transactions = append(b.Transactions, bt)
	}

	for _, r := range rules {
		if !embedded[r.ID] {
			b.Rules = append(b.Rules, marshalRule(r))
		}
	}

	return json.MarshalIndent(b, "", "  ")
}

// ImportBackup validates a backup payload and commits it into an empty store
// in one transaction. Any validation failure aborts the whole import with
// nothing committed. Account balances are recomputed from the imported
// entries, so a round-tripped backup reproduces them exactly.
func ImportBackup(ctx context.Context, st store.Store, data []byte) error {
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return ImportFormatError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if b.Version == 0 {
		return ImportFormatError{Reason: "missing version"}
	}
	if b.Version != BackupVersion {
		return ImportFormatError{Reason: fmt.Sprintf("unsupported version %d", b.Version)}
	}

	existing, err := st.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("check target: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("target ledger is not empty (%d accounts)", len(existing))
	}

	accounts := make(map[uuid.UUID]model.Account, len(b.Accounts))
	for _, ba := range b.Accounts {
		a := model.Account{
			ID: ba.ID, Name: ba.Name, Number: ba.Number, Currency: ba.Currency,
			Class: model.AccountClass(ba.Class), Type: model.AccountType(ba.Type),
			IsActive: ba.IsActive, IsSystem: ba.IsSystem, Balance: decimal.Zero,
		}
		if err := a.Validate(); err != nil {
			return ImportFormatError{Reason: fmt.Sprintf("account %q: %v", ba.Name, err)}
		}
		accounts[a.ID] = a
	}

	var txns []model.Transaction
	var rules []model.RecurrenceRule
	seenRules := make(map[uuid.UUID]bool)

	addRule := func(br backupRule) error {
		if seenRules[br.ID] {
			return nil
		}
		seenRules[br.ID] = true
		if _, ok := accounts[br.DebitAccountID]; !ok {
			return ledger.AccountMismatchError{AccountID: br.DebitAccountID,
				Reason: fmt.Sprintf("rule %q references an account missing from the backup", br.Name)}
		}
		if _, ok := accounts[br.CreditAccountID]; !ok {
			return ledger.AccountMismatchError{AccountID: br.CreditAccountID,
				Reason: fmt.Sprintf("rule %q references an account missing from the backup", br.Name)}
		}
		r, err := unmarshalRule(br)
		if err != nil {
			return err
		}
		rules = append(rules, r)
		return nil
	}

	for _, bt := range b.Transactions {
		date, err := time.Parse(dateFormat, bt.Date)
		if err != nil {
			return ImportFormatError{Reason: fmt.Sprintf("transaction %s: bad date %q", bt.ID, bt.Date)}
		}
		t := model.Transaction{
			ID: bt.ID, Date: date, Description: bt.Description,
			Reference: bt.Reference, CreatedAt: bt.CreatedAt, IsRecurring: bt.IsRecurring,
		}
		for _, be := range bt.Entries {
			if _, ok := accounts[be.AccountID]; !ok {
				return ledger.AccountMismatchError{AccountID: be.AccountID,
					Reason: "entry references an account missing from the backup"}
			}
			// An unknown type would slip past IsBalanced (both sides sum to
			// zero) and corrupt the balance recompute below.
			entryType := model.EntryType(be.Type)
			if entryType != model.Debit && entryType != model.Credit {
				return ImportFormatError{Reason: fmt.Sprintf("transaction %s: unknown entry type %q", bt.ID, be.Type)}
			}
			if be.Amount.IsNegative() {
				return ImportFormatError{Reason: fmt.Sprintf("transaction %s: negative amount %s", bt.ID, be.Amount)}
			}
			t.Entries = append(t.Entries, model.Entry{
				ID: be.ID, TransactionID: t.ID, AccountID: be.AccountID,
				Type: entryType, Amount: be.Amount,
			})
		}
		if !t.IsBalanced() {
			return ledger.UnbalancedTransactionError{
				Debits: t.TotalDebits(), Credits: t.TotalCredits(),
			}
		}
		for _, ba := range bt.Attachments {
			t.Attachments = append(t.Attachments, model.Attachment{
				ID: ba.ID, Filename: ba.Filename, MimeType: ba.MimeType, Data: ba.Data,
			})
		}
		if bt.Rule != nil {
			if err := addRule(*bt.Rule); err != nil {
				return err
			}
			t.RuleID = bt.Rule.ID
		}
		txns = append(txns, t)
	}

	for _, br := range b.Rules {
		if err := addRule(br); err != nil {
			return err
		}
	}

	// Recompute cached balances from the imported entries.
	for _, t := range txns {
		for _, e := range t.Entries {
			a := accounts[e.AccountID]
			a.Balance = a.Balance.Add(e.SignedEffect(a.Class))
			accounts[e.AccountID] = a
		}
	}

	return st.RunInTransaction(ctx, func(tx store.Store) error {
		for _, a := range accounts {
			if err := tx.SaveAccount(ctx, a); err != nil {
				return fmt.Errorf("import account %q: %w", a.Name, err)
			}
		}
		for _, t := range txns {
			if err := tx.SaveTransaction(ctx, t); err != nil {
				return fmt.Errorf("import transaction %s: %w", t.ID, err)
			}
		}
		for _, r := range rules {
			if err := tx.SaveRule(ctx, r); err != nil {
				return fmt.Errorf("import rule %q: %w", r.Name, err)
			}
		}
		return nil
	})
}

func marshalRule(r model.RecurrenceRule) backupRule {
	br := backupRule{
		ID: r.ID, Name: r.Name, Description: r.Description,
		Frequency: string(r.Frequency), Interval: r.Interval,
		DayOfMonth: r.DayOfMonth, DayOfWeek: int(r.DayOfWeek), DayOfWeekSet: r.DayOfWeekSet,
		MonthOfYear: int(r.MonthOfYear), Weekend: string(r.Weekend),
		StartDate: r.StartDate.Format(dateFormat),
		Amount:    r.Amount, Currency: r.Currency,
		DebitAccountID: r.DebitAccountID, CreditAccountID: r.CreditAccountID,
		IsActive: r.IsActive,
	}
	if r.HasEnd() {
		br.EndDate = r.EndDate.Format(dateFormat)
	}
	if !r.NextOccurrence.IsZero() {
		br.NextOccurrence = r.NextOccurrence.Format(dateFormat)
	}
	if !r.LastExecuted.IsZero() {
		br.LastExecuted = r.LastExecuted.Format(dateFormat)
	}
	return br
}

func unmarshalRule(br backupRule) (model.RecurrenceRule, error) {
	r := model.RecurrenceRule{
		ID: br.ID, Name: br.Name, Description: br.Description,
		Frequency: model.Frequency(br.Frequency), Interval: br.Interval,
		DayOfMonth: br.DayOfMonth, DayOfWeek: time.Weekday(br.DayOfWeek), DayOfWeekSet: br.DayOfWeekSet,
		MonthOfYear: time.Month(br.MonthOfYear), Weekend: model.WeekendAdjustment(br.Weekend),
		Amount: br.Amount, Currency: br.Currency,
		DebitAccountID: br.DebitAccountID, CreditAccountID: br.CreditAccountID,
		IsActive: br.IsActive,
	}
	var err error
	if r.StartDate, err = time.Parse(dateFormat, br.StartDate); err != nil {
		return model.RecurrenceRule{}, ImportFormatError{Reason: fmt.Sprintf("rule %q: bad start date %q", br.Name, br.StartDate)}
	}
	for _, f := range []struct {
		src string
		dst *time.Time
	}{
		{br.EndDate, &r.EndDate},
		{br.NextOccurrence, &r.NextOccurrence},
		{br.LastExecuted, &r.LastExecuted},
	} {
		if f.src == "" {
			continue
		}
		if *f.dst, err = time.Parse(dateFormat, f.src); err != nil {
			return model.RecurrenceRule{}, ImportFormatError{Reason: fmt.Sprintf("rule %q: bad date %q", br.Name, f.src)}
		}
	}
	return r, nil
}
