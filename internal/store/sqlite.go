package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/tally-dev/tally/internal/model"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = time.RFC3339
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is the durable Store backed by a single sqlite database file.
type SQLite struct {
	db *sql.DB
	queries
}

// OpenSQLite opens (creating if needed) the database at dbPath and runs
// schema migrations.
func OpenSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite store opened", "path", dbPath)
	return &SQLite{db: db, queries: queries{db: db}}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RunInTransaction runs fn inside a single sqlite transaction.
func (s *SQLite) RunInTransaction(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	view := &sqliteTx{queries: queries{db: tx}}
	if err := fn(view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqliteTx is the Store view handed to RunInTransaction callbacks.
type sqliteTx struct {
	queries
}

// RunInTransaction on a transactional view joins the enclosing transaction.
func (t *sqliteTx) RunInTransaction(_ context.Context, fn func(Store) error) error {
	return fn(t)
}

// queries implements the entity operations against a dbtx.
type queries struct {
	db dbtx
}

func (q queries) SaveAccount(ctx context.Context, a model.Account) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, number, currency, class, type, is_active, is_system, balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, number = excluded.number,
			currency = excluded.currency, class = excluded.class,
			type = excluded.type, is_active = excluded.is_active,
			is_system = excluded.is_system, balance = excluded.balance`,
		a.ID.String(), a.Name, a.Number, a.Currency, string(a.Class), string(a.Type),
		boolInt(a.IsActive), boolInt(a.IsSystem), a.Balance.String())
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

const accountCols = "id, name, number, currency, class, type, is_active, is_system, balance"

func (q queries) Account(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM accounts WHERE id = ?", id.String())
	return scanAccount(row)
}

func (q queries) AccountByName(ctx context.Context, name string) (model.Account, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+accountCols+" FROM accounts WHERE name = ?", name)
	return scanAccount(row)
}

func (q queries) Accounts(ctx context.Context) ([]model.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+accountCols+" FROM accounts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q queries) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireAffected(res)
}

func (q queries) SaveTransaction(ctx context.Context, t model.Transaction) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (id, date, description, reference, created_at, is_recurring, rule_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date, description = excluded.description,
			reference = excluded.reference, is_recurring = excluded.is_recurring,
			rule_id = excluded.rule_id`,
		t.ID.String(), t.Date.Format(dateFormat), t.Description, t.Reference,
		t.CreatedAt.Format(timeFormat), boolInt(t.IsRecurring), uuidStr(t.RuleID))
	if err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}

	// Entries and attachments are replaced wholesale with their parent.
	if _, err := q.db.ExecContext(ctx,
		"DELETE FROM entries WHERE transaction_id = ?", t.ID.String()); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	for i, e := range t.Entries {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO entries (id, transaction_id, account_id, type, amount, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.ID.String(), t.ID.String(), e.AccountID.String(),
			string(e.Type), e.Amount.String(), i); err != nil {
			return fmt.Errorf("save entry: %w", err)
		}
	}

	if _, err := q.db.ExecContext(ctx,
		"DELETE FROM attachments WHERE transaction_id = ?", t.ID.String()); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}
	for _, a := range t.Attachments {
		if _, err := q.db.ExecContext(ctx, `
			INSERT INTO attachments (id, transaction_id, filename, mime_type, data)
			VALUES (?, ?, ?, ?, ?)`,
			a.ID.String(), t.ID.String(), a.Filename, a.MimeType, a.Data); err != nil {
			return fmt.Errorf("save attachment: %w", err)
		}
	}
	return nil
}

func (q queries) Transaction(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, date, description, reference, created_at, is_recurring, rule_id
		FROM transactions WHERE id = ?`, id.String())
	t, err := scanTransaction(row)
	if err != nil {
		return model.Transaction{}, err
	}
	if err := q.loadChildren(ctx, &t); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func (q queries) Transactions(ctx context.Context) ([]model.Transaction, error) {
	return q.queryTransactions(ctx, `
		SELECT id, date, description, reference, created_at, is_recurring, rule_id
		FROM transactions ORDER BY date, created_at`)
}

func (q queries) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, until time.Time) ([]model.Transaction, error) {
	query := `
		SELECT DISTINCT t.id, t.date, t.description, t.reference, t.created_at, t.is_recurring, t.rule_id
		FROM transactions t JOIN entries e ON e.transaction_id = t.id
		WHERE e.account_id = ?`
	args := []any{accountID.String()}
	if !until.IsZero() {
		query += " AND t.date <= ?"
		args = append(args, until.Format(dateFormat))
	}
	query += " ORDER BY t.date, t.created_at"
	return q.queryTransactions(ctx, query, args...)
}

func (q queries) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := q.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (q queries) loadChildren(ctx context.Context, t *model.Transaction) error {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, account_id, type, amount FROM entries
		WHERE transaction_id = ? ORDER BY position`, t.ID.String())
	if err != nil {
		return fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idStr, acctStr, typ, amountStr string
		if err := rows.Scan(&idStr, &acctStr, &typ, &amountStr); err != nil {
			return fmt.Errorf("scan entry: %w", err)
		}
		e := model.Entry{TransactionID: t.ID, Type: model.EntryType(typ)}
		if e.ID, err = uuid.Parse(idStr); err != nil {
			return fmt.Errorf("parse entry id: %w", err)
		}
		if e.AccountID, err = uuid.Parse(acctStr); err != nil {
			return fmt.Errorf("parse entry account id: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return fmt.Errorf("parse entry amount: %w", err)
		}
		t.Entries = append(t.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	arows, err := q.db.QueryContext(ctx, `
		SELECT id, filename, mime_type, data FROM attachments
		WHERE transaction_id = ?`, t.ID.String())
	if err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}
	defer arows.Close()

	for arows.Next() {
		var idStr string
		var a model.Attachment
		if err := arows.Scan(&idStr, &a.Filename, &a.MimeType, &a.Data); err != nil {
			return fmt.Errorf("scan attachment: %w", err)
		}
		if a.ID, err = uuid.Parse(idStr); err != nil {
			return fmt.Errorf("parse attachment id: %w", err)
		}
		t.Attachments = append(t.Attachments, a)
	}
	return arows.Err()
}

func (q queries) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res)
}

func (q queries) SaveRule(ctx context.Context, r model.RecurrenceRule) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO recurrence_rules (id, name, description, frequency, interval,
			day_of_month, day_of_week, day_of_week_set, month_of_year, weekend,
			start_date, end_date, amount, currency, debit_account, credit_account,
			next_occurrence, last_executed, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			frequency = excluded.frequency, interval = excluded.interval,
			day_of_month = excluded.day_of_month, day_of_week = excluded.day_of_week,
			day_of_week_set = excluded.day_of_week_set,
			month_of_year = excluded.month_of_year, weekend = excluded.weekend,
			start_date = excluded.start_date, end_date = excluded.end_date,
			amount = excluded.amount, currency = excluded.currency,
			debit_account = excluded.debit_account, credit_account = excluded.credit_account,
			next_occurrence = excluded.next_occurrence,
			last_executed = excluded.last_executed, is_active = excluded.is_active`,
		r.ID.String(), r.Name, r.Description, string(r.Frequency), r.Interval,
		r.DayOfMonth, int(r.DayOfWeek), boolInt(r.DayOfWeekSet), int(r.MonthOfYear),
		string(r.Weekend), r.StartDate.Format(dateFormat), fmtDate(r.EndDate),
		r.Amount.String(), r.Currency, r.DebitAccountID.String(), r.CreditAccountID.String(),
		fmtDate(r.NextOccurrence), fmtDate(r.LastExecuted), boolInt(r.IsActive))
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return nil
}

const ruleCols = `id, name, description, frequency, interval, day_of_month,
	day_of_week, day_of_week_set, month_of_year, weekend, start_date, end_date,
	amount, currency, debit_account, credit_account, next_occurrence,
	last_executed, is_active`

func (q queries) Rule(ctx context.Context, id uuid.UUID) (model.RecurrenceRule, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+ruleCols+" FROM recurrence_rules WHERE id = ?", id.String())
	return scanRule(row)
}

func (q queries) Rules(ctx context.Context) ([]model.RecurrenceRule, error) {
	return q.queryRules(ctx, "SELECT "+ruleCols+" FROM recurrence_rules ORDER BY name")
}

func (q queries) ActiveRules(ctx context.Context) ([]model.RecurrenceRule, error) {
	return q.queryRules(ctx,
		"SELECT "+ruleCols+" FROM recurrence_rules WHERE is_active = 1 ORDER BY name")
}

func (q queries) queryRules(ctx context.Context, query string, args ...any) ([]model.RecurrenceRule, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []model.RecurrenceRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q queries) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM recurrence_rules WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireAffected(res)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (model.Account, error) {
	var a model.Account
	var idStr, class, typ, balance string
	var isActive, isSystem int
	err := s.Scan(&idStr, &a.Name, &a.Number, &a.Currency, &class, &typ,
		&isActive, &isSystem, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, ErrNotFound
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("scan account: %w", err)
	}
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return model.Account{}, fmt.Errorf("parse account id: %w", err)
	}
	a.Class = model.AccountClass(class)
	a.Type = model.AccountType(typ)
	a.IsActive = isActive != 0
	a.IsSystem = isSystem != 0
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return model.Account{}, fmt.Errorf("parse balance: %w", err)
	}
	return a, nil
}

func scanTransaction(s scanner) (model.Transaction, error) {
	var t model.Transaction
	var idStr, dateStr, createdStr, ruleStr string
	var isRecurring int
	err := s.Scan(&idStr, &dateStr, &t.Description, &t.Reference, &createdStr,
		&isRecurring, &ruleStr)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, ErrNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return model.Transaction{}, fmt.Errorf("parse transaction id: %w", err)
	}
	if t.Date, err = time.Parse(dateFormat, dateStr); err != nil {
		return model.Transaction{}, fmt.Errorf("parse date: %w", err)
	}
	if t.CreatedAt, err = time.Parse(timeFormat, createdStr); err != nil {
		return model.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	t.IsRecurring = isRecurring != 0
	if ruleStr != "" {
		if t.RuleID, err = uuid.Parse(ruleStr); err != nil {
			return model.Transaction{}, fmt.Errorf("parse rule id: %w", err)
		}
	}
	return t, nil
}

func scanRule(s scanner) (model.RecurrenceRule, error) {
	var r model.RecurrenceRule
	var idStr, freq, weekend, startStr, endStr, amountStr, debitStr, creditStr, nextStr, lastStr string
	var dayOfWeek, monthOfYear, dowSet, isActive int
	err := s.Scan(&idStr, &r.Name, &r.Description, &freq, &r.Interval,
		&r.DayOfMonth, &dayOfWeek, &dowSet, &monthOfYear, &weekend,
		&startStr, &endStr, &amountStr, &r.Currency, &debitStr, &creditStr,
		&nextStr, &lastStr, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RecurrenceRule{}, ErrNotFound
	}
	if err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("scan rule: %w", err)
	}
	if r.ID, err = uuid.Parse(idStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse rule id: %w", err)
	}
	r.Frequency = model.Frequency(freq)
	r.DayOfWeek = time.Weekday(dayOfWeek)
	r.DayOfWeekSet = dowSet != 0
	r.MonthOfYear = time.Month(monthOfYear)
	r.Weekend = model.WeekendAdjustment(weekend)
	if r.StartDate, err = time.Parse(dateFormat, startStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse start date: %w", err)
	}
	if r.EndDate, err = parseDate(endStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse end date: %w", err)
	}
	if r.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse amount: %w", err)
	}
	if r.DebitAccountID, err = uuid.Parse(debitStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse debit account: %w", err)
	}
	if r.CreditAccountID, err = uuid.Parse(creditStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse credit account: %w", err)
	}
	if r.NextOccurrence, err = parseDate(nextStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse next occurrence: %w", err)
	}
	if r.LastExecuted, err = parseDate(lastStr); err != nil {
		return model.RecurrenceRule{}, fmt.Errorf("parse last executed: %w", err)
	}
	r.IsActive = isActive != 0
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func uuidStr(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateFormat)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateFormat, s)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
