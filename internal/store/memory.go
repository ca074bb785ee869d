package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tally-dev/tally/internal/model"
)

// Memory is an in-process Store used by tests and projections.
type Memory struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]model.Account
	transactions map[uuid.UUID]model.Transaction
	rules        map[uuid.UUID]model.RecurrenceRule

	// inTx suppresses locking on the transactional clone, which is only
	// touched by one goroutine.
	inTx bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[uuid.UUID]model.Account),
		transactions: make(map[uuid.UUID]model.Transaction),
		rules:        make(map[uuid.UUID]model.RecurrenceRule),
	}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) rlock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

// SaveAccount inserts or replaces an account.
func (m *Memory) SaveAccount(ctx context.Context, a model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	m.accounts[a.ID] = a
	return nil
}

// Account returns an account by ID.
func (m *Memory) Account(ctx context.Context, id uuid.UUID) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	defer m.rlock()()
	a, ok := m.accounts[id]
	if !ok {
		return model.Account{}, ErrNotFound
	}
	return a, nil
}

// AccountByName returns an account by its unique name.
func (m *Memory) AccountByName(ctx context.Context, name string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	defer m.rlock()()
	for _, a := range m.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return model.Account{}, ErrNotFound
}

// Accounts returns all accounts sorted by name.
func (m *Memory) Accounts(ctx context.Context) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer m.rlock()()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteAccount removes an account.
func (m *Memory) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	if _, ok := m.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

// SaveTransaction inserts or replaces a transaction with its entries.
func (m *Memory) SaveTransaction(ctx context.Context, t model.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	t.Entries = append([]model.Entry(nil), t.Entries...)
	m.transactions[t.ID] = t
	return nil
}

// Transaction returns a transaction by ID.
func (m *Memory) Transaction(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}
	defer m.rlock()()
	t, ok := m.transactions[id]
	if !ok {
		return model.Transaction{}, ErrNotFound
	}
	return t, nil
}

// Transactions returns all transactions ordered by date, then creation time.
func (m *Memory) Transactions(ctx context.Context) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer m.rlock()()
	out := make([]model.Transaction, 0, len(m.transactions))
	for _, t := range m.transactions {
		out = append(out, t)
	}
	sortTransactions(out)
	return out, nil
}

// TransactionsByAccount filters transactions touching accountID, dated on or
// before until (zero until = unbounded).
func (m *Memory) TransactionsByAccount(ctx context.Context, accountID uuid.UUID, until time.Time) ([]model.Transaction, error) {
	all, err := m.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, t := range all {
		if !until.IsZero() && t.Date.After(until) {
			continue
		}
		for _, e := range t.Entries {
			if e.AccountID == accountID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// DeleteTransaction removes a transaction.
func (m *Memory) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	if _, ok := m.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

// SaveRule inserts or replaces a recurrence rule.
func (m *Memory) SaveRule(ctx context.Context, r model.RecurrenceRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	m.rules[r.ID] = r
	return nil
}

// Rule returns a rule by ID.
func (m *Memory) Rule(ctx context.Context, id uuid.UUID) (model.RecurrenceRule, error) {
	if err := ctx.Err(); err != nil {
		return model.RecurrenceRule{}, err
	}
	defer m.rlock()()
	r, ok := m.rules[id]
	if !ok {
		return model.RecurrenceRule{}, ErrNotFound
	}
	return r, nil
}

// Rules returns all rules sorted by name.
func (m *Memory) Rules(ctx context.Context) ([]model.RecurrenceRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer m.rlock()()
	out := make([]model.RecurrenceRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ActiveRules returns rules with IsActive set, sorted by name.
func (m *Memory) ActiveRules(ctx context.Context) ([]model.RecurrenceRule, error) {
	all, err := m.Rules(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.RecurrenceRule
	for _, r := range all {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteRule removes a rule.
func (m *Memory) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer m.lock()()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

// RunInTransaction runs fn against a deep copy of the store and swaps the
// copy in only if fn succeeds. The write lock is held throughout, so
// concurrent mutations cannot interleave.
func (m *Memory) RunInTransaction(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		// Nested scopes join the enclosing transaction.
		return fn(m)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := &Memory{
		accounts:     make(map[uuid.UUID]model.Account, len(m.accounts)),
		transactions: make(map[uuid.UUID]model.Transaction, len(m.transactions)),
		rules:        make(map[uuid.UUID]model.RecurrenceRule, len(m.rules)),
		inTx:         true,
	}
	for k, v := range m.accounts {
		clone.accounts[k] = v
	}
	for k, v := range m.transactions {
		clone.transactions[k] = v
	}
	for k, v := range m.rules {
		clone.rules[k] = v
	}

	if err := fn(clone); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.accounts = clone.accounts
	m.transactions = clone.transactions
	m.rules = clone.rules
	return nil
}

func sortTransactions(ts []model.Transaction) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].Date.Equal(ts[j].Date) {
			return ts[i].Date.Before(ts[j].Date)
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}
