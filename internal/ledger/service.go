// Package ledger owns all mutation of accounts and transactions. Every write
// goes through a single-writer critical section and an all-or-nothing store
// transaction, so cached account balances always agree with the entries that
// produced them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

// Service provides ledger operations over a Store.
type Service struct {
	store store.Store

	// mu serializes mutations. Two concurrent posts touching the same
	// account both read-then-write its cached balance; interleaving them
	// would lose one update.
	mu sync.Mutex
}

// NewService creates a ledger Service.
func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// EntryParams describes one side of a transaction to post.
type EntryParams struct {
	AccountID uuid.UUID
	Type      model.EntryType
	Amount    decimal.Decimal
}

// PostParams holds parameters for posting a transaction.
type PostParams struct {
	Date        time.Time
	Description string
	Reference   string
	IsRecurring bool
	RuleID      uuid.UUID
	Entries     []EntryParams
	Attachments []model.Attachment
}

// PostTransaction validates and persists a balanced transaction, applying
// each entry's signed effect to its account's cached balance. Validation
// failures leave the ledger untouched.
func (s *Service) PostTransaction(ctx context.Context, params PostParams) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.post(ctx, s.store, params)
}

// post is the lock-free body of PostTransaction, reused by EditTransaction
// inside its own store transaction.
func (s *Service) post(ctx context.Context, st store.Store, params PostParams) (model.Transaction, error) {
	if len(params.Entries) < 2 {
		return model.Transaction{}, fmt.Errorf("transaction needs at least two entries, got %d", len(params.Entries))
	}

	txn := model.Transaction{
		ID:          uuid.New(),
		Date:        params.Date,
		Description: params.Description,
		Reference:   params.Reference,
		CreatedAt:   time.Now().UTC(),
		IsRecurring: params.IsRecurring,
		RuleID:      params.RuleID,
		Attachments: params.Attachments,
	}
	for _, ep := range params.Entries {
		if ep.Type != model.Debit && ep.Type != model.Credit {
			return model.Transaction{}, fmt.Errorf("entry type %q is not debit or credit", ep.Type)
		}
		if ep.Amount.IsNegative() {
			return model.Transaction{}, fmt.Errorf("entry amount %s is negative", ep.Amount)
		}
		txn.Entries = append(txn.Entries, model.Entry{
			ID:            uuid.New(),
			TransactionID: txn.ID,
			AccountID:     ep.AccountID,
			Type:          ep.Type,
			Amount:        ep.Amount,
		})
	}

	if !txn.IsBalanced() {
		return model.Transaction{}, UnbalancedTransactionError{
			Debits:  txn.TotalDebits(),
			Credits: txn.TotalCredits(),
		}
	}

	err := st.RunInTransaction(ctx, func(tx store.Store) error {
		if err := applyEntries(ctx, tx, txn.Entries, false); err != nil {
			return err
		}
		if err := tx.SaveTransaction(ctx, txn); err != nil {
			return fmt.Errorf("persist transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}

// ReverseTransaction undoes a transaction's balance effects by re-applying
// its entries with flipped entry types, then deletes it.
func (s *Service) ReverseTransaction(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		return s.reverse(ctx, tx, id)
	})
}

func (s *Service) reverse(ctx context.Context, tx store.Store, id uuid.UUID) error {
	txn, err := tx.Transaction(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{Kind: "transaction", ID: id}
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	if err := applyEntries(ctx, tx, txn.Entries, true); err != nil {
		return err
	}
	if err := tx.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

// EditTransaction replaces a transaction with new entries. It is a reversal
// followed by a post inside one store transaction: callers see either the old
// transaction or the new one, never a half-applied state.
func (s *Service) EditTransaction(ctx context.Context, id uuid.UUID, params PostParams) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posted model.Transaction
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := s.reverse(ctx, tx, id); err != nil {
			return err
		}
		var err error
		posted, err = s.post(ctx, tx, params)
		return err
	})
	if err != nil {
		return model.Transaction{}, err
	}
	return posted, nil
}

// applyEntries adjusts each touched account's cached balance by the entries'
// signed effects (flipped when reversing) and verifies account references.
func applyEntries(ctx context.Context, tx store.Store, entries []model.Entry, reverse bool) error {
	// A transaction may hit the same account twice; accumulate per account
	// so each balance is read and written exactly once.
	deltas := make(map[uuid.UUID]decimal.Decimal)
	order := make([]uuid.UUID, 0, len(entries))

	var currency string
	for _, e := range entries {
		acct, err := tx.Account(ctx, e.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError{Kind: "account", ID: e.AccountID}
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		if !acct.IsActive {
			return AccountMismatchError{AccountID: acct.ID, Reason: "account is inactive"}
		}
		if currency == "" {
			currency = acct.Currency
		} else if acct.Currency != currency {
			return AccountMismatchError{AccountID: acct.ID,
				Reason: fmt.Sprintf("currency %s does not match transaction currency %s", acct.Currency, currency)}
		}

		entry := e
		if reverse {
			entry.Type = entry.Type.Opposite()
		}
		if _, seen := deltas[e.AccountID]; !seen {
			order = append(order, e.AccountID)
		}
		deltas[e.AccountID] = deltas[e.AccountID].Add(entry.SignedEffect(acct.Class))
	}

	for _, acctID := range order {
		acct, err := tx.Account(ctx, acctID)
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		acct.Balance = acct.Balance.Add(deltas[acctID])
		if err := tx.SaveAccount(ctx, acct); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}
	return nil
}

// AccountBalance returns the cached balance when asOf is zero, otherwise
// recomputes the balance by replaying entries dated on or before asOf.
// Replay never mutates anything.
func (s *Service) AccountBalance(ctx context.Context, id uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	acct, err := s.store.Account(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, NotFoundError{Kind: "account", ID: id}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load account: %w", err)
	}
	if asOf.IsZero() {
		return acct.Balance, nil
	}

	txns, err := s.store.TransactionsByAccount(ctx, id, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load transactions: %w", err)
	}
	balance := decimal.Zero
	for _, t := range txns {
		for _, e := range t.Entries {
			if e.AccountID == id {
				balance = balance.Add(e.SignedEffect(acct.Class))
			}
		}
	}
	return balance, nil
}

// CreateAccount validates and persists a new account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, a model.Account) (model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Balance = decimal.Zero
	if err := a.Validate(); err != nil {
		return model.Account{}, err
	}
	if _, err := s.store.AccountByName(ctx, a.Name); err == nil {
		return model.Account{}, fmt.Errorf("account %q already exists", a.Name)
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("check name: %w", err)
	}
	if err := s.store.SaveAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("save account: %w", err)
	}
	return a, nil
}

// DeleteAccount removes an account. System accounts and accounts with posted
// entries are protected.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.store.Account(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{Kind: "account", ID: id}
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct.IsSystem {
		return fmt.Errorf("account %q is a system account and cannot be deleted", acct.Name)
	}

	txns, err := s.store.TransactionsByAccount(ctx, id, time.Time{})
	if err != nil {
		return fmt.Errorf("check entries: %w", err)
	}
	if len(txns) > 0 {
		return fmt.Errorf("account %q has %d transactions; reverse them first", acct.Name, len(txns))
	}
	return s.store.DeleteAccount(ctx, id)
}

// DeactivateAccount marks an account inactive without touching history.
func (s *Service) DeactivateAccount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.store.Account(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundError{Kind: "account", ID: id}
	}
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	acct.IsActive = false
	return s.store.SaveAccount(ctx, acct)
}

// Account returns one account.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (model.Account, error) {
	acct, err := s.store.Account(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, NotFoundError{Kind: "account", ID: id}
	}
	return acct, err
}

// AccountByName returns one account by its unique name.
func (s *Service) AccountByName(ctx context.Context, name string) (model.Account, error) {
	return s.store.AccountByName(ctx, name)
}

// Accounts returns the chart of accounts.
func (s *Service) Accounts(ctx context.Context) ([]model.Account, error) {
	return s.store.Accounts(ctx)
}

// Transactions returns all transactions in date order.
func (s *Service) Transactions(ctx context.Context) ([]model.Transaction, error) {
	return s.store.Transactions(ctx)
}

// OpeningBalance posts an opening balance for an account against the system
// opening-balances equity account, creating that account on first use.
func (s *Service) OpeningBalance(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, date time.Time) (model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.store.Account(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Transaction{}, NotFoundError{Kind: "account", ID: accountID}
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("load account: %w", err)
	}

	equity, err := s.ensureOpeningEquity(ctx, acct.Currency)
	if err != nil {
		return model.Transaction{}, err
	}

	// Assets open with a debit; liabilities with a credit. The equity side
	// takes the opposite type.
	acctType := acct.Class.NormalBalance()
	return s.post(ctx, s.store, PostParams{
		Date:        date,
		Description: "Opening balance: " + acct.Name,
		Entries: []EntryParams{
			{AccountID: acct.ID, Type: acctType, Amount: amount},
			{AccountID: equity.ID, Type: acctType.Opposite(), Amount: amount},
		},
	})
}

func (s *Service) ensureOpeningEquity(ctx context.Context, currency string) (model.Account, error) {
	acct, err := s.store.AccountByName(ctx, openingBalancesName)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("load opening balances account: %w", err)
	}

	acct = model.Account{
		ID:       uuid.New(),
		Name:     openingBalancesName,
		Currency: currency,
		Class:    model.ClassEquity,
		Type:     model.TypeOpeningBalance,
		IsActive: true,
		IsSystem: true,
		Balance:  decimal.Zero,
	}
	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return model.Account{}, fmt.Errorf("create opening balances account: %w", err)
	}
	return acct, nil
}
