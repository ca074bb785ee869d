// Package store is the persistence substrate for the ledger. It exposes a
// narrow create/read/delete/query contract plus an all-or-nothing transaction
// scope; callers never see the storage engine.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tally-dev/tally/internal/model"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract. Implementations must make
// RunInTransaction atomic: either every write inside fn is visible
// afterwards, or none are.
type Store interface {
	SaveAccount(ctx context.Context, a model.Account) error
	Account(ctx context.Context, id uuid.UUID) (model.Account, error)
	AccountByName(ctx context.Context, name string) (model.Account, error)
	Accounts(ctx context.Context) ([]model.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	SaveTransaction(ctx context.Context, t model.Transaction) error
	Transaction(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	Transactions(ctx context.Context) ([]model.Transaction, error)
	// TransactionsByAccount returns transactions touching the account, dated
	// on or before until. A zero until means no upper bound.
	TransactionsByAccount(ctx context.Context, accountID uuid.UUID, until time.Time) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error

	SaveRule(ctx context.Context, r model.RecurrenceRule) error
	Rule(ctx context.Context, id uuid.UUID) (model.RecurrenceRule, error)
	Rules(ctx context.Context) ([]model.RecurrenceRule, error)
	ActiveRules(ctx context.Context) ([]model.RecurrenceRule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error

	// RunInTransaction executes fn against a transactional view of the store.
	// fn returning an error (or ctx cancellation) rolls every write back.
	RunInTransaction(ctx context.Context, fn func(Store) error) error
}
