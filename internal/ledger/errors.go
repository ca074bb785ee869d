package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnbalancedTransactionError reports entries whose debits and credits do not
// net to zero. No state is mutated when it is returned.
type UnbalancedTransactionError struct {
	Debits  decimal.Decimal
	Credits decimal.Decimal
}

func (e UnbalancedTransactionError) Error() string {
	return fmt.Sprintf("unbalanced transaction: debits (%s) != credits (%s)",
		e.Debits.StringFixed(2), e.Credits.StringFixed(2))
}

// NotFoundError reports a missing entity reference.
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AccountMismatchError reports an entry referencing an account that is not
// part of the target dataset, or whose currency conflicts with the
// transaction's.
type AccountMismatchError struct {
	AccountID uuid.UUID
	Reason    string
}

func (e AccountMismatchError) Error() string {
	return fmt.Sprintf("account %s: %s", e.AccountID, e.Reason)
}
