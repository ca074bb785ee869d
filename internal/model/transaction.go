package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the side of a double-entry.
type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// Opposite flips debit <-> credit.
func (t EntryType) Opposite() EntryType {
	if t == Debit {
		return Credit
	}
	return Debit
}

// Entry is one side of a transaction, targeting a single account.
// Amount is always non-negative; direction comes from Type.
type Entry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Type          EntryType
	Amount        decimal.Decimal
}

// SignedEffect returns the delta this entry applies to the balance of an
// account of the given class: positive when the entry type matches the
// class's normal balance, negative otherwise.
func (e Entry) SignedEffect(class AccountClass) decimal.Decimal {
	if e.Type == class.NormalBalance() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// Attachment is an opaque document tied to a transaction (receipt scan, etc).
type Attachment struct {
	ID       uuid.UUID
	Filename string
	MimeType string
	Data     []byte
}

// Transaction is a dated, balanced set of entries.
type Transaction struct {
	ID          uuid.UUID
	Date        time.Time
	Description string
	Reference   string
	CreatedAt   time.Time
	IsRecurring bool
	RuleID      uuid.UUID // zero when not materialized from a recurrence rule
	Entries     []Entry
	Attachments []Attachment
}

// TotalDebits sums the debit entries.
func (t Transaction) TotalDebits() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t.Entries {
		if e.Type == Debit {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// TotalCredits sums the credit entries.
func (t Transaction) TotalCredits() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t.Entries {
		if e.Type == Credit {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// IsBalanced reports whether debits equal credits.
func (t Transaction) IsBalanced() bool {
	return t.TotalDebits().Equal(t.TotalCredits())
}
