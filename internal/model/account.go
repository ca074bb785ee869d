package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountClass is the top-level accounting classification.
type AccountClass string

const (
	ClassAsset     AccountClass = "asset"
	ClassLiability AccountClass = "liability"
	ClassEquity    AccountClass = "equity"
	ClassIncome    AccountClass = "income"
	ClassExpense   AccountClass = "expense"
)

// normalBalance maps each class to the entry type that increases it.
var normalBalance = map[AccountClass]EntryType{
	ClassAsset:     Debit,
	ClassExpense:   Debit,
	ClassLiability: Credit,
	ClassEquity:    Credit,
	ClassIncome:    Credit,
}

// NormalBalance returns the entry type that increases balances of this class.
func (c AccountClass) NormalBalance() EntryType {
	return normalBalance[c]
}

// Valid reports whether c is a known account class.
func (c AccountClass) Valid() bool {
	_, ok := normalBalance[c]
	return ok
}

// AccountType refines an AccountClass (e.g. bank vs cash within assets).
type AccountType string

const (
	TypeBank           AccountType = "bank"
	TypeCash           AccountType = "cash"
	TypeInvestment     AccountType = "investment"
	TypeCreditCard     AccountType = "credit_card"
	TypeLoan           AccountType = "loan"
	TypeMortgage       AccountType = "mortgage"
	TypeOpeningBalance AccountType = "opening_balance"
	TypeSalary         AccountType = "salary"
	TypeInterest       AccountType = "interest"
	TypeFood           AccountType = "food"
	TypeHousing        AccountType = "housing"
	TypeTransport      AccountType = "transport"
	TypeUtilities      AccountType = "utilities"
	TypeEntertainment  AccountType = "entertainment"
	TypeLoanInterest   AccountType = "loan_interest"
	TypeOtherExpense   AccountType = "other_expense"
)

// typeClass is the static type -> class table. Every AccountType must appear
// here; Account validation rejects types that do not.
var typeClass = map[AccountType]AccountClass{
	TypeBank:           ClassAsset,
	TypeCash:           ClassAsset,
	TypeInvestment:     ClassAsset,
	TypeCreditCard:     ClassLiability,
	TypeLoan:           ClassLiability,
	TypeMortgage:       ClassLiability,
	TypeOpeningBalance: ClassEquity,
	TypeSalary:         ClassIncome,
	TypeInterest:       ClassIncome,
	TypeFood:           ClassExpense,
	TypeHousing:        ClassExpense,
	TypeTransport:      ClassExpense,
	TypeUtilities:      ClassExpense,
	TypeEntertainment:  ClassExpense,
	TypeLoanInterest:   ClassExpense,
	TypeOtherExpense:   ClassExpense,
}

// Class returns the account class an account type belongs to.
func (t AccountType) Class() (AccountClass, bool) {
	c, ok := typeClass[t]
	return c, ok
}

// Account is one entry in the chart of accounts. Balance is a cached running
// total maintained by the ledger; nothing else may write it.
type Account struct {
	ID       uuid.UUID
	Name     string
	Number   string
	Currency string
	Class    AccountClass
	Type     AccountType
	IsActive bool
	IsSystem bool
	Balance  decimal.Decimal
}

// Validate checks the class/type consistency invariant.
func (a Account) Validate() error {
	c, ok := a.Type.Class()
	if !ok {
		return fmt.Errorf("unknown account type %q", a.Type)
	}
	if c != a.Class {
		return fmt.Errorf("account type %q belongs to class %q, not %q", a.Type, c, a.Class)
	}
	return nil
}
