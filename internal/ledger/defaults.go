package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

// openingBalancesName is the protected system equity account every ledger
// gets on first opening-balance post.
const openingBalancesName = "Opening Balances"

// DefaultChart returns the starter chart of accounts for a personal ledger.
func DefaultChart(currency string) []model.Account {
	mk := func(name, number string, typ model.AccountType) model.Account {
		class, _ := typ.Class()
		return model.Account{
			ID:       uuid.New(),
			Name:     name,
			Number:   number,
			Currency: currency,
			Class:    class,
			Type:     typ,
			IsActive: true,
			Balance:  decimal.Zero,
		}
	}

	chart := []model.Account{
		mk("Checking", "1010", model.TypeBank),
		mk("Savings", "1020", model.TypeBank),
		mk("Cash", "1030", model.TypeCash),
		mk("Credit Card", "2010", model.TypeCreditCard),
		mk("Salary", "4010", model.TypeSalary),
		mk("Interest Income", "4020", model.TypeInterest),
		mk("Groceries", "5010", model.TypeFood),
		mk("Rent", "5020", model.TypeHousing),
		mk("Transport", "5030", model.TypeTransport),
		mk("Utilities", "5040", model.TypeUtilities),
		mk("Entertainment", "5050", model.TypeEntertainment),
		mk("Loan Interest", "5060", model.TypeLoanInterest),
		mk("Other Expenses", "5099", model.TypeOtherExpense),
	}

	equity := mk(openingBalancesName, "3010", model.TypeOpeningBalance)
	equity.IsSystem = true
	return append(chart, equity)
}

// SeedDefaultChart writes the default chart into an empty ledger. It refuses
// to run when accounts already exist.
func (s *Service) SeedDefaultChart(ctx context.Context, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("check accounts: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("ledger already has %d accounts", len(existing))
	}

	return s.store.RunInTransaction(ctx, func(tx store.Store) error {
		for _, a := range DefaultChart(currency) {
			if err := tx.SaveAccount(ctx, a); err != nil {
				return fmt.Errorf("seed account %q: %w", a.Name, err)
			}
		}
		return nil
	})
}
