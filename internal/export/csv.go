package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/store"
)

// csvHeader is the flattened one-row-per-entry export header.
var csvHeader = []string{
	"transaction_id", "date", "description", "reference",
	"entry_type", "amount", "account_name", "account_class", "account_type", "currency",
}

// WriteCSV writes every entry as one CSV row. encoding/csv quotes fields
// containing commas, quotes, or newlines, doubling internal quotes.
func WriteCSV(ctx context.Context, st store.Store, w io.Writer) error {
	accounts, err := st.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	byID := make(map[uuid.UUID]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	txns, err := st.Transactions(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, t := range txns {
		for _, e := range t.Entries {
			acct := byID[e.AccountID]
			row := []string{
				t.ID.String(),
				t.Date.Format(dateFormat),
				t.Description,
				t.Reference,
				string(e.Type),
				e.Amount.StringFixed(2),
				acct.Name,
				string(acct.Class),
				string(acct.Type),
				acct.Currency,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing row for %s: %w", t.ID, err)
			}
		}
	}
	return cw.Error()
}
