package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/money"
)

func newBalanceCommand(dir *string) *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "balance <account-name>",
		Short: "Show an account balance, optionally as of a past date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			a, err := e.ledger.AccountByName(ctx, args[0])
			if err != nil {
				return err
			}

			cutoff, err := parseDate(asOf, time.Time{})
			if err != nil {
				return err
			}
			bal, err := e.ledger.AccountBalance(ctx, a.ID, cutoff)
			if err != nil {
				return err
			}

			if cutoff.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.Name, money.Format(bal, a.Currency))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s as of %s: %s\n",
					a.Name, cutoff.Format(dateLayout), money.Format(bal, a.Currency))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "report the balance as of this date (YYYY-MM-DD)")
	return cmd
}
