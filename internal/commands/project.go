package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
	"github.com/tally-dev/tally/internal/projection"
)

func newProjectCommand(dir *string) *cobra.Command {
	var from, to, account string
	var loanArgs loanFlags
	var withLoan bool
	var paymentAccount, loanAccount string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project future balances from recurrence rules and loan schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			accounts, err := e.ledger.Accounts(ctx)
			if err != nil {
				return err
			}
			rules, err := e.store.ActiveRules(ctx)
			if err != nil {
				return err
			}

			fromDate, err := parseDate(from, today())
			if err != nil {
				return err
			}
			horizon := fromDate.AddDate(0, e.cfg.Projection.HorizonMonths, 0)
			toDate, err := parseDate(to, horizon)
			if err != nil {
				return err
			}

			var loans []model.Loan
			if withLoan {
				l, err := loanArgs.loan()
				if err != nil {
					return err
				}
				l.Currency = e.cfg.Ledger.Currency
				l.PaymentAccountName = paymentAccount
				l.LoanAccountName = loanAccount
				loans = append(loans, l)
			}

			timeline, err := projection.Project(projection.Input{
				Accounts: accounts,
				Rules:    rules,
				Loans:    loans,
				From:     fromDate,
				To:       toDate,
			})
			if err != nil {
				return err
			}

			var focus *model.Account
			if account != "" {
				a, err := e.ledger.AccountByName(ctx, account)
				if err != nil {
					return err
				}
				focus = &a
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if focus != nil {
				fmt.Fprintf(w, "DATE\t%s\n", focus.Name)
				for _, p := range timeline {
					fmt.Fprintf(w, "%s\t%s\n", p.Date.Format(dateLayout),
						money.Format(p.Balances[focus.ID], focus.Currency))
				}
			} else {
				fmt.Fprintln(w, "DATE\tNET WORTH")
				for _, p := range timeline {
					fmt.Fprintf(w, "%s\t%s\n", p.Date.Format(dateLayout),
						money.Format(projection.NetWorth(p, accounts), e.cfg.Ledger.Currency))
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "projection start (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&to, "to", "", "projection end (YYYY-MM-DD, default start + configured horizon)")
	cmd.Flags().StringVar(&account, "account", "", "show one account instead of net worth")

	cmd.Flags().BoolVar(&withLoan, "with-loan", false, "include a loan's cash flows in the projection")
	cmd.Flags().StringVar(&loanArgs.name, "loan-name", "loan", "loan name")
	cmd.Flags().StringVar(&loanArgs.principal, "loan-principal", "", "loan principal")
	cmd.Flags().StringVar(&loanArgs.rate, "loan-rate", "", "loan annual rate, e.g. 0.05")
	cmd.Flags().IntVar(&loanArgs.term, "loan-term", 0, "loan payment periods")
	cmd.Flags().StringVar(&loanArgs.frequency, "loan-frequency", "monthly", "loan payment frequency")
	cmd.Flags().StringVar(&loanArgs.start, "loan-start", "", "loan first payment date")
	cmd.Flags().StringVar(&paymentAccount, "loan-payment-account", "", "account the payments draw from")
	cmd.Flags().StringVar(&loanAccount, "loan-account", "", "liability account the principal reduces")

	return cmd
}
