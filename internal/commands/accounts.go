package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
)

func newAccountsCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the chart of accounts",
	}
	cmd.AddCommand(newAccountsListCommand(dir))
	cmd.AddCommand(newAccountsAddCommand(dir))
	cmd.AddCommand(newAccountsDeactivateCommand(dir))
	return cmd
}

func newAccountsListCommand(dir *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			accounts, err := e.ledger.Accounts(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tNAME\tTYPE\tCLASS\tBALANCE")
			for _, a := range accounts {
				if !all && !a.IsActive {
					continue
				}
				name := a.Name
				if !a.IsActive {
					name += " (inactive)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.Number, name, a.Type, a.Class, money.Format(a.Balance, a.Currency))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include deactivated accounts")
	return cmd
}

func newAccountsAddCommand(dir *string) *cobra.Command {
	var name, number, typ, opening, openingDate string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account, optionally with an opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			accountType := model.AccountType(typ)
			class, ok := accountType.Class()
			if !ok {
				return fmt.Errorf("unknown account type %q", typ)
			}

			created, err := e.ledger.CreateAccount(cmd.Context(), model.Account{
				Name:     name,
				Number:   number,
				Currency: e.cfg.Ledger.Currency,
				Class:    class,
				Type:     accountType,
				IsActive: true,
			})
			if err != nil {
				return err
			}

			if opening != "" {
				amount, err := decimal.NewFromString(opening)
				if err != nil {
					return fmt.Errorf("invalid opening balance %q: %w", opening, err)
				}
				date, err := parseDate(openingDate, today())
				if err != nil {
					return err
				}
				if _, err := e.ledger.OpeningBalance(cmd.Context(), created.ID, amount, date); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created account %q (%s)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "account name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&number, "number", "", "chart-of-accounts number")
	cmd.Flags().StringVar(&typ, "type", "", "account type, e.g. bank, credit_card, loan (required)")
	_ = cmd.MarkFlagRequired("type")
	cmd.Flags().StringVar(&opening, "opening", "", "opening balance amount")
	cmd.Flags().StringVar(&openingDate, "opening-date", "", "opening balance date (YYYY-MM-DD, default today)")

	return cmd
}

func newAccountsDeactivateCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate <name>",
		Short: "Deactivate an account so it accepts no new entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			a, err := e.ledger.AccountByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := e.ledger.DeactivateAccount(cmd.Context(), a.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %q\n", a.Name)
			return nil
		},
	}
	return cmd
}
