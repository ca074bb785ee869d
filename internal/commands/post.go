package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/model"
)

func newPostCommand(dir *string) *cobra.Command {
	var date, description, reference, debit, credit, amount string

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a balanced transaction between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			debitAcct, err := e.ledger.AccountByName(ctx, debit)
			if err != nil {
				return fmt.Errorf("debit account: %w", err)
			}
			creditAcct, err := e.ledger.AccountByName(ctx, credit)
			if err != nil {
				return fmt.Errorf("credit account: %w", err)
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}
			d, err := parseDate(date, today())
			if err != nil {
				return err
			}

			txn, err := e.ledger.PostTransaction(ctx, ledger.PostParams{
				Date:        d,
				Description: description,
				Reference:   reference,
				Entries: []ledger.EntryParams{
					{AccountID: debitAcct.ID, Type: model.Debit, Amount: amt},
					{AccountID: creditAcct.ID, Type: model.Credit, Amount: amt},
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s: %s %s -> %s (%s)\n",
				txn.Date.Format(dateLayout), amount, credit, debit, txn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&description, "desc", "", "description")
	cmd.Flags().StringVar(&reference, "ref", "", "external reference")
	cmd.Flags().StringVar(&debit, "debit", "", "account to debit (required)")
	_ = cmd.MarkFlagRequired("debit")
	cmd.Flags().StringVar(&credit, "credit", "", "account to credit (required)")
	_ = cmd.MarkFlagRequired("credit")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newReverseCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reverse <transaction-id>",
		Short: "Reverse a transaction, undoing its balance effects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}

			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.ledger.ReverseTransaction(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reversed %s\n", id)
			return nil
		},
	}
	return cmd
}
