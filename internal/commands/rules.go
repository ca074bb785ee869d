package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
	"github.com/tally-dev/tally/internal/recurrence"
)

func newRulesCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage recurrence rules",
	}
	cmd.AddCommand(newRulesListCommand(dir))
	cmd.AddCommand(newRulesAddCommand(dir))
	cmd.AddCommand(newRulesDisableCommand(dir))
	return cmd
}

func newRulesListCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurrence rules and their next occurrences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			rules, err := e.store.Rules(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFREQUENCY\tAMOUNT\tNEXT\tACTIVE")
			for _, r := range rules {
				next := "-"
				if n, ok, err := recurrence.NextOccurrence(r, today().AddDate(0, 0, -1)); err == nil && ok {
					next = n.Format(dateLayout)
				}
				fmt.Fprintf(w, "%s\t%s x%d\t%s\t%s\t%t\n",
					r.Name, r.Frequency, r.Interval, money.Format(r.Amount, r.Currency), next, r.IsActive)
			}
			return w.Flush()
		},
	}
	return cmd
}

func newRulesAddCommand(dir *string) *cobra.Command {
	var (
		name, description, frequency, weekend    string
		start, end, amount, debit, credit        string
		interval, dayOfMonth, dayOfWeek, monthOf int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a recurrence rule",
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
			startDate, err := parseDate(start, today())
			if err != nil {
				return err
			}
			endDate, err := parseDate(end, time.Time{})
			if err != nil {
				return err
			}

			if weekend == "" {
				weekend = e.cfg.Schedule.WeekendAdjustment
			}

			rule := model.RecurrenceRule{
				ID:              uuid.New(),
				Name:            name,
				Description:     description,
				Frequency:       model.Frequency(frequency),
				Interval:        interval,
				DayOfMonth:      dayOfMonth,
				MonthOfYear:     time.Month(monthOf),
				Weekend:         model.WeekendAdjustment(weekend),
				StartDate:       startDate,
				EndDate:         endDate,
				Amount:          amt,
				Currency:        e.cfg.Ledger.Currency,
				DebitAccountID:  debitAcct.ID,
				CreditAccountID: creditAcct.ID,
				IsActive:        true,
			}
			if cmd.Flags().Changed("day-of-week") {
				rule.DayOfWeek = time.Weekday(dayOfWeek)
				rule.DayOfWeekSet = true
			}

			// Reject unschedulable rules up front instead of at sweep time.
			next, ok, err := recurrence.NextOccurrence(rule, startDate.AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			if ok {
				rule.NextOccurrence = next
			}

			if err := e.store.SaveRule(ctx, rule); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created rule %q, next occurrence %s\n",
				rule.Name, rule.NextOccurrence.Format(dateLayout))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "rule name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&description, "desc", "", "description used on posted transactions")
	cmd.Flags().StringVar(&frequency, "frequency", "", "daily, weekly, monthly, or yearly (required)")
	_ = cmd.MarkFlagRequired("frequency")
	cmd.Flags().IntVar(&interval, "interval", 1, "repeat every N periods")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "day of month (monthly/yearly)")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "day of week, 0=Sunday (weekly)")
	cmd.Flags().IntVar(&monthOf, "month", 0, "month of year, 1=January (yearly)")
	cmd.Flags().StringVar(&weekend, "weekend", "", "weekend adjustment: none, previous_friday, next_monday")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD, default open-ended)")
	cmd.Flags().StringVar(&amount, "amount", "", "amount (required)")
	_ = cmd.MarkFlagRequired("amount")
	cmd.Flags().StringVar(&debit, "debit", "", "account to debit (required)")
	_ = cmd.MarkFlagRequired("debit")
	cmd.Flags().StringVar(&credit, "credit", "", "account to credit (required)")
	_ = cmd.MarkFlagRequired("credit")

	return cmd
}

func newRulesDisableCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable <name>",
		Short: "Deactivate a recurrence rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			rules, err := e.store.Rules(ctx)
			if err != nil {
				return err
			}
			for _, r := range rules {
				if r.Name == args[0] {
					r.IsActive = false
					if err := e.store.SaveRule(ctx, r); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Disabled rule %q\n", r.Name)
					return nil
				}
			}
			return fmt.Errorf("no rule named %q", args[0])
		},
	}
	return cmd
}
