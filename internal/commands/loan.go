package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/amortize"
	"github.com/tally-dev/tally/internal/model"
	"github.com/tally-dev/tally/internal/money"
)

// loanFlags collects the parameters describing one loan on the command line.
type loanFlags struct {
	name      string
	principal string
	rate      string
	term      int
	frequency string
	start     string
	currency  string
}

func (f *loanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "loan", "loan name")
	cmd.Flags().StringVar(&f.principal, "principal", "", "principal amount (required)")
	_ = cmd.MarkFlagRequired("principal")
	cmd.Flags().StringVar(&f.rate, "rate", "", "annual interest rate as a fraction, e.g. 0.05 (required)")
	_ = cmd.MarkFlagRequired("rate")
	cmd.Flags().IntVar(&f.term, "term", 0, "number of payment periods (required)")
	_ = cmd.MarkFlagRequired("term")
	cmd.Flags().StringVar(&f.frequency, "frequency", "monthly", "payment frequency: monthly, biweekly, weekly")
	cmd.Flags().StringVar(&f.start, "start", "", "first payment date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.currency, "currency", "USD", "currency code")
}

func (f *loanFlags) loan() (model.Loan, error) {
	principal, err := decimal.NewFromString(f.principal)
	if err != nil {
		return model.Loan{}, fmt.Errorf("invalid principal %q: %w", f.principal, err)
	}
	rate, err := decimal.NewFromString(f.rate)
	if err != nil {
		return model.Loan{}, fmt.Errorf("invalid rate %q: %w", f.rate, err)
	}
	start, err := parseDate(f.start, today())
	if err != nil {
		return model.Loan{}, err
	}
	return model.Loan{
		Name:        f.name,
		Principal:   principal,
		AnnualRate:  rate,
		TermPeriods: f.term,
		Frequency:   model.PaymentFrequency(f.frequency),
		StartDate:   start,
		Currency:    f.currency,
	}, nil
}

func newLoanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Amortization schedules, payoff quotes, and scenario comparison",
	}
	cmd.AddCommand(newLoanScheduleCommand())
	cmd.AddCommand(newLoanPayoffCommand())
	cmd.AddCommand(newLoanCompareCommand())
	return cmd
}

func newLoanScheduleCommand() *cobra.Command {
	var flags loanFlags
	var extra string
	var extraAfter int
	var extraMode string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the full amortization schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loan()
			if err != nil {
				return err
			}

			var periods []amortize.Period
			if extra != "" {
				amount, err := decimal.NewFromString(extra)
				if err != nil {
					return fmt.Errorf("invalid extra payment %q: %w", extra, err)
				}
				periods, err = amortize.SimulateExtraPayment(l, amount, extraAfter, amortize.ExtraMode(extraMode))
				if err != nil {
					return err
				}
			} else {
				periods, err = amortize.Schedule(l)
				if err != nil {
					return err
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tDATE\tPAYMENT\tINTEREST\tPRINCIPAL\tREMAINING")
			totalInterest := decimal.Zero
			for _, p := range periods {
				totalInterest = totalInterest.Add(p.Interest)
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					p.Number, p.Date.Format(dateLayout),
					money.Format(p.Payment, l.Currency),
					money.Format(p.Interest, l.Currency),
					money.Format(p.Principal, l.Currency),
					money.Format(p.Remaining, l.Currency))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total interest: %s over %d periods\n",
				money.Format(totalInterest, l.Currency), len(periods))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&extra, "extra", "", "simulate a one-time extra principal payment")
	cmd.Flags().IntVar(&extraAfter, "extra-after", 1, "apply the extra payment after this period")
	cmd.Flags().StringVar(&extraMode, "extra-mode", string(amortize.ShortenTerm),
		"shorten_term or reduce_payment")
	return cmd
}

func newLoanPayoffCommand() *cobra.Command {
	var flags loanFlags
	var asOf string

	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Quote the payoff amount on a given date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loan()
			if err != nil {
				return err
			}
			date, err := parseDate(asOf, today())
			if err != nil {
				return err
			}

			principal, accrued, err := amortize.Payoff(l, date)
			if err != nil {
				return err
			}
			total := principal.Add(accrued)
			fmt.Fprintf(cmd.OutOrStdout(), "Payoff on %s: %s (principal %s + accrued interest %s)\n",
				date.Format(dateLayout),
				money.Format(total, l.Currency),
				money.Format(principal, l.Currency),
				money.Format(accrued, l.Currency))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&asOf, "as-of", "", "payoff date (YYYY-MM-DD, default today)")
	return cmd
}

func newLoanCompareCommand() *cobra.Command {
	var flags loanFlags
	var altTerms []int

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare total interest across alternative terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.loan()
			if err != nil {
				return err
			}

			var alts []model.Loan
			for _, t := range altTerms {
				alt := base
				alt.Name = fmt.Sprintf("%s @%d periods", base.Name, t)
				alt.TermPeriods = t
				alts = append(alts, alt)
			}

			results, err := amortize.CompareScenarios(base, alts)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SCENARIO\tPAYMENT\tPERIODS\tTOTAL INTEREST\tTOTAL PAID")
			for _, r := range results {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					r.Name,
					money.Format(r.Payment, base.Currency),
					r.Periods,
					money.Format(r.TotalInterest, base.Currency),
					money.Format(r.TotalPaid, base.Currency))
			}
			return w.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&altTerms, "alt-terms", nil, "alternative term lengths to compare")
	return cmd
}
