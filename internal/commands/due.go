package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/schedule"
)

func newDueCommand(dir *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "Post all recurring transactions due today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			on, err := parseDate(date, today())
			if err != nil {
				return err
			}

			runner := schedule.NewRunner(e.ledger, e.store, slog.Default(), e.logDir())
			results, err := runner.RunDue(cmd.Context(), on)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "Nothing due on %s\n", on.Format(dateLayout))
				return nil
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(out, "FAILED %s: %v\n", r.RuleName, r.Err)
					continue
				}
				fmt.Fprintf(out, "Posted %s (%s)\n", r.RuleName, r.Transaction.ID)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d due rules failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "run the sweep as of this date (YYYY-MM-DD, default today)")
	return cmd
}
