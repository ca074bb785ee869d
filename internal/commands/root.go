// Package commands wires the CLI. Every command is thin: parse flags, open
// the ledger environment, call a service, print.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Personal double-entry ledger with recurring transactions and loan planning",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "ledger directory (holds tally.yaml and the database)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newInitCommand(&dir))
	rootCmd.AddCommand(newAccountsCommand(&dir))
	rootCmd.AddCommand(newPostCommand(&dir))
	rootCmd.AddCommand(newReverseCommand(&dir))
	rootCmd.AddCommand(newBalanceCommand(&dir))
	rootCmd.AddCommand(newRulesCommand(&dir))
	rootCmd.AddCommand(newDueCommand(&dir))
	rootCmd.AddCommand(newLoanCommand())
	rootCmd.AddCommand(newProjectCommand(&dir))
	rootCmd.AddCommand(newExportCommand(&dir))
	rootCmd.AddCommand(newImportCommand(&dir))

	return rootCmd
}
