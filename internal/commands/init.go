package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/store"
)

func newInitCommand(dir *string) *cobra.Command {
	var name string
	var currency string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new ledger with the default chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(*dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			return runInit(cmd, absDir, name, currency)
		},
	}

	cmd.Flags().StringVar(&name, "name", "Personal", "ledger name")
	cmd.Flags().StringVar(&currency, "currency", "USD", "base currency code")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, currency string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.Default(name, currency)
	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	st, err := store.OpenSQLite(cfg.DatabasePath(configPath))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer st.Close()

	if err := ledger.NewService(st).SeedDefaultChart(cmd.Context(), currency); err != nil {
		return fmt.Errorf("seeding chart of accounts: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized ledger %q at %s (%s)\n", name, dir, currency)
	return nil
}
