package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/export"
)

func newExportCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger as JSON backup, CSV, or OFX",
	}
	cmd.AddCommand(newExportJSONCommand(dir))
	cmd.AddCommand(newExportCSVCommand(dir))
	cmd.AddCommand(newExportOFXCommand(dir))
	return cmd
}

func newExportJSONCommand(dir *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "json",
		Short: "Write a full versioned backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			data, err := export.ExportBackup(cmd.Context(), e.store, time.Now().UTC())
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("writing backup: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote backup to %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func newExportCSVCommand(dir *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write every entry as one CSV row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return export.WriteCSV(cmd.Context(), e.store, w)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func newExportOFXCommand(dir *string) *cobra.Command {
	var out, account string

	cmd := &cobra.Command{
		Use:   "ofx",
		Short: "Write one account's statement in OFX format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			a, err := e.ledger.AccountByName(ctx, account)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return export.WriteOFX(ctx, e.store, a.ID, w)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account to export (required)")
	_ = cmd.MarkFlagRequired("account")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}

func newImportCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <backup.json>",
		Short: "Restore a JSON backup into an empty ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading backup: %w", err)
			}

			e, err := openEnv(*dir)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := export.ImportBackup(cmd.Context(), e.store, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", args[0])
			return nil
		},
	}
	return cmd
}
