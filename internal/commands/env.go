package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/tally-dev/tally/internal/config"
	"github.com/tally-dev/tally/internal/ledger"
	"github.com/tally-dev/tally/internal/store"
)

const dateLayout = "2006-01-02"

// env is the opened ledger environment shared by all commands.
type env struct {
	cfg        *config.Config
	configPath string
	store      *store.SQLite
	ledger     *ledger.Service
}

// openEnv loads <dir>/tally.yaml and opens the SQLite store it points at.
func openEnv(dir string) (*env, error) {
	configPath := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("no ledger at %s (run `tally init` first): %w", dir, err)
	}

	st, err := store.OpenSQLite(cfg.DatabasePath(configPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &env{
		cfg:        cfg,
		configPath: configPath,
		store:      st,
		ledger:     ledger.NewService(st),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// logDir returns where the run log lives, or "" when disabled.
func (e *env) logDir() string {
	if !e.cfg.Schedule.RunLog {
		return ""
	}
	return filepath.Dir(e.configPath)
}

// parseDate parses a YYYY-MM-DD flag value; empty means fallback.
func parseDate(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return d, nil
}

// today returns the current date at midnight UTC.
func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
