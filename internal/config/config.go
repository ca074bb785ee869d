package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked for in the data directory.
const FileName = "tally.yaml"

// Config represents the top-level tally.yaml configuration.
type Config struct {
	Ledger     LedgerConfig     `yaml:"ledger"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Projection ProjectionConfig `yaml:"projection"`
}

// LedgerConfig identifies the ledger and its storage.
type LedgerConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	// Database is the SQLite file path, relative to the config file's
	// directory unless absolute.
	Database string `yaml:"database"`
}

// ScheduleConfig controls the recurrence sweep.
type ScheduleConfig struct {
	// WeekendAdjustment is the default applied to new rules: "none",
	// "previous_friday", or "next_monday".
	WeekendAdjustment string `yaml:"weekend_adjustment"`
	// RunLog enables the CSV audit trail of sweep outcomes.
	RunLog bool `yaml:"run_log"`
}

// ProjectionConfig holds balance-projection defaults.
type ProjectionConfig struct {
	// HorizonMonths is how far ahead `project` looks when no end date is
	// given.
	HorizonMonths int `yaml:"horizon_months"`
}

// Load reads a tally.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(name, currency string) *Config {
	return &Config{
		Ledger: LedgerConfig{
			Name:     name,
			Currency: currency,
			Database: "tally.db",
		},
		Schedule: ScheduleConfig{
			WeekendAdjustment: "none",
			RunLog:            true,
		},
		Projection: ProjectionConfig{
			HorizonMonths: 12,
		},
	}
}

// DatabasePath resolves the configured database location against the config
// file's directory.
func (c *Config) DatabasePath(configPath string) string {
	if filepath.IsAbs(c.Ledger.Database) {
		return c.Ledger.Database
	}
	return filepath.Join(filepath.Dir(configPath), c.Ledger.Database)
}
