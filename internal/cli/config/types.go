// Package config provides configuration management for the subfarm CLI.
//
// Values load in precedence order flags > environment variables > config
// file > defaults. The config file is the nearest subfarm.yaml (or .yml)
// at or above the working directory, so the tool behaves the same from
// anywhere inside a job tree.
package config

import (
	"path/filepath"

	"github.com/openmech/subfarm/internal/dispatch"
	"github.com/openmech/subfarm/internal/monitor"
)

// Config holds all CLI configuration options.
type Config struct {
	// Path is the subtask root produced by setup.
	Path string `koanf:"path"`
	// Wrap caps how many subtask columns a status row may hold.
	Wrap int `koanf:"wrap"`
	// CheckFile receives the digest log paths after a status pass.
	CheckFile string `koanf:"check_file"`
	// Ledger overrides the dispatch ledger location
	// (default: DefaultLedgerFile under the subtask root).
	Ledger  string    `koanf:"ledger"`
	Verbose bool      `koanf:"verbose"`
	Run     RunConfig `koanf:"run"`
}

// RunConfig holds defaults for the run command.
type RunConfig struct {
	// Command is the payload command executed in each subtask directory.
	Command string `koanf:"command"`
	// ActivationHook is shell code eval'd on the node before the payload.
	ActivationHook string `koanf:"activation_hook"`
	// Statuses is the comma-separated list of statuses to (re)submit.
	Statuses string `koanf:"statuses"`
}

// Default configuration values - wrap and command share the engine defaults.
const (
	DefaultRoot       = "subtasks"
	DefaultCheckFile  = "check.log"
	DefaultStatuses   = "TBD"
	DefaultLedgerFile = ".subfarm/ledger.db"
	DefaultWrap       = monitor.DefaultWrap
	DefaultCommand    = dispatch.DefaultCommand
)

// LedgerPath returns the dispatch ledger location for a subtask root,
// honoring the configured override.
func (c *Config) LedgerPath(root string) string {
	if c.Ledger != "" {
		return c.Ledger
	}
	return filepath.Join(root, filepath.FromSlash(DefaultLedgerFile))
}
