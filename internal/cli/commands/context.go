// Package commands implements the subfarm subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/ledger"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext creates a CommandContext from the loaded
// configuration and the logger stored in the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		Path:      config.DefaultRoot,
		Wrap:      config.DefaultWrap,
		CheckFile: config.DefaultCheckFile,
		Run: config.RunConfig{
			Command:  config.DefaultCommand,
			Statuses: config.DefaultStatuses,
		},
	}
}

// openLedger opens the dispatch ledger for the given subtask root,
// creating its directory and schema on first use.
func openLedger(cc *CommandContext, root string) (*ledger.SQLiteStore, error) {
	path := cc.Cfg.LedgerPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	store := ledger.NewSQLiteStore(cc.Logger)
	if err := store.Open(path); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
