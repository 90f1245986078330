package config

import (
	"fmt"

	"github.com/openmech/subfarm/pkg/core"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.Wrap < 1 {
		return fmt.Errorf("wrap must be at least 1, got %d", c.Wrap)
	}
	if c.Run.Statuses != "" {
		if _, err := core.ParseStatusList(c.Run.Statuses); err != nil {
			return fmt.Errorf("invalid run.statuses: %w", err)
		}
	}
	return nil
}
