package config

import "mender/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string          `yaml:"level" validate:"oneof=debug info warn error"`
	Format      string          `yaml:"format" validate:"oneof=json console"`
	File        string          `yaml:"file"`
	Development bool            `yaml:"development"`
	Categories  map[string]bool `yaml:"categories"` // Per-category toggles
}

// LoggingOptions converts the config into logging.Initialize options.
func (c *Config) LoggingOptions(verbose bool) logging.Options {
	level := c.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.Options{
		Level:       level,
		Format:      c.Logging.Format,
		File:        c.Logging.File,
		Development: c.Logging.Development,
		Categories:  c.Logging.Categories,
	}
}
