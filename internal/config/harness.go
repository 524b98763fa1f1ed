package config

import "time"

// HarnessConfig configures the validation oracle and its child process.
type HarnessConfig struct {
	// Runner is the executable started as the child. Empty means the
	// running mender binary itself.
	Runner string `yaml:"runner"`

	// Timeout bounds one whole child run; the child is killed afterwards.
	Timeout string `yaml:"timeout" validate:"duration"`

	// CaseTimeout bounds a single fixture case inside the child.
	CaseTimeout string `yaml:"case_timeout" validate:"duration"`

	// MaxOutputBytes caps captured stdout and stderr each.
	MaxOutputBytes int64 `yaml:"max_output_bytes" validate:"gt=0"`

	// Verbose asks the child for human-readable per-case lines.
	Verbose bool `yaml:"verbose"`

	// Environment variables passed through to the child
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// GetHarnessTimeout returns the child run timeout as a duration.
func (c *Config) GetHarnessTimeout() time.Duration {
	return parseDuration(c.Harness.Timeout, 30*time.Second)
}

// GetCaseTimeout returns the per-case timeout as a duration.
func (c *Config) GetCaseTimeout() time.Duration {
	return parseDuration(c.Harness.CaseTimeout, 5*time.Second)
}
