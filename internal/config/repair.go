package config

import "time"

// RepairConfig configures the orchestrator's policy.
type RepairConfig struct {
	// MaxRetries is the number of re-generations after a failed verdict.
	MaxRetries int `yaml:"max_retries" validate:"gte=0,lte=10"`

	// Pacing is the minimum delay between targets (external rate limits).
	Pacing string `yaml:"pacing" validate:"omitempty,duration"`

	// Workers > 1 repairs several targets at once.
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`

	// ValidationExempt lists targets accepted without running the harness.
	ValidationExempt []string `yaml:"validation_exempt" validate:"dive,required"`

	// DryRun runs the pipeline without writing corrected files.
	DryRun bool `yaml:"dry_run"`
}

// GetPacing returns the inter-target delay. Zero disables pacing.
func (c *Config) GetPacing() time.Duration {
	if c.Repair.Pacing == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Repair.Pacing)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// IsExempt reports whether validation is skipped for a target.
func (c *Config) IsExempt(target string) bool {
	for _, name := range c.Repair.ValidationExempt {
		if name == target {
			return true
		}
	}
	return false
}
