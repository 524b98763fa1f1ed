package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Repair.MaxRetries)
	assert.Equal(t, 120, cfg.Checker.MaxLineLength)
	assert.Equal(t, 30*time.Second, cfg.GetHarnessTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetCaseTimeout())
	assert.Equal(t, 5*time.Second, cfg.GetPacing())
	assert.True(t, cfg.IsExempt("breadth_first_search"))
	assert.False(t, cfg.IsExempt("bitcount"))
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Harness.Timeout, cfg.Harness.Timeout)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mender.yaml")
	content := `
paths:
  fixtures_dir: /data/json_testcases
  scratch_dir: /tmp/scratch
  output_dir: /data/fixed
harness:
  timeout: 10s
  case_timeout: 250ms
  max_output_bytes: 4096
repair:
  max_retries: 2
  workers: 4
  validation_exempt: [detect_cycle]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/data/json_testcases", cfg.Paths.FixturesDir)
	assert.Equal(t, 10*time.Second, cfg.GetHarnessTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetCaseTimeout())
	assert.Equal(t, 2, cfg.Repair.MaxRetries)
	assert.Equal(t, 4, cfg.Repair.Workers)
	assert.True(t, cfg.IsExempt("detect_cycle"))
	assert.False(t, cfg.IsExempt("breadth_first_search"), "list is replaced, not merged")
	// Untouched sections keep their defaults
	assert.Equal(t, 120, cfg.Checker.MaxLineLength)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mender.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harness: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad duration", func(c *Config) { c.Harness.Timeout = "soon" }},
		{"negative retries", func(c *Config) { c.Repair.MaxRetries = -1 }},
		{"zero workers", func(c *Config) { c.Repair.Workers = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "oracle" }},
		{"metrics without path", func(c *Config) { c.Metrics.Enabled = true }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"zero line length", func(c *Config) { c.Checker.MaxLineLength = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mender.yaml")
	cfg := DefaultConfig()
	cfg.Repair.MaxRetries = 3

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Repair.MaxRetries)
}

func TestGetPacing_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Repair.Pacing = ""
	assert.Equal(t, time.Duration(0), cfg.GetPacing())
}
