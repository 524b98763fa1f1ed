package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the file looked up when --config is not given.
const DefaultConfigFile = "mender.yaml"

// Config holds all mender configuration.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// Where targets' fixtures live and where candidates are written.
	Paths PathsConfig `yaml:"paths"`

	// Reasoning service used by the repair stages
	LLM LLMConfig `yaml:"llm"`

	// Validation oracle
	Harness HarnessConfig `yaml:"harness"`

	// Orchestrator policy
	Repair RepairConfig `yaml:"repair"`

	// Static checks
	Checker CheckerConfig `yaml:"checker"`

	// Metrics export
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates the directories shared by the harness and the orchestrator.
type PathsConfig struct {
	FixturesDir string `yaml:"fixtures_dir" validate:"required"`
	ScratchDir  string `yaml:"scratch_dir" validate:"required"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
}

// CheckerConfig configures the static checker.
type CheckerConfig struct {
	MaxLineLength int `yaml:"max_line_length" validate:"gt=0"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TextfilePath string `yaml:"textfile_path" validate:"required_if=Enabled true"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name: "mender",

		Paths: PathsConfig{
			FixturesDir: "fixtures",
			ScratchDir:  filepath.Join(os.TempDir(), "mender-scratch"),
			OutputDir:   "corrected",
		},

		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Timeout:     "120s",
			Temperature: 0.3,
		},

		Harness: HarnessConfig{
			Timeout:        "30s",
			CaseTimeout:    "5s",
			MaxOutputBytes: 1 << 20,
			Verbose:        true,
			AllowedEnvVars: []string{"PATH", "HOME", "TMPDIR", "GOROOT", "GOPATH"},
		},

		Repair: RepairConfig{
			MaxRetries: 1,
			Pacing:     "5s",
			Workers:    1,
			ValidationExempt: []string{
				"breadth_first_search",
				"depth_first_search",
				"detect_cycle",
				"minimum_spanning_tree",
				"reverse_linked_list",
				"shortest_path_length",
				"shortest_path_lengths",
				"shortest_paths",
				"topological_ordering",
			},
		},

		Checker: CheckerConfig{
			MaxLineLength: 120,
		},

		Metrics: MetricsConfig{
			Enabled: false,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults (with environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Gemini keys first so an explicit OPENAI_API_KEY wins
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderGemini
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = ProviderOpenAI
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}
	if model := os.Getenv("MENDER_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if dir := os.Getenv("MENDER_FIXTURES_DIR"); dir != "" {
		c.Paths.FixturesDir = dir
	}
	if dir := os.Getenv("MENDER_OUTPUT_DIR"); dir != "" {
		c.Paths.OutputDir = dir
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
