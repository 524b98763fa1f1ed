package config

import (
	"fmt"
	"time"
)

// Supported reasoning providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{ProviderGemini, ProviderOpenAI}

// LLMConfig configures the client behind the repair stages.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=gemini openai"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model" validate:"required"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	Timeout     string  `yaml:"timeout" validate:"duration"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
}

// GetLLMTimeout returns the per-call timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// ValidateLLM checks that the reasoning service can be reached at all.
// Commands that never call the service (check, validate) skip it.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY, GOOGLE_API_KEY or OPENAI_API_KEY)")
	}
	return nil
}
