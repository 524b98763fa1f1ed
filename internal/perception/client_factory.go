package perception

import (
	"context"
	"fmt"

	"mender/internal/config"
)

// NewClientFromConfig builds the client for the configured provider.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	switch Provider(cfg.LLM.Provider) {
	case ProviderGemini:
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.GetLLMTimeout(),
		})
	case ProviderOpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.GetLLMTimeout(),
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLM.Provider)
	}
}
