package perception

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"mender/internal/logging"
)

// GeminiClient implements LLMClient with the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, config: config}, nil
}

// Complete sends a prompt with the default system prompt.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, defaultSystemPrompt, prompt)
}

// CompleteWithSystem sends a prompt with a system instruction.
func (c *GeminiClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.config.Temperature),
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	logging.APIDebug("gemini request: model=%s prompt_len=%d", c.config.Model, len(userPrompt))
	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(userPrompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Gemini returned an empty response")
	}
	return text, nil
}
