package perception

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"mender/internal/logging"
)

// OpenAIClient implements LLMClient for OpenAI and compatible endpoints.
type OpenAIClient struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIClient creates an OpenAI client. A BaseURL selects a compatible
// endpoint.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(clientConfig), config: config}, nil
}

// Complete sends a prompt with the default system prompt.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, defaultSystemPrompt, prompt)
}

// CompleteWithSystem sends a system and a user message.
func (c *OpenAIClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})

	logging.APIDebug("openai request: model=%s prompt_len=%d", c.config.Model, len(userPrompt))
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	logging.APIDebug("openai response: finish_reason=%s", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
