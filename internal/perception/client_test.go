package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_CompleteWithSystem(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[` +
			`{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Off-by-one"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "m"})
	require.NoError(t, err)

	out, err := client.CompleteWithSystem(context.Background(), "be terse", "classify this")
	require.NoError(t, err)

	assert.Equal(t, "Off-by-one", out)
	assert.Equal(t, "m", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "classify this", got.Messages[1].Content)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), "hi")
	assert.ErrorContains(t, err, "no choices")
}

func TestOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

func TestGeminiClient_Construct(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), GeminiConfig{})
	assert.Error(t, err)

	client, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "test-key"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", client.config.Model)
}
