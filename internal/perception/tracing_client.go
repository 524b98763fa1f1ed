package perception

import (
	"context"
	"time"

	"mender/internal/logging"
)

type stageKey struct{}

// WithStage tags ctx with the stage making the call.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFrom returns the stage tag set by WithStage, or "unknown".
func StageFrom(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// CallObserver receives one notification per completed call.
type CallObserver interface {
	ObserveLLMCall(stage string, duration time.Duration, err error)
}

// TracingLLMClient wraps any LLMClient, logging every interaction and
// reporting it to an optional observer.
type TracingLLMClient struct {
	underlying LLMClient
	observer   CallObserver
}

// NewTracingLLMClient creates a tracing wrapper around an existing client.
func NewTracingLLMClient(underlying LLMClient, observer CallObserver) *TracingLLMClient {
	return &TracingLLMClient{underlying: underlying, observer: observer}
}

// Complete implements LLMClient.Complete with tracing.
func (tc *TracingLLMClient) Complete(ctx context.Context, prompt string) (string, error) {
	return tc.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem implements LLMClient.CompleteWithSystem with tracing.
func (tc *TracingLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stage := StageFrom(ctx)
	start := time.Now()
	logging.API("LLM call started: stage=%s prompt_len=%d", stage, len(userPrompt))

	var (
		response string
		err      error
	)
	if systemPrompt == "" {
		response, err = tc.underlying.Complete(ctx, userPrompt)
	} else {
		response, err = tc.underlying.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	}
	duration := time.Since(start)

	if err != nil {
		logging.APIWarn("LLM call failed: stage=%s duration=%s error=%v", stage, duration, err)
	} else {
		logging.API("LLM call completed: stage=%s duration=%s response_len=%d", stage, duration, len(response))
	}
	if tc.observer != nil {
		tc.observer.ObserveLLMCall(stage, duration, err)
	}
	return response, err
}
