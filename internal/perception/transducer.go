package perception

import (
	"context"
	"fmt"
	"strings"

	"mender/internal/logging"
	"mender/internal/prompt"
)

// StageTransducer runs one repair stage: it renders the stage prompt from a
// bag of named texts and returns the service's answer.
type StageTransducer struct {
	client LLMClient
	stage  *prompt.Stage
}

// NewStageTransducer binds a stage prompt to a client.
func NewStageTransducer(client LLMClient, stage *prompt.Stage) *StageTransducer {
	return &StageTransducer{client: client, stage: stage}
}

// Name returns the stage id.
func (t *StageTransducer) Name() string {
	return t.stage.ID
}

// Invoke renders the prompt and calls the service. Blank answers are errors.
func (t *StageTransducer) Invoke(ctx context.Context, bag map[string]string) (string, error) {
	userPrompt, err := t.stage.Render(bag)
	if err != nil {
		return "", err
	}

	response, err := t.client.CompleteWithSystem(WithStage(ctx, t.stage.ID), t.stage.System, userPrompt)
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", t.stage.ID, err)
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("stage %s: empty response", t.stage.ID)
	}
	logging.APIDebug("stage %s answered (%d chars)", t.stage.ID, len(response))
	return response, nil
}

// NewStageTransducers builds one transducer per pipeline stage, keyed by id.
func NewStageTransducers(client LLMClient, catalog *prompt.Catalog) (map[string]*StageTransducer, error) {
	out := make(map[string]*StageTransducer, len(prompt.Order))
	for _, id := range prompt.Order {
		stage, err := catalog.Get(id)
		if err != nil {
			return nil, err
		}
		out[id] = NewStageTransducer(client, stage)
	}
	return out, nil
}
