package repair

import (
	"context"
	"fmt"
)

// TextBag carries the named texts that flow between stages.
type TextBag = map[string]string

// Bag keys.
const (
	KeyBuggyCode        = "buggy_code"
	KeyBugAnalysis      = "bug_analysis"
	KeyBugCategory      = "bug_category"
	KeyRepairStrategies = "repair_strategies"
	KeyTestResults      = "test_results"
	KeyProposedSolution = "proposed_solution"
)

// Capability is one reasoning stage. Implementations read the keys they need
// from the bag and return a single text.
type Capability interface {
	Invoke(ctx context.Context, bag TextBag) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, bag TextBag) (string, error)

// Invoke calls f.
func (f CapabilityFunc) Invoke(ctx context.Context, bag TextBag) (string, error) {
	return f(ctx, bag)
}

// Stages are the five capabilities of the repair pipeline.
type Stages struct {
	Analyze    Capability
	Classify   Capability
	Strategize Capability
	Propose    Capability
	Generate   Capability
}

// NewStages picks the pipeline capabilities out of a map keyed by stage id
// (analyze, classify, strategize, propose, generate).
func NewStages[C Capability](byID map[string]C) (Stages, error) {
	get := func(id string) (Capability, error) {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("missing %s stage", id)
		}
		return c, nil
	}

	var s Stages
	var err error
	if s.Analyze, err = get("analyze"); err != nil {
		return s, err
	}
	if s.Classify, err = get("classify"); err != nil {
		return s, err
	}
	if s.Strategize, err = get("strategize"); err != nil {
		return s, err
	}
	if s.Propose, err = get("propose"); err != nil {
		return s, err
	}
	if s.Generate, err = get("generate"); err != nil {
		return s, err
	}
	return s, nil
}

// stageError marks a capability failure.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.stage, e.err)
}

func (e *stageError) Unwrap() error {
	return e.err
}

func invoke(ctx context.Context, stage string, c Capability, bag TextBag) (string, error) {
	out, err := c.Invoke(ctx, bag)
	if err != nil {
		return "", &stageError{stage: stage, err: err}
	}
	return out, nil
}
