// Package repair drives the repair loop: it asks the reasoning stages for a
// candidate, validates it with the harness, retries with the test evidence
// and persists the final candidate.
package repair

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mender/internal/checker"
	"mender/internal/diff"
	"mender/internal/fixtures"
	"mender/internal/harness"
	"mender/internal/logging"
	"mender/internal/metrics"
)

// Validator is the oracle the loop consults. *harness.Harness satisfies it.
type Validator interface {
	Validate(ctx context.Context, name, source string) *harness.Verdict
}

// Options are the loop's policy knobs.
type Options struct {
	OutputDir string
	// MaxRetries bounds regenerations after a rejected candidate; a target
	// gets at most 1+MaxRetries validations.
	MaxRetries int
	// Workers is the number of targets repaired in parallel.
	Workers int
	// Pacing is the minimum spacing between target starts.
	Pacing time.Duration
	// Exempt names targets accepted without validation.
	Exempt        []string
	DryRun        bool
	MaxLineLength int
}

// Orchestrator runs the repair loop over targets.
type Orchestrator struct {
	stages    Stages
	validator Validator
	opts      Options
	exempt    map[string]bool
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
}

// New creates an orchestrator. m may be nil.
func New(stages Stages, validator Validator, opts Options, m *metrics.Metrics) *Orchestrator {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}

	exempt := make(map[string]bool, len(opts.Exempt))
	for _, name := range opts.Exempt {
		exempt[name] = true
	}

	return &Orchestrator{
		stages:    stages,
		validator: validator,
		opts:      opts,
		exempt:    exempt,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   m,
	}
}

// Enumerate lists the repairable units in dir in name order. Directories,
// non-Go files and test files are skipped.
func Enumerate(dir string) ([]Target, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets dir: %w", err)
	}

	var targets []Target
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			logging.RepairDebug("skipping %s: not a Go source unit", name)
			continue
		}
		path := filepath.Join(dir, name)
		targets = append(targets, Target{Name: fixtures.TargetName(path), Path: path})
	}
	return targets, nil
}

// Run repairs every target in dir. One target's failure never stops the
// batch; Run only fails when dir cannot be listed or ctx is cancelled, in
// which case the summary holds the targets finished so far.
func (o *Orchestrator) Run(ctx context.Context, dir string) (*Summary, error) {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Dir:     dir,
		Started: time.Now(),
		DryRun:  o.opts.DryRun,
	}

	targets, err := Enumerate(dir)
	if err != nil {
		return nil, err
	}
	logging.Repair("run %s: %d targets in %s (workers=%d, max_retries=%d)",
		summary.RunID, len(targets), dir, o.opts.Workers, o.opts.MaxRetries)

	outcomes := make([]Outcome, len(targets))
	done := make([]bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for i, t := range targets {
		if err := o.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = o.RepairTarget(gctx, t)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i := range outcomes {
		if done[i] {
			summary.Outcomes = append(summary.Outcomes, outcomes[i])
		}
	}
	summary.Finished = time.Now()

	logging.Repair("run %s finished: %d accepted, %d unresolved, %d skipped, %d validations",
		summary.RunID, summary.Count(StatusAccepted), summary.Count(StatusUnresolved),
		summary.Count(StatusSkipped), summary.Validations())

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// RepairTarget runs the full loop for one target and always returns an
// outcome.
func (o *Orchestrator) RepairTarget(ctx context.Context, t Target) Outcome {
	start := time.Now()
	out := o.repair(ctx, t)
	out.Duration = time.Since(start)

	o.metrics.ObserveOutcome(string(out.Status), out.Validations)
	logging.Zap(logging.CategoryRepair).Info("target finished", zap.Object("outcome", out))
	return out
}

func (o *Orchestrator) repair(ctx context.Context, t Target) Outcome {
	out := Outcome{Target: t, Exempt: o.exempt[t.Name]}

	if !fixtures.IsIdentifier(t.Name) {
		out.fail(StatusSkipped, fmt.Errorf("%q is not a valid function name", t.Name))
		return out
	}
	data, err := os.ReadFile(t.Path)
	if err != nil {
		out.fail(StatusSkipped, fmt.Errorf("failed to read source: %w", err))
		return out
	}
	if strings.TrimSpace(string(data)) == "" {
		out.fail(StatusSkipped, errors.New("source is empty"))
		return out
	}

	bag := TextBag{KeyBuggyCode: string(data)}
	if err := o.diagnose(ctx, bag); err != nil {
		logging.RepairWarn("%s: %v", t.Name, err)
		out.fail(StatusUnresolved, err)
		return out
	}

	candidate, err := o.propose(ctx, t, bag, &out)
	if err != nil {
		logging.RepairWarn("%s: %v", t.Name, err)
		out.fail(StatusUnresolved, err)
		return out
	}

	if out.Exempt {
		logging.Repair("%s: exempt from validation, accepting candidate", t.Name)
		out.Status = StatusAccepted
		o.persist(t, string(data), candidate, &out)
		return out
	}

	for {
		verdict := o.validator.Validate(ctx, t.Name, candidate)
		out.Validations++
		out.Verdict = verdict
		o.metrics.ObserveValidation(string(verdict.Status), string(verdict.ErrorKind), verdict.Duration)

		if verdict.Passed() {
			out.Status = StatusAccepted
			break
		}
		logging.Repair("%s: validation %d/%d: %s (%s)", t.Name, out.Validations, 1+o.opts.MaxRetries,
			verdict.Status, verdict.Reason)

		if verdict.ErrorKind == harness.KindFixture {
			out.fail(StatusUnresolved, fmt.Errorf("fixtures unusable: %s", verdict.Reason))
			break
		}
		if out.Validations > o.opts.MaxRetries {
			out.fail(StatusUnresolved, fmt.Errorf("gave up after %d validations: %s", out.Validations, verdict.Reason))
			break
		}
		if err := ctx.Err(); err != nil {
			out.fail(StatusUnresolved, err)
			break
		}

		// Infrastructure trouble says nothing about the candidate.
		if verdict.ErrorKind == harness.KindInfrastructure {
			continue
		}

		bag[KeyTestResults] = verdict.Diagnostics()
		next, err := o.propose(ctx, t, bag, &out)
		if err != nil {
			// The last validated candidate is still the best result there is.
			logging.RepairWarn("%s: %v", t.Name, err)
			out.fail(StatusUnresolved, err)
			break
		}
		candidate = next
	}

	o.persist(t, string(data), candidate, &out)
	return out
}

// diagnose runs analyze, classify and strategize, filling the bag.
func (o *Orchestrator) diagnose(ctx context.Context, bag TextBag) error {
	steps := []struct {
		name string
		cap  Capability
		key  string
	}{
		{"analyze", o.stages.Analyze, KeyBugAnalysis},
		{"classify", o.stages.Classify, KeyBugCategory},
		{"strategize", o.stages.Strategize, KeyRepairStrategies},
	}
	for _, s := range steps {
		text, err := invoke(ctx, s.name, s.cap, bag)
		if err != nil {
			return err
		}
		bag[s.key] = text
	}
	return nil
}

// propose runs propose and generate and returns the unwrapped candidate.
func (o *Orchestrator) propose(ctx context.Context, t Target, bag TextBag, out *Outcome) (string, error) {
	solution, err := invoke(ctx, "propose", o.stages.Propose, bag)
	if err != nil {
		return "", err
	}
	bag[KeyProposedSolution] = solution

	generated, err := invoke(ctx, "generate", o.stages.Generate, bag)
	if err != nil {
		return "", err
	}
	candidate := extractCode(generated)
	if candidate == "" {
		return "", &stageError{stage: "generate", err: errors.New("no code in response")}
	}
	out.Attempts++

	report := checker.Check(candidate, o.opts.MaxLineLength)
	out.Static = &report
	logging.Zap(logging.CategoryChecker).Info("static check",
		zap.String("target", t.Name), zap.Int("attempt", out.Attempts), zap.Object("report", report))
	return candidate, nil
}

func (o *Orchestrator) persist(t Target, original, candidate string, out *Outcome) {
	name := filepath.Base(t.Path)
	path := filepath.Join(o.opts.OutputDir, name)
	out.Changes = diff.Compute(name, name, original, candidate)
	if o.opts.DryRun {
		logging.RepairDebug("%s: dry run, not writing %s", t.Name, path)
		return
	}
	if err := os.MkdirAll(o.opts.OutputDir, 0755); err != nil {
		logging.RepairError("%s: failed to create output dir: %v", t.Name, err)
		out.Error = fmt.Sprintf("persist: %v", err)
		return
	}
	if err := os.WriteFile(path, []byte(candidate), 0644); err != nil {
		logging.RepairError("%s: failed to write %s: %v", t.Name, path, err)
		out.Error = fmt.Sprintf("persist: %v", err)
		return
	}
	out.OutputPath = path
}
