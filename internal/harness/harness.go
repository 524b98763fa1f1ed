// Package harness is the validation oracle. It runs a candidate against its
// hidden fixtures inside a separate child process and turns what the child
// reports into a Verdict.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mender/internal/config"
	"mender/internal/fixtures"
	"mender/internal/logging"
	"mender/internal/tactile"
)

// Options configures a Harness.
type Options struct {
	// Runner is the executable started as the child; it must understand
	// the harness-exec subcommand.
	Runner string
	// ScratchDir receives <target>.go before each run.
	ScratchDir  string
	Timeout     time.Duration
	CaseTimeout time.Duration
	Verbose     bool

	MaxOutputBytes int64
	AllowedEnv     []string
	// ExtraEnv is appended to the child's environment.
	ExtraEnv []string
}

// Harness validates candidates. It is safe for concurrent use; calls for
// the same target serialize on a per-target lock.
type Harness struct {
	opts     Options
	store    *fixtures.Store
	executor tactile.Executor
	locks    sync.Map
}

// New creates a harness that launches children with a DirectExecutor.
func New(store *fixtures.Store, opts Options) *Harness {
	executor := tactile.NewDirectExecutorWithConfig(tactile.ExecutorConfig{
		DefaultWorkingDir:  opts.ScratchDir,
		DefaultTimeout:     opts.Timeout,
		MaxOutputBytes:     opts.MaxOutputBytes,
		AllowedEnvironment: opts.AllowedEnv,
	})
	return NewWithExecutor(store, executor, opts)
}

// NewWithExecutor creates a harness with a caller-supplied executor.
func NewWithExecutor(store *fixtures.Store, executor tactile.Executor, opts Options) *Harness {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = 5 * time.Second
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 1 << 20
	}
	return &Harness{opts: opts, store: store, executor: executor}
}

// FromConfig builds a harness from configuration. An empty runner means
// the running executable.
func FromConfig(cfg *config.Config) (*Harness, error) {
	runner := cfg.Harness.Runner
	if runner == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate runner executable: %w", err)
		}
		runner = self
	}
	fixturesDir, err := filepath.Abs(cfg.Paths.FixturesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve fixtures dir: %w", err)
	}
	return New(fixtures.NewStore(fixturesDir), Options{
		Runner:         runner,
		ScratchDir:     cfg.Paths.ScratchDir,
		Timeout:        cfg.GetHarnessTimeout(),
		CaseTimeout:    cfg.GetCaseTimeout(),
		Verbose:        cfg.Harness.Verbose,
		MaxOutputBytes: cfg.Harness.MaxOutputBytes,
		AllowedEnv:     cfg.Harness.AllowedEnvVars,
	}), nil
}

// Store returns the fixture store the harness validates against.
func (h *Harness) Store() *fixtures.Store {
	return h.store
}

func (h *Harness) lockFor(name string) *sync.Mutex {
	mu, _ := h.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Validate writes source to the scratch slot for name, runs the child and
// returns its verdict. It never returns nil.
func (h *Harness) Validate(ctx context.Context, name, source string) *Verdict {
	start := time.Now()
	v := h.validate(ctx, name, source)
	v.Duration = time.Since(start)

	logging.Harness("validated %s: %s%s (%s)", name, v.Status, kindSuffix(v.ErrorKind), v.Duration)
	return v
}

func (h *Harness) validate(ctx context.Context, name, source string) *Verdict {
	if !fixtures.IsIdentifier(name) {
		return errorVerdict(KindFixture, fmt.Sprintf("%q is not a valid target name", name))
	}

	mu := h.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	scratch, err := h.writeScratch(name, source)
	if err != nil {
		logging.HarnessError("scratch write for %s failed: %v", name, err)
		return errorVerdict(KindInfrastructure, err.Error())
	}

	set, err := h.store.Load(name)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, fixtures.ErrNotFound) {
			reason = fmt.Sprintf("no fixtures for %s in %s", name, h.store.Dir())
		}
		logging.HarnessWarn("fixture load for %s failed: %v", name, err)
		return errorVerdict(KindFixture, reason)
	}
	if len(set.Cases) == 0 {
		return errorVerdict(KindFixture, fmt.Sprintf("fixtures for %s contain no cases", name))
	}

	return h.run(ctx, name, scratch, len(set.Cases))
}

// run drives children over the fixture cases until every case has a result.
// A child that dies mid-run costs only the case it was on; a fresh child
// resumes after it. All children share the harness timeout.
func (h *Harness) run(ctx context.Context, name, scratch string, expected int) *Verdict {
	v := &Verdict{Cases: make([]CaseResult, expected)}
	deadline := time.Now().Add(h.opts.Timeout)

	for from := 0; from < expected; {
		if err := ctx.Err(); err != nil {
			return withLog(errorVerdict(KindInfrastructure, "validation canceled: "+err.Error()), v.RawLog)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			markRemaining(v, from, KindTimeout, fmt.Sprintf("not run: harness timeout after %s", h.opts.Timeout))
			break
		}

		args := ExecArgs{
			CodeFilePath: scratch,
			Target:       name,
			FixturesDir:  h.store.Dir(),
			CaseTimeout:  h.opts.CaseTimeout,
			Verbose:      h.opts.Verbose,
			FromCase:     from,
		}
		result, err := h.executor.Execute(ctx, tactile.Command{
			Binary:      h.opts.Runner,
			Arguments:   append([]string{ExecCommand}, args.Args()...),
			Environment: h.opts.ExtraEnv,
			Limits: &tactile.ResourceLimits{
				TimeoutMs:      max(remaining.Milliseconds(), 1),
				MaxOutputBytes: h.opts.MaxOutputBytes,
			},
		})
		if err != nil {
			return withLog(errorVerdict(KindInfrastructure, err.Error()), v.RawLog)
		}
		appendLog(&v.RawLog, result)

		next, failed := absorb(v, from, result)
		if failed != nil {
			return withLog(failed, v.RawLog)
		}
		if next >= expected {
			break
		}
		if result.Killed {
			markRemaining(v, next, KindTimeout, "not run: "+result.KillReason)
			break
		}

		v.Cases[next] = CaseResult{ID: fixtures.ID(next), Status: StatusError, Kind: KindCrash, Detail: crashDetail(result)}
		logging.HarnessWarn("child for %s died during %s (exit %d), resuming", name, fixtures.ID(next), result.ExitCode)
		from = next + 1
	}

	classify(v)
	return v
}

// absorb copies the cases one child reported, starting at from, into v. It
// returns the index of the first case the child did not report, or a
// harness-failure verdict when the child never got to run cases.
func absorb(v *Verdict, from int, result *tactile.ExecutionResult) (int, *Verdict) {
	if result.IsError() {
		return from, errorVerdict(KindInfrastructure, fmt.Sprintf("failed to start child: %s", result.Error))
	}

	report := parseChildOutput(result.Stdout)
	if !report.started && !result.Killed {
		reason := fmt.Sprintf("child exited with code %d before running any case", result.ExitCode)
		if line := firstLine(result.Stderr); line != "" {
			reason += ": " + line
		}
		return from, errorVerdict(KindInfrastructure, reason)
	}

	for i := from; i < len(v.Cases); i++ {
		r, ok := report.cases[fixtures.ID(i)]
		if !ok {
			return i, nil
		}
		v.Cases[i] = r
	}
	return len(v.Cases), nil
}

func markRemaining(v *Verdict, from int, kind ErrorKind, detail string) {
	for i := from; i < len(v.Cases); i++ {
		v.Cases[i] = CaseResult{ID: fixtures.ID(i), Status: StatusError, Kind: kind, Detail: detail}
	}
}

// appendLog accumulates the output of successive children. The exit code
// kept is the first non-zero one.
func appendLog(log *RawLog, result *tactile.ExecutionResult) {
	log.Stdout += result.Stdout
	log.Stderr += result.Stderr
	if log.ExitCode == 0 {
		log.ExitCode = result.ExitCode
	}
}

func withLog(v *Verdict, log RawLog) *Verdict {
	v.RawLog = log
	return v
}

// crashDetail names the fault that killed the child, preferring the
// runtime's own fatal or panic line from stderr.
func crashDetail(result *tactile.ExecutionResult) string {
	detail := fmt.Sprintf("child process died (exit code %d)", result.ExitCode)
	if result.Truncated {
		detail = "child output exceeded the capture limit"
	}

	var fallback string
	for _, line := range strings.Split(result.Stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "harness:") {
			continue
		}
		if strings.HasPrefix(line, "fatal error:") || strings.HasPrefix(line, "panic:") {
			return detail + ": " + line
		}
		if fallback == "" {
			fallback = line
		}
	}
	if fallback != "" {
		return detail + ": " + truncate(fallback, 200)
	}
	return detail
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncate(line, 200)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (h *Harness) writeScratch(name, source string) (string, error) {
	dir, err := filepath.Abs(h.opts.ScratchDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve scratch dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %w", err)
	}
	path := filepath.Join(dir, name+".go")
	if err := os.WriteFile(path, []byte(source), 0644); err != nil {
		return "", fmt.Errorf("failed to write candidate: %w", err)
	}
	return path, nil
}

// classify derives the overall status: pass only when every case passed,
// fail when every non-pass is a mismatch, error otherwise. The error kind is
// the most severe kind seen across cases.
func classify(v *Verdict) {
	pass, fail, errs := v.Counts()
	total := len(v.Cases)

	switch {
	case errs > 0:
		v.Status = StatusError
		v.ErrorKind = worstKind(v.Cases)
		v.Reason = fmt.Sprintf("%d of %d cases errored (%s)", errs, total, v.ErrorKind)
	case fail > 0:
		v.Status = StatusFail
		v.Reason = fmt.Sprintf("%d of %d cases failed", fail, total)
	default:
		v.Status = StatusPass
		v.Reason = fmt.Sprintf("all %d cases passed", pass)
	}
}

var kindSeverity = map[ErrorKind]int{
	KindExecution:      1,
	KindTimeout:        2,
	KindCrash:          3,
	KindBinding:        4,
	KindInfrastructure: 5,
}

func worstKind(cases []CaseResult) ErrorKind {
	worst := KindExecution
	for _, c := range cases {
		if c.Status != StatusError {
			continue
		}
		if kindSeverity[c.Kind] > kindSeverity[worst] {
			worst = c.Kind
		}
	}
	return worst
}

func kindSuffix(kind ErrorKind) string {
	if kind == KindNone {
		return ""
	}
	return "/" + string(kind)
}
