// Package tactile runs external processes with a timeout, a scrubbed
// environment and bounded output capture. The harness uses it to launch the
// isolated child that exercises a candidate.
package tactile

import (
	"context"
	"strings"
	"time"
)

// Command describes a process to run.
type Command struct {
	// Binary is the executable to run.
	Binary string `json:"binary"`

	Arguments []string `json:"arguments"`

	// WorkingDirectory defaults to the executor's working directory.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// Environment entries (KEY=VALUE) appended after the allowed host variables.
	Environment []string `json:"environment,omitempty"`

	Stdin string `json:"stdin,omitempty"`

	Limits *ResourceLimits `json:"limits,omitempty"`
}

// CommandString returns the full command line for logging.
func (c Command) CommandString() string {
	if len(c.Arguments) == 0 {
		return c.Binary
	}
	return c.Binary + " " + strings.Join(c.Arguments, " ")
}

// ResourceLimits bounds a single execution.
type ResourceLimits struct {
	// TimeoutMs is the wall-clock budget. Zero means the executor default.
	TimeoutMs int64 `json:"timeout_ms,omitempty"`

	// MaxOutputBytes caps each of stdout and stderr. Zero means the executor default.
	MaxOutputBytes int64 `json:"max_output_bytes,omitempty"`
}

// ExecutionResult is the outcome of running a Command.
type ExecutionResult struct {
	// Success is false only when the process could not be run at all.
	// A non-zero exit or a kill still counts as success.
	Success bool `json:"success"`

	// ExitCode is -1 when the process did not exit normally.
	ExitCode int `json:"exit_code"`

	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`

	Killed     bool   `json:"killed"`
	KillReason string `json:"kill_reason,omitempty"`

	Truncated      bool  `json:"truncated"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Error holds the infrastructure failure, if any.
	Error string `json:"error,omitempty"`

	Command *Command `json:"command,omitempty"`
}

// IsError reports an infrastructure failure.
func (r *ExecutionResult) IsError() bool {
	return !r.Success || r.Error != ""
}

// IsNonZeroExit reports a process that ran and returned non-zero.
func (r *ExecutionResult) IsNonZeroExit() bool {
	return r.Success && r.ExitCode != 0
}

// Output returns stdout and stderr joined by a newline.
func (r *ExecutionResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor runs commands. The harness depends on this interface so tests can
// substitute a fake.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (*ExecutionResult, error)
}

// ExecutorConfig configures a DirectExecutor.
type ExecutorConfig struct {
	DefaultWorkingDir string        `json:"default_working_dir"`
	DefaultTimeout    time.Duration `json:"default_timeout"`

	// MaxTimeout caps every timeout. Zero means uncapped.
	MaxTimeout time.Duration `json:"max_timeout"`

	// AllowedEnvironment lists host variables passed through to the child.
	AllowedEnvironment []string `json:"allowed_environment"`

	MaxOutputBytes int64 `json:"max_output_bytes"`
}

// DefaultExecutorConfig returns sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		DefaultWorkingDir:  ".",
		DefaultTimeout:     30 * time.Second,
		MaxTimeout:         10 * time.Minute,
		MaxOutputBytes:     1 << 20,
		AllowedEnvironment: []string{"PATH", "HOME", "TMPDIR", "GOROOT", "GOPATH"},
	}
}

// Merge fills unset command fields from the config.
func (c ExecutorConfig) Merge(cmd Command) Command {
	result := cmd
	if result.WorkingDirectory == "" {
		result.WorkingDirectory = c.DefaultWorkingDir
	}

	limits := ResourceLimits{}
	if cmd.Limits != nil {
		limits = *cmd.Limits
	}
	if limits.TimeoutMs == 0 {
		limits.TimeoutMs = c.DefaultTimeout.Milliseconds()
	}
	if limits.MaxOutputBytes == 0 {
		limits.MaxOutputBytes = c.MaxOutputBytes
	}
	if c.MaxTimeout > 0 && limits.TimeoutMs > c.MaxTimeout.Milliseconds() {
		limits.TimeoutMs = c.MaxTimeout.Milliseconds()
	}
	result.Limits = &limits
	return result
}
