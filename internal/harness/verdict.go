package harness

import (
	"fmt"
	"strings"
	"time"
)

// Status is the overall or per-case result of a validation.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// ErrorKind separates harness infrastructure problems from candidate faults.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindFixture        ErrorKind = "fixture"
	KindInfrastructure ErrorKind = "infrastructure"
	KindBinding        ErrorKind = "binding"
	KindExecution      ErrorKind = "execution"
	KindTimeout        ErrorKind = "timeout"
	// KindCrash is a case during which the child process died.
	KindCrash ErrorKind = "crash"
)

// CaseResult is the outcome of one fixture case.
type CaseResult struct {
	ID     string    `json:"id"`
	Status Status    `json:"status"`
	Kind   ErrorKind `json:"kind,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// RawLog keeps the child's output verbatim.
type RawLog struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Verdict is the harness's decision about one candidate.
type Verdict struct {
	Status    Status        `json:"status"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Reason    string        `json:"reason"`
	Cases     []CaseResult  `json:"cases"`
	RawLog    RawLog        `json:"raw_log"`
	Duration  time.Duration `json:"duration"`
}

// Passed reports whether every case passed.
func (v *Verdict) Passed() bool {
	return v != nil && v.Status == StatusPass
}

// Counts tallies cases by status.
func (v *Verdict) Counts() (pass, fail, errs int) {
	for _, c := range v.Cases {
		switch c.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		default:
			errs++
		}
	}
	return pass, fail, errs
}

// Diagnostics renders the verdict as feedback text for a repair retry:
// a per-case summary followed by the raw child log.
func (v *Verdict) Diagnostics() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Result: %s", v.Status)
	if v.ErrorKind != KindNone {
		fmt.Fprintf(&sb, " (%s)", v.ErrorKind)
	}
	if v.Reason != "" {
		fmt.Fprintf(&sb, ": %s", v.Reason)
	}
	sb.WriteString("\n")

	for _, c := range v.Cases {
		if c.Status == StatusPass {
			fmt.Fprintf(&sb, "%s PASSED\n", c.ID)
			continue
		}
		fmt.Fprintf(&sb, "%s %s: %s\n", c.ID, strings.ToUpper(string(c.Status))+"ED", c.Detail)
	}

	if v.RawLog.Stdout != "" {
		sb.WriteString("\n--- stdout ---\n")
		sb.WriteString(v.RawLog.Stdout)
	}
	if v.RawLog.Stderr != "" {
		sb.WriteString("\n--- stderr ---\n")
		sb.WriteString(v.RawLog.Stderr)
	}
	fmt.Fprintf(&sb, "\nexit code: %d\n", v.RawLog.ExitCode)
	return sb.String()
}

func errorVerdict(kind ErrorKind, reason string) *Verdict {
	return &Verdict{
		Status:    StatusError,
		ErrorKind: kind,
		Reason:    reason,
		Cases:     []CaseResult{},
		RawLog:    RawLog{ExitCode: -1},
	}
}
