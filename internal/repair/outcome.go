package repair

import (
	"time"

	"go.uber.org/zap/zapcore"

	"mender/internal/checker"
	"mender/internal/diff"
	"mender/internal/harness"
)

// Status is the terminal state of a target.
type Status string

const (
	StatusAccepted   Status = "accepted"
	StatusUnresolved Status = "unresolved"
	StatusSkipped    Status = "skipped"
)

// Target is one source unit to repair. Name is both the function inside the
// unit and the fixture key.
type Target struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Outcome is the result of repairing one target.
type Outcome struct {
	Target      Target           `json:"target"`
	Status      Status           `json:"status"`
	Attempts    int              `json:"attempts"`
	Validations int              `json:"validations"`
	Exempt      bool             `json:"exempt,omitempty"`
	Verdict     *harness.Verdict `json:"verdict,omitempty"`
	Static      *checker.Report  `json:"static,omitempty"`
	Changes     *diff.Patch      `json:"changes,omitempty"`
	OutputPath  string           `json:"output_path,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Error       string           `json:"error,omitempty"`

	Err error `json:"-"`
}

func (o *Outcome) fail(status Status, err error) {
	o.Status = status
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
}

// MarshalLogObject lets an outcome be logged as a structured zap object.
func (o Outcome) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("target", o.Target.Name)
	enc.AddString("status", string(o.Status))
	enc.AddInt("attempts", o.Attempts)
	enc.AddInt("validations", o.Validations)
	if o.Exempt {
		enc.AddBool("exempt", true)
	}
	if o.Verdict != nil {
		enc.AddString("verdict", string(o.Verdict.Status))
		if o.Verdict.ErrorKind != harness.KindNone {
			enc.AddString("error_kind", string(o.Verdict.ErrorKind))
		}
	}
	if o.Changes != nil {
		enc.AddString("changes", o.Changes.Stat())
	}
	if o.OutputPath != "" {
		enc.AddString("output", o.OutputPath)
	}
	if o.Error != "" {
		enc.AddString("error", o.Error)
	}
	enc.AddDuration("duration", o.Duration)
	return nil
}

// Summary is the result of one batch run.
type Summary struct {
	RunID    string    `json:"run_id"`
	Dir      string    `json:"dir"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	DryRun   bool      `json:"dry_run,omitempty"`
	Outcomes []Outcome `json:"outcomes"`
}

// Count returns how many outcomes ended in status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Validations returns the total number of Validate calls in the run.
func (s *Summary) Validations() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.Validations
	}
	return n
}
