package checker

import "go.uber.org/zap/zapcore"

// Status is the outcome of a check.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// SyntaxCheck reports whether the unit parses.
type SyntaxCheck struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// IssueCheck is a lint-level sub-check with human-readable findings.
type IssueCheck struct {
	Status Status   `json:"status"`
	Issues []string `json:"issues"`
}

// Report is the advisory result of Check.
type Report struct {
	OverallStatus Status      `json:"overall_status"`
	Syntax        SyntaxCheck `json:"syntax_check"`
	LineLength    IssueCheck  `json:"line_length_check"`
	BareRecover   IssueCheck  `json:"bare_except_check"`
	UnusedImports IssueCheck  `json:"unused_imports_check"`
}

func newReport() Report {
	return Report{
		OverallStatus: StatusSuccess,
		Syntax:        SyntaxCheck{Status: StatusSuccess, Message: "Syntax is valid."},
		LineLength:    IssueCheck{Status: StatusSuccess, Issues: []string{}},
		BareRecover:   IssueCheck{Status: StatusSuccess, Issues: []string{}},
		UnusedImports: IssueCheck{Status: StatusSuccess, Issues: []string{}},
	}
}

// IssueCount returns the number of lint findings across all sub-checks.
func (r Report) IssueCount() int {
	return len(r.LineLength.Issues) + len(r.BareRecover.Issues) + len(r.UnusedImports.Issues)
}

// MarshalLogObject lets the report be logged as a nested zap object.
func (r Report) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("overall_status", string(r.OverallStatus))
	if err := enc.AddObject("syntax_check", r.Syntax); err != nil {
		return err
	}
	if err := enc.AddObject("line_length_check", r.LineLength); err != nil {
		return err
	}
	if err := enc.AddObject("bare_except_check", r.BareRecover); err != nil {
		return err
	}
	return enc.AddObject("unused_imports_check", r.UnusedImports)
}

func (s SyntaxCheck) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(s.Status))
	enc.AddString("message", s.Message)
	if s.Details != "" {
		enc.AddString("details", s.Details)
		enc.AddInt("line", s.Line)
		enc.AddInt("column", s.Column)
	}
	return nil
}

func (c IssueCheck) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("status", string(c.Status))
	return enc.AddArray("issues", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for _, issue := range c.Issues {
			arr.AppendString(issue)
		}
		return nil
	}))
}
