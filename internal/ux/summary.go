package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mender/internal/checker"
	"mender/internal/harness"
	"mender/internal/repair"
)

// RenderSummary writes a human-readable run report.
func RenderSummary(w io.Writer, s *repair.Summary) error {
	styles := DefaultStyles()

	title := fmt.Sprintf("mender run %s", s.RunID)
	if s.DryRun {
		title += " (dry run)"
	}
	table := NewSimpleTable(title, []string{"Target", "Status", "Attempts", "Validations", "Verdict", "Static", "Changes", "Output"})
	for _, o := range s.Outcomes {
		table.AddRow(
			o.Target.Name,
			statusCell(styles, o.Status),
			strconv.Itoa(o.Attempts),
			strconv.Itoa(o.Validations),
			verdictCell(o),
			staticCell(o.Static),
			o.Changes.Stat(),
			outputCell(o),
		)
	}

	var sb strings.Builder
	sb.WriteString(table.View(styles))
	if len(s.Outcomes) == 0 {
		sb.WriteString(styles.Muted.Render("no targets found in "+s.Dir) + "\n")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s  %s  %s  in %s\n",
		styles.Success.Render(fmt.Sprintf("%d accepted", s.Count(repair.StatusAccepted))),
		styles.Error.Render(fmt.Sprintf("%d unresolved", s.Count(repair.StatusUnresolved))),
		styles.Muted.Render(fmt.Sprintf("%d skipped", s.Count(repair.StatusSkipped))),
		s.Finished.Sub(s.Started).Round(time.Millisecond),
	)

	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderJSON writes v as indented JSON.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderVerdict writes a short human-readable verdict report.
func RenderVerdict(w io.Writer, target string, v *harness.Verdict) error {
	styles := DefaultStyles()
	table := NewSimpleTable(fmt.Sprintf("%s: %s", target, v.Reason), []string{"Case", "Status", "Detail"})
	for _, c := range v.Cases {
		table.AddRow(c.ID, caseCell(styles, c.Status), c.Detail)
	}

	var sb strings.Builder
	sb.WriteString(table.View(styles))
	if len(v.Cases) == 0 {
		sb.WriteString(styles.Error.Render(fmt.Sprintf("%s (%s): %s", v.Status, v.ErrorKind, v.Reason)) + "\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func statusCell(styles Styles, s repair.Status) string {
	switch s {
	case repair.StatusAccepted:
		return styles.Success.Render(string(s))
	case repair.StatusUnresolved:
		return styles.Error.Render(string(s))
	default:
		return styles.Muted.Render(string(s))
	}
}

func caseCell(styles Styles, s harness.Status) string {
	switch s {
	case harness.StatusPass:
		return styles.Success.Render(string(s))
	case harness.StatusFail:
		return styles.Warning.Render(string(s))
	default:
		return styles.Error.Render(string(s))
	}
}

func verdictCell(o repair.Outcome) string {
	switch {
	case o.Exempt:
		return "exempt"
	case o.Verdict == nil:
		return "-"
	case o.Verdict.ErrorKind != harness.KindNone:
		return fmt.Sprintf("%s/%s", o.Verdict.Status, o.Verdict.ErrorKind)
	default:
		pass, _, _ := o.Verdict.Counts()
		return fmt.Sprintf("%s %d/%d", o.Verdict.Status, pass, len(o.Verdict.Cases))
	}
}

func staticCell(r *checker.Report) string {
	if r == nil {
		return "-"
	}
	if n := r.IssueCount(); n > 0 {
		return fmt.Sprintf("%s (%d)", r.OverallStatus, n)
	}
	return string(r.OverallStatus)
}

func outputCell(o repair.Outcome) string {
	if o.OutputPath != "" {
		return o.OutputPath
	}
	if o.Error != "" {
		return o.Error
	}
	return "-"
}
