package ux

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mender/internal/checker"
	"mender/internal/diff"
	"mender/internal/harness"
	"mender/internal/repair"
)

func sampleSummary() *repair.Summary {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &repair.Summary{
		RunID:    "5f0c6a1e-0000-4000-8000-000000000001",
		Dir:      "buggy",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Outcomes: []repair.Outcome{
			{
				Target:      repair.Target{Name: "add", Path: "buggy/add.go"},
				Status:      repair.StatusAccepted,
				Attempts:    1,
				Validations: 1,
				Verdict: &harness.Verdict{Status: harness.StatusPass, Cases: []harness.CaseResult{
					{ID: "case_0", Status: harness.StatusPass}, {ID: "case_1", Status: harness.StatusPass},
				}},
				Static:     &checker.Report{OverallStatus: checker.StatusSuccess},
				Changes:    diff.Compute("add.go", "add.go", "return a - b\n", "return a + b\n"),
				OutputPath: "corrected/add.go",
			},
			{
				Target:      repair.Target{Name: "sort", Path: "buggy/sort.go"},
				Status:      repair.StatusUnresolved,
				Attempts:    1,
				Validations: 1,
				Verdict:     &harness.Verdict{Status: harness.StatusError, ErrorKind: harness.KindFixture},
			},
			{
				Target: repair.Target{Name: "empty", Path: "buggy/empty.go"},
				Status: repair.StatusSkipped,
				Error:  "source is empty",
			},
		},
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, sampleSummary()))
	out := buf.String()

	assert.Contains(t, out, "mender run 5f0c6a1e")
	assert.Contains(t, out, "add")
	assert.Contains(t, out, "pass 2/2")
	assert.Contains(t, out, "error/fixture")
	assert.Contains(t, out, "+1/-1")
	assert.Contains(t, out, "source is empty")
	assert.Contains(t, out, "1 accepted")
	assert.Contains(t, out, "1 unresolved")
	assert.Contains(t, out, "1 skipped")
	assert.Contains(t, out, "1.5s")
}

func TestRenderSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	s := &repair.Summary{RunID: "r", Dir: "nowhere"}
	require.NoError(t, RenderSummary(&buf, s))

	assert.Contains(t, buf.String(), "no targets found in nowhere")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, sampleSummary()))

	var decoded struct {
		RunID    string `json:"run_id"`
		Outcomes []struct {
			Status string `json:"status"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "5f0c6a1e-0000-4000-8000-000000000001", decoded.RunID)
	require.Len(t, decoded.Outcomes, 3)
	assert.Equal(t, "accepted", decoded.Outcomes[0].Status)
}

func TestRenderVerdict(t *testing.T) {
	var buf bytes.Buffer
	v := &harness.Verdict{
		Status: harness.StatusFail,
		Reason: "1 of 2 cases failed",
		Cases: []harness.CaseResult{
			{ID: "case_0", Status: harness.StatusFail, Detail: "expected 8, got -2"},
			{ID: "case_1", Status: harness.StatusPass},
		},
	}
	require.NoError(t, RenderVerdict(&buf, "add", v))

	assert.Contains(t, buf.String(), "add: 1 of 2 cases failed")
	assert.Contains(t, buf.String(), "expected 8, got -2")
}

func TestSimpleTable_EmptyRendersNothing(t *testing.T) {
	assert.Empty(t, NewSimpleTable("t", []string{"a"}).View(DefaultStyles()))
}
