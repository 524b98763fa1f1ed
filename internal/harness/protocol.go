package harness

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// CaseLinePrefix marks machine-readable case lines on the child's stdout.
// Anything else the candidate prints is ignored by the parser.
const CaseLinePrefix = "##mender-case "

// StartLinePrefix marks the line the child prints once fixtures are loaded
// and it is about to run cases. A child that dies before printing it failed
// as a harness, not because of the candidate.
const StartLinePrefix = "##mender-start "

// ExecCommand is the hidden subcommand that runs the child side.
const ExecCommand = "harness-exec"

// ExecArgs are the child's inputs.
type ExecArgs struct {
	CodeFilePath string
	Target       string
	FixturesDir  string
	CaseTimeout  time.Duration
	Verbose      bool
	// FromCase is the index of the first case to run. A fresh child resumes
	// here after its predecessor died.
	FromCase int
}

// ParseExecArgs parses the child's command line (without the subcommand).
func ParseExecArgs(args []string) (ExecArgs, error) {
	var a ExecArgs
	fs := pflag.NewFlagSet(ExecCommand, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&a.CodeFilePath, "code-file-path", "", "candidate source file")
	fs.StringVar(&a.Target, "target", "", "callable and fixture name")
	fs.StringVar(&a.FixturesDir, "fixtures-dir", "", "fixture directory")
	fs.DurationVar(&a.CaseTimeout, "case-timeout", 5*time.Second, "per-case timeout")
	fs.BoolVarP(&a.Verbose, "verbose", "v", false, "print human-readable case lines")
	fs.IntVar(&a.FromCase, "from-case", 0, "index of the first case to run")

	if err := fs.Parse(args); err != nil {
		return a, err
	}
	switch {
	case a.CodeFilePath == "":
		return a, fmt.Errorf("--code-file-path is required")
	case a.Target == "":
		return a, fmt.Errorf("--target is required")
	case a.FixturesDir == "":
		return a, fmt.Errorf("--fixtures-dir is required")
	case a.CaseTimeout <= 0:
		return a, fmt.Errorf("--case-timeout must be positive")
	case a.FromCase < 0:
		return a, fmt.Errorf("--from-case must not be negative")
	}
	return a, nil
}

// Args renders the arguments back into a command line.
func (a ExecArgs) Args() []string {
	args := []string{
		"--code-file-path", a.CodeFilePath,
		"--target", a.Target,
		"--fixtures-dir", a.FixturesDir,
		"--case-timeout", a.CaseTimeout.String(),
	}
	if a.FromCase > 0 {
		args = append(args, "--from-case", strconv.Itoa(a.FromCase))
	}
	if a.Verbose {
		args = append(args, "-v")
	}
	return args
}

func formatCaseLine(r CaseResult) string {
	data, err := json.Marshal(r)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"id":%q,"status":"error","detail":"unencodable result"}`, r.ID))
	}
	return CaseLinePrefix + string(data)
}

type startLine struct {
	Cases int `json:"cases"`
	From  int `json:"from"`
}

func formatStartLine(cases, from int) string {
	data, _ := json.Marshal(startLine{Cases: cases, From: from})
	return StartLinePrefix + string(data)
}

func formatVerboseLine(r CaseResult) string {
	return fmt.Sprintf("%s ... %s", r.ID, strings.ToUpper(string(r.Status)))
}

// childReport is what one child run printed.
type childReport struct {
	started bool
	cases   map[string]CaseResult
}

// parseCaseLines extracts case results from child stdout. Malformed lines
// are skipped; a later line for the same id replaces an earlier one.
func parseCaseLines(stdout string) map[string]CaseResult {
	return parseChildOutput(stdout).cases
}

func parseChildOutput(stdout string) childReport {
	report := childReport{cases: make(map[string]CaseResult)}
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, StartLinePrefix); idx >= 0 {
			var start startLine
			if json.Unmarshal([]byte(line[idx+len(StartLinePrefix):]), &start) == nil {
				report.started = true
			}
			continue
		}
		idx := strings.Index(line, CaseLinePrefix)
		if idx < 0 {
			continue
		}
		var r CaseResult
		if err := json.Unmarshal([]byte(line[idx+len(CaseLinePrefix):]), &r); err != nil || r.ID == "" {
			continue
		}
		report.cases[r.ID] = r
	}
	return report
}
