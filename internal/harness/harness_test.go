package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mender/internal/fixtures"
)

// childEnv makes the test binary act as the harness child.
const childEnv = "MENDER_HARNESS_TEST_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		args, err := ParseExecArgs(os.Args[2:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "harness: %v\n", err)
			os.Exit(ExitHarness)
		}
		os.Exit(RunExec(context.Background(), args, os.Stdout, os.Stderr))
	}
	os.Exit(m.Run())
}

func newTestHarness(t *testing.T, w *workspace, mutate func(*Options)) *Harness {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	opts := Options{
		Runner:         self,
		ScratchDir:     filepath.Join(w.dir, "scratch"),
		Timeout:        20 * time.Second,
		CaseTimeout:    5 * time.Second,
		Verbose:        true,
		MaxOutputBytes: 1 << 20,
		AllowedEnv:     []string{"PATH", "HOME", "TMPDIR"},
		ExtraEnv:       []string{childEnv + "=1"},
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(fixtures.NewStore(w.fixtures), opts)
}

func TestValidate_Pass(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "add", addCorrect)

	require.Equal(t, StatusPass, v.Status, v.Diagnostics())
	assert.Len(t, v.Cases, 2)
	assert.Equal(t, 0, v.RawLog.ExitCode)
	assert.Contains(t, v.RawLog.Stdout, "case_1 ... PASS")
	assert.Positive(t, v.Duration)

	written, err := os.ReadFile(filepath.Join(w.dir, "scratch", "add.go"))
	require.NoError(t, err)
	assert.Equal(t, addCorrect, string(written))
}

func TestValidate_Fail(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "add", addBuggy)

	require.Equal(t, StatusFail, v.Status, v.Diagnostics())
	assert.Equal(t, StatusFail, v.Cases[0].Status)
	assert.Equal(t, StatusPass, v.Cases[1].Status)
}

func TestValidate_MalformedFixtures(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "sort", `{"not": "pairs"}`)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "sort", "package main\n\nfunc sort(xs []int) []int { return xs }\n")

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindFixture, v.ErrorKind)
	assert.Empty(t, v.Cases)
}

func TestValidate_MissingFixtures(t *testing.T) {
	w := newWorkspace(t)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "add", addCorrect)

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindFixture, v.ErrorKind)
	assert.Contains(t, v.Reason, "no fixtures for add")
}

func TestValidate_InvalidTargetName(t *testing.T) {
	w := newWorkspace(t)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "not-a-name", addCorrect)

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindFixture, v.ErrorKind)
}

func TestValidate_RunnerMissing(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, func(o *Options) {
		o.Runner = filepath.Join(w.dir, "no-such-runner")
	})

	v := h.Validate(context.Background(), "add", addCorrect)

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindInfrastructure, v.ErrorKind)
}

func TestValidate_BindErrorHasNoPasses(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "add", "package main\n\nfunc plus(a, b int) int { return a + b }\n")

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindBinding, v.ErrorKind)
	pass, _, errs := v.Counts()
	assert.Zero(t, pass)
	assert.Equal(t, 2, errs)
}

func TestValidate_Panic(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	v := h.Validate(context.Background(), "add", "package main\n\nfunc add(a, b int) int { panic(\"boom\") }\n")

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindExecution, v.ErrorKind)
	assert.Contains(t, v.Cases[0].Detail, "boom")
}

func TestValidate_ChildCrashIsolatedToOneCase(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	// Unbounded recursion on the first case overflows the child's stack,
	// which no recover can catch.
	src := "package main\n\nfunc add(a, b int) int {\n\tif a == 3 {\n\t\treturn add(a, b)\n\t}\n\treturn a + b\n}\n"
	v := h.Validate(context.Background(), "add", src)

	require.Len(t, v.Cases, 2, v.Diagnostics())
	assert.Equal(t, StatusError, v.Cases[0].Status)
	assert.Equal(t, KindCrash, v.Cases[0].Kind)
	assert.Contains(t, v.Cases[0].Detail, "stack")
	assert.Equal(t, StatusPass, v.Cases[1].Status)

	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindCrash, v.ErrorKind)
	assert.NotEqual(t, 0, v.RawLog.ExitCode)
}

func TestValidate_HarnessTimeoutKillsChild(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, func(o *Options) {
		o.Timeout = time.Second
		o.CaseTimeout = time.Minute
	})

	src := "package main\n\nimport \"time\"\n\nfunc add(a, b int) int {\n\ttime.Sleep(time.Hour)\n\treturn a + b\n}\n"
	start := time.Now()
	v := h.Validate(context.Background(), "add", src)

	assert.Less(t, time.Since(start), 15*time.Second)
	assert.Equal(t, StatusError, v.Status)
	assert.Equal(t, KindTimeout, v.ErrorKind)
	require.Len(t, v.Cases, 2)
	for _, c := range v.Cases {
		assert.Equal(t, KindTimeout, c.Kind)
	}
}

func TestValidate_ConcurrentSameTarget(t *testing.T) {
	w := newWorkspace(t)
	w.fixture(t, "add", addFixture)
	h := newTestHarness(t, w, nil)

	sources := []string{addCorrect, addBuggy, addCorrect}
	verdicts := make([]*Verdict, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			verdicts[i] = h.Validate(context.Background(), "add", src)
		}(i, src)
	}
	wg.Wait()

	// Each verdict belongs to the candidate that was submitted with it.
	assert.Equal(t, StatusPass, verdicts[0].Status)
	assert.Equal(t, StatusFail, verdicts[1].Status)
	assert.Equal(t, StatusPass, verdicts[2].Status)
}
