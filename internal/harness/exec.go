package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/go-cmp/cmp"

	"mender/internal/binder"
	"mender/internal/fixtures"
)

// Child exit codes.
const (
	ExitCompleted = 0
	ExitHarness   = 2
)

// childMaxStack caps goroutine stacks in the child so runaway recursion
// crashes quickly instead of eating memory up to the runtime default.
const childMaxStack = 256 << 20

// RunExec is the child side of a validation: it exercises the candidate
// against every fixture case from args.FromCase on and reports one protocol
// line per case on stdout. It returns the process exit code.
func RunExec(ctx context.Context, args ExecArgs, stdout, stderr io.Writer) int {
	set, err := fixtures.NewStore(args.FixturesDir).Load(args.Target)
	if err != nil {
		fmt.Fprintf(stderr, "harness: %v\n", err)
		return ExitHarness
	}
	if args.FromCase > len(set.Cases) {
		fmt.Fprintf(stderr, "harness: --from-case %d beyond %d cases\n", args.FromCase, len(set.Cases))
		return ExitHarness
	}

	debug.SetMaxStack(childMaxStack)
	fmt.Fprintln(stdout, formatStartLine(len(set.Cases), args.FromCase))

	for i := args.FromCase; i < len(set.Cases); i++ {
		c := set.Cases[i]
		if ctx.Err() != nil {
			fmt.Fprintf(stderr, "harness: %v\n", ctx.Err())
			return ExitHarness
		}
		r := runCase(ctx, args, fixtures.ID(i), c)
		fmt.Fprintln(stdout, formatCaseLine(r))
		if args.Verbose {
			fmt.Fprintln(stdout, formatVerboseLine(r))
		}
	}
	return ExitCompleted
}

// runCase binds the candidate afresh and calls it once. A case that
// overruns its timeout is abandoned; its goroutine dies with the process.
func runCase(ctx context.Context, args ExecArgs, id string, c fixtures.Case) CaseResult {
	done := make(chan CaseResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CaseResult{ID: id, Status: StatusError, Kind: KindExecution, Detail: fmt.Sprintf("panic: %v", r)}
			}
		}()
		done <- evaluate(args, id, c)
	}()

	timer := time.NewTimer(args.CaseTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return r
	case <-timer.C:
		return CaseResult{ID: id, Status: StatusError, Kind: KindTimeout,
			Detail: fmt.Sprintf("timed out after %s", args.CaseTimeout)}
	case <-ctx.Done():
		return CaseResult{ID: id, Status: StatusError, Kind: KindTimeout, Detail: ctx.Err().Error()}
	}
}

func evaluate(args ExecArgs, id string, c fixtures.Case) CaseResult {
	callable, err := binder.Bind(args.CodeFilePath)
	if err != nil {
		return CaseResult{ID: id, Status: StatusError, Kind: KindBinding, Detail: err.Error()}
	}

	got, err := callable.Call(c.Args)
	if err != nil {
		var panicErr *binder.PanicError
		var argErr *binder.ArgumentError
		detail := "error: " + err.Error()
		if errors.As(err, &panicErr) || errors.As(err, &argErr) {
			detail = err.Error()
		}
		return CaseResult{ID: id, Status: StatusError, Kind: KindExecution, Detail: detail}
	}

	equal, gotJSON, err := equalJSON(c.Expected, got)
	if err != nil {
		return CaseResult{ID: id, Status: StatusError, Kind: KindExecution, Detail: err.Error()}
	}
	if !equal {
		return CaseResult{ID: id, Status: StatusFail,
			Detail: fmt.Sprintf("expected %s, got %s", compact(c.Expected), gotJSON)}
	}
	return CaseResult{ID: id, Status: StatusPass}
}

// equalJSON compares a returned value with the expected JSON by
// normalising both through JSON. A null on one side equals an empty array
// or object on the other, since Go encodes nil slices and maps as null.
func equalJSON(expected json.RawMessage, got any) (bool, string, error) {
	gotData, err := json.Marshal(got)
	if err != nil {
		return false, "", fmt.Errorf("result is not JSON-encodable: %w", err)
	}

	var want, have any
	if err := json.Unmarshal(expected, &want); err != nil {
		return false, "", fmt.Errorf("expected value: %w", err)
	}
	if err := json.Unmarshal(gotData, &have); err != nil {
		return false, "", fmt.Errorf("result: %w", err)
	}
	return cmp.Equal(want, have, nullEquatesEmpty), string(gotData), nil
}

var nullEquatesEmpty = cmp.FilterValues(func(x, y any) bool {
	return (x == nil && isEmptyCollection(y)) || (y == nil && isEmptyCollection(x))
}, cmp.Comparer(func(_, _ any) bool { return true }))

func isEmptyCollection(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
