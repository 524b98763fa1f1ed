package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mender/internal/harness"
)

// exitCodeError carries a child exit code back to main, which owns the
// single os.Exit call.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// harnessExecCmd is the child entry point started by the harness. It parses
// its own flags so the protocol stays independent of the root command.
var harnessExecCmd = &cobra.Command{
	Use:                harness.ExecCommand,
	Short:              "Run a candidate against its fixtures (internal)",
	Hidden:             true,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		execArgs, err := harness.ParseExecArgs(args)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "harness: %v\n", err)
			return &exitCodeError{code: harness.ExitHarness}
		}
		if code := harness.RunExec(cmd.Context(), execArgs, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != harness.ExitCompleted {
			return &exitCodeError{code: code}
		}
		return nil
	},
}
