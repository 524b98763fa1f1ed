package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mender/internal/harness"
	"mender/internal/ux"
)

var (
	validateFixtures string
	validateTable    bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <target> <candidate-file>",
	Short: "Run one candidate against the hidden fixtures of a target",
	Long: `Runs the candidate in the harness child process and prints the verdict.
Exits 1 unless every fixture case passes.`,
	Args: cobra.ExactArgs(2),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateFixtures, "fixtures", "", "Fixture directory (default from config)")
	validateCmd.Flags().BoolVar(&validateTable, "table", false, "Print a table instead of JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	target, candidatePath := args[0], args[1]

	source, err := os.ReadFile(candidatePath)
	if err != nil {
		return fmt.Errorf("failed to read candidate: %w", err)
	}

	if validateFixtures != "" {
		cfg.Paths.FixturesDir = validateFixtures
	}
	h, err := harness.FromConfig(cfg)
	if err != nil {
		return err
	}

	verdict := h.Validate(cmd.Context(), target, string(source))

	if validateTable {
		err = ux.RenderVerdict(cmd.OutOrStdout(), target, verdict)
	} else {
		err = ux.RenderJSON(cmd.OutOrStdout(), verdict)
	}
	if err != nil {
		return err
	}
	if !verdict.Passed() {
		return errVerdictNotPass
	}
	return nil
}
