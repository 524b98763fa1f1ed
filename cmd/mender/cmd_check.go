package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mender/internal/checker"
	"mender/internal/logging"
	"mender/internal/ux"
)

var checkMaxLineLength int

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Run the static checks on a Go source file",
	Long: `Parses the file and reports syntax errors, overlong lines, recover()
calls whose value is discarded and imports that appear unused. The report is
advisory and printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkMaxLineLength, "max-line-length", 0, "Maximum line length (default from config)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	limit := checkMaxLineLength
	if limit <= 0 && cfg != nil {
		limit = cfg.Checker.MaxLineLength
	}

	report := checker.Check(string(data), limit)
	logging.Zap(logging.CategoryChecker).Debug("checked file", zap.String("file", args[0]), zap.Object("report", report))
	return ux.RenderJSON(cmd.OutOrStdout(), report)
}
