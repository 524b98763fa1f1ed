// Command mender repairs small buggy Go functions: reasoning stages propose
// a fix, a subprocess harness checks it against hidden fixtures, and
// rejected fixes are retried with the test evidence.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mender/internal/config"
	"mender/internal/harness"
	"mender/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// errVerdictNotPass makes the process exit 1 without printing usage.
var errVerdictNotPass = errors.New("candidate did not pass")

var rootCmd = &cobra.Command{
	Use:   "mender",
	Short: "mender - automated program repair with dynamic validation",
	Long: `mender repairs single-function Go source units.

For every target it analyses the bug, classifies it, picks repair strategies,
proposes and generates a fix, then runs the fix against hidden input/output
fixtures in an isolated child process. Failed fixes are retried with the test
output as evidence, within a bounded budget.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The child stays silent and configless; the parent owns its output.
		if cmd.Name() == harness.ExecCommand {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded

		if err := logging.Initialize(cfg.LoggingOptions(verbose)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Zap(logging.CategoryBoot)
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "Path to the YAML config file")

	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(harnessExecCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		code := 1
		var exitErr *exitCodeError
		switch {
		case errors.As(err, &exitErr):
			code = exitErr.code
		case !errors.Is(err, errVerdictNotPass):
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		logging.Sync()
		os.Exit(code)
	}
}
