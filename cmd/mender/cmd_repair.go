package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mender/internal/config"
	"mender/internal/harness"
	"mender/internal/logging"
	"mender/internal/metrics"
	"mender/internal/perception"
	"mender/internal/prompt"
	"mender/internal/repair"
	"mender/internal/ux"
)

var (
	repairOutput     string
	repairFixtures   string
	repairWorkers    int
	repairMaxRetries int
	repairDryRun     bool
	repairJSON       bool
)

var repairCmd = &cobra.Command{
	Use:   "repair <targets-dir>",
	Short: "Repair every target in a directory",
	Long: `Runs the repair loop over every .go file in the directory. Each file is
one target named after the function it defines. Accepted and exhausted
candidates are written to the output directory; a summary is printed when
all targets are done.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&repairOutput, "output", "", "Output directory (default from config)")
	repairCmd.Flags().StringVar(&repairFixtures, "fixtures", "", "Fixture directory (default from config)")
	repairCmd.Flags().IntVar(&repairWorkers, "workers", 0, "Targets repaired in parallel (default from config)")
	repairCmd.Flags().IntVar(&repairMaxRetries, "max-retries", 0, "Regenerations after a rejected candidate (default from config)")
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "Do not write corrected files")
	repairCmd.Flags().BoolVar(&repairJSON, "json", false, "Print the summary as JSON")
}

// applyRepairFlags overlays explicitly set flags onto the loaded config.
func applyRepairFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output") {
		c.Paths.OutputDir = repairOutput
	}
	if flags.Changed("fixtures") {
		c.Paths.FixturesDir = repairFixtures
	}
	if flags.Changed("workers") {
		c.Repair.Workers = repairWorkers
	}
	if flags.Changed("max-retries") {
		c.Repair.MaxRetries = repairMaxRetries
	}
	if flags.Changed("dry-run") {
		c.Repair.DryRun = repairDryRun
	}
	return c.Validate()
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := applyRepairFlags(cmd, cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	stages, err := buildStages(ctx, cfg, m)
	if err != nil {
		return err
	}
	h, err := harness.FromConfig(cfg)
	if err != nil {
		return err
	}

	orch := repair.New(stages, h, repair.Options{
		OutputDir:     cfg.Paths.OutputDir,
		MaxRetries:    cfg.Repair.MaxRetries,
		Workers:       cfg.Repair.Workers,
		Pacing:        cfg.GetPacing(),
		Exempt:        cfg.Repair.ValidationExempt,
		DryRun:        cfg.Repair.DryRun,
		MaxLineLength: cfg.Checker.MaxLineLength,
	}, m)

	summary, runErr := orch.Run(ctx, args[0])
	if summary != nil {
		if repairJSON {
			err = ux.RenderJSON(cmd.OutOrStdout(), summary)
		} else {
			err = ux.RenderSummary(cmd.OutOrStdout(), summary)
		}
		if err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logging.RepairWarn("failed to write metrics textfile: %v", err)
		}
	}
	return runErr
}

// buildStages wires the prompt catalog to the configured model.
func buildStages(ctx context.Context, c *config.Config, m *metrics.Metrics) (repair.Stages, error) {
	if err := c.ValidateLLM(); err != nil {
		return repair.Stages{}, err
	}
	catalog, err := prompt.Load()
	if err != nil {
		return repair.Stages{}, fmt.Errorf("failed to load prompts: %w", err)
	}
	client, err := perception.NewClientFromConfig(ctx, c)
	if err != nil {
		return repair.Stages{}, fmt.Errorf("failed to create LLM client: %w", err)
	}

	var observer perception.CallObserver
	if m != nil {
		observer = m
	}
	transducers, err := perception.NewStageTransducers(perception.NewTracingLLMClient(client, observer), catalog)
	if err != nil {
		return repair.Stages{}, err
	}

	logging.Zap(logging.CategoryBoot).Info("reasoning stages ready",
		zap.String("provider", c.LLM.Provider),
		zap.String("model", c.LLM.Model),
		zap.Strings("stages", catalog.IDs()))
	return repair.NewStages(transducers)
}
