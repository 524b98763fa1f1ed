// Package logging provides categorized structured logging for mender.
// Every category shares one zap core; the category is attached as a field so
// log lines can be filtered per subsystem. Before Initialize is called every
// logger is a no-op, which keeps library packages silent in tests.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, configuration
	CategoryFixtures Category = "fixtures" // Fixture store lookups
	CategoryBinder   Category = "binder"   // Candidate loading in the child
	CategoryChecker  Category = "checker"  // Static checks
	CategoryHarness  Category = "harness"  // Validation oracle
	CategoryTactile  Category = "tactile"  // Subprocess execution
	CategoryRepair   Category = "repair"   // Orchestrator control loop
	CategoryAPI      Category = "api"      // Reasoning service calls
	CategoryMetrics  Category = "metrics"  // Metrics export
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level       string          // debug, info, warn, error
	Format      string          // json, console
	File        string          // optional output path; stderr when empty
	Development bool            // zap development config (stack traces on warn)
	Categories  map[string]bool // per-category switch; missing means enabled
}

// Logger is a printf-style logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	base       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Initialize builds the shared zap logger. Safe to call more than once; the
// previous logger is synced and replaced.
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if opts.Format != "" {
		cfg.Encoding = opts.Format
	}
	if cfg.Encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}

	built, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	old := base
	base = built
	categories = opts.Categories
	loggers = make(map[Category]*Logger)
	mu.Unlock()

	_ = old.Sync()
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s", level, cfg.Encoding)
	return nil
}

// Replace swaps the underlying zap logger. Tests use it with zaptest/observer.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	categories = nil
	loggers = make(map[Category]*Logger)
}

// Sync flushes buffered entries (call at shutdown).
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	_ = l.Sync()
}

// Zap returns the shared logger with the category attached, for callers that
// want typed fields instead of printf formatting.
func Zap(category Category) *zap.Logger {
	return Get(category).sugar.Desugar()
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, ok := categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	enabled := IsCategoryEnabled(category)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	z := base
	if !enabled {
		z = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    z.With(zap.String("category", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying extra key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func Fixtures(format string, args ...interface{})      { Get(CategoryFixtures).Info(format, args...) }
func FixturesDebug(format string, args ...interface{}) { Get(CategoryFixtures).Debug(format, args...) }

func Binder(format string, args ...interface{})      { Get(CategoryBinder).Info(format, args...) }
func BinderDebug(format string, args ...interface{}) { Get(CategoryBinder).Debug(format, args...) }

func CheckerDebug(format string, args ...interface{}) { Get(CategoryChecker).Debug(format, args...) }
func CheckerWarn(format string, args ...interface{})  { Get(CategoryChecker).Warn(format, args...) }

func Harness(format string, args ...interface{})      { Get(CategoryHarness).Info(format, args...) }
func HarnessDebug(format string, args ...interface{}) { Get(CategoryHarness).Debug(format, args...) }
func HarnessWarn(format string, args ...interface{})  { Get(CategoryHarness).Warn(format, args...) }
func HarnessError(format string, args ...interface{}) { Get(CategoryHarness).Error(format, args...) }

func Tactile(format string, args ...interface{})      { Get(CategoryTactile).Info(format, args...) }
func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...interface{})  { Get(CategoryTactile).Warn(format, args...) }
func TactileError(format string, args ...interface{}) { Get(CategoryTactile).Error(format, args...) }

func Repair(format string, args ...interface{})      { Get(CategoryRepair).Info(format, args...) }
func RepairDebug(format string, args ...interface{}) { Get(CategoryRepair).Debug(format, args...) }
func RepairWarn(format string, args ...interface{})  { Get(CategoryRepair).Warn(format, args...) }
func RepairError(format string, args ...interface{}) { Get(CategoryRepair).Error(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
