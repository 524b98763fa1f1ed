package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestCategoryFieldAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	Harness("validated %s", "add")
	RepairDebug("attempt %d", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "validated add", entries[0].Message)
	assert.Equal(t, "harness", entries[0].ContextMap()["category"])
	assert.Equal(t, "attempt 2", entries[1].Message)
	assert.Equal(t, "repair", entries[1].ContextMap()["category"])
}

func TestDisabledCategoryIsSilent(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "mender.log")

	require.NoError(t, Initialize(Options{
		Level:      "debug",
		Format:     "json",
		File:       logPath,
		Categories: map[string]bool{"api": false},
	}))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	API("should not appear")
	Tactile("should appear")
	Sync()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.Contains(content, "should appear"))
	assert.False(t, strings.Contains(content, "should not appear"))
	assert.True(t, IsCategoryEnabled(CategoryHarness), "unlisted categories default to enabled")
}

func TestInitializeRejectsUnknownLevel(t *testing.T) {
	err := Initialize(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestTimerThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(zap.NewNop()) })

	timer := StartTimer(CategoryHarness, "slow op")
	time.Sleep(5 * time.Millisecond)
	timer.StopWithThreshold(time.Nanosecond)

	warned := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warned, 1)
	assert.Contains(t, warned[0].Message, "slow op took")
}
