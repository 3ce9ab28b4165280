package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLoggerLevels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationSearch)
	testLogger.Warn("warning message", StageKey, "score")
	testLogger.Error("error message", fmt.Errorf("test error"), FoldKey, 2)

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField("error", "test error"))
}

func TestTestLoggerWith(t *testing.T) {
	base, _ := NewTestLogger(LevelInfo)
	logger := base.With(PipelineIDKey, "none_logreg", RandomSeedKey, 7)
	logger.Info("Search started")

	entries, err := base.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "none_logreg", entries[0][PipelineIDKey])
	assert.Equal(t, 7.0, entries[0][RandomSeedKey])
}

func TestTestLoggerFiltersBelowLevel(t *testing.T) {
	logger, buffer := NewTestLogger(LevelWarn)
	logger.Debug("hidden")
	logger.Info("hidden")
	assert.Empty(t, buffer.String())
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestTestLoggerNaNField(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	logger.Info("Trial evaluated", LossKey, math.NaN())
	assert.True(t, logger.ContainsField(LossKey, "NaN"))
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("not emitted")
	logger.With(PipelineIDKey, "fisher_score_gnb").Info("Trial evaluated", IterationKey, 3, LossKey, 0.25)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Trial evaluated", entry["message"])
	assert.Equal(t, "fisher_score_gnb", entry[PipelineIDKey])
	assert.Equal(t, 3.0, entry[IterationKey])
	assert.Equal(t, 0.25, entry[LossKey])
}

func TestZerologLoggerErrorField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	logger.Error("Checkpoint write failed", errors.NewCheckpointError("write", "k", errors.ErrCheckpointLocked), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Contains(t, entry["error"], "checkpoint is locked")
	assert.Equal(t, "dangling", entry["!BADKEY"])
}

func TestSetLoggerRoutesWarnings(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	var buf bytes.Buffer
	SetLogger(NewZerologLogger(&buf, LevelDebug))
	errors.Warn(errors.NewUndefinedMetricWarning("mcc", "zero denominator", 0))

	out := buf.String()
	assert.Contains(t, out, "UndefinedMetricWarning")
	assert.Contains(t, out, `"level":"warn"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Info("discarded")
	assert.False(t, logger.Enabled(context.Background(), LevelError))
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	const goroutines, perGoroutine = 4, 5
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				testLogger.Info(fmt.Sprintf("goroutine %d message %d", id, j), "goroutine_id", id)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, goroutines*perGoroutine)
}

func BenchmarkZerologLogging(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("benchmark message", IterationKey, i, LossKey, 0.1)
	}
}
