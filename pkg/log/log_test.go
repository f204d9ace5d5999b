// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapCarriesFields(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With(String("component", "serving"))

	logger.Debug("excluded", String("creative_set_id", "cs-1"), Int("count", 2))
	logger.Error("failed", Error(errors.New("boom")))

	entries := logs.All()
	require.Len(entries, 2)
	require.Equal("excluded", entries[0].Message)
	require.Equal("serving", entries[0].ContextMap()["component"])
	require.Equal("cs-1", entries[0].ContextMap()["creative_set_id"])
	require.Equal(int64(2), entries[0].ContextMap()["count"])
	require.Equal("boom", entries[1].ContextMap()["error"])
}

func TestNoOpLogger(t *testing.T) {
	require := require.New(t)

	logger := NoOp()
	logger.Info("ignored", Bool("ok", true))
	require.Same(logger, logger.With(String("k", "v")))
	require.NoError(logger.Sync())
}

type entry struct {
	level  string
	msg    string
	fields []zap.Field
}

type recordingLogger struct {
	entries []entry
	stopped bool
}

func (r *recordingLogger) record(level, msg string, fields []zap.Field) {
	r.entries = append(r.entries, entry{level: level, msg: msg, fields: fields})
}

func (r *recordingLogger) Debug(msg string, fields ...zap.Field) { r.record("debug", msg, fields) }
func (r *recordingLogger) Info(msg string, fields ...zap.Field)  { r.record("info", msg, fields) }
func (r *recordingLogger) Warn(msg string, fields ...zap.Field)  { r.record("warn", msg, fields) }
func (r *recordingLogger) Error(msg string, fields ...zap.Field) { r.record("error", msg, fields) }
func (r *recordingLogger) Stop()                                 { r.stopped = true }

func TestLuxLoggerPrependsContextFields(t *testing.T) {
	require := require.New(t)

	node := &recordingLogger{}
	var base Logger = &luxLogger{log: node}
	queue := base.With(String("component", "confirmation_queue"))
	retry := queue.With(String("transaction_id", "tx"))

	base.Info("started")
	retry.Warn("retrying", Int("attempt", 2))
	queue.Error("failed", Error(errors.New("boom")))
	require.NoError(retry.Sync())

	require.Len(node.entries, 3)
	require.Empty(node.entries[0].fields)
	require.Equal("warn", node.entries[1].level)
	require.Equal([]zap.Field{
		String("component", "confirmation_queue"),
		String("transaction_id", "tx"),
		Int("attempt", 2),
	}, node.entries[1].fields)
	require.Equal([]zap.Field{
		String("component", "confirmation_queue"),
		Error(errors.New("boom")),
	}, node.entries[2].fields)
	require.True(node.stopped)
}

func TestNewWithLevel(t *testing.T) {
	// The node logging factory writes its log file to the working directory.
	t.Chdir(t.TempDir())

	for _, level := range []string{"debug", "info", "warn", "error", "unknown"} {
		logger := NewWithLevel(level)
		require.NotNil(t, logger)
		logger.Info("level set", String("level", level))
		_ = logger.Sync()
	}
}
