// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"time"

	"github.com/luxfi/node/utils/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field.
type Field = zap.Field

// Logger is the structured logger every component takes at construction.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// nodeLogger is the part of luxfi/node's logging.Logger the wrapper uses.
type nodeLogger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Stop()
}

// luxLogger wraps luxfi/node's Logger. It has no With of its own, so
// context fields are kept here and prepended to every entry.
type luxLogger struct {
	log    nodeLogger
	fields []Field
}

// zapLogger wraps a zap logger
type zapLogger struct {
	log *zap.Logger
}

// New creates a new logger at info level
func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a new logger with specific level
func NewWithLevel(level string) Logger {
	return newNamed("ads", level)
}

// NewLogger creates a new info level logger with a name
func NewLogger(name string) Logger {
	return newNamed(name, "info")
}

func newNamed(name, level string) Logger {
	// Map string level to luxfi's Level type
	lvl := logging.Info
	zapLvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl, zapLvl = logging.Debug, zapcore.DebugLevel
	case "warn":
		lvl, zapLvl = logging.Warn, zapcore.WarnLevel
	case "error":
		lvl, zapLvl = logging.Error, zapcore.ErrorLevel
	}

	config := logging.Config{
		DisplayLevel:            lvl,
		LogLevel:                lvl,
		DisableWriterDisplaying: false,
	}
	log, err := logging.NewFactory(config).Make(name)
	if err == nil {
		return &luxLogger{log: log}
	}

	// Fall back to a plain zap logger at the same level.
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLvl)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, zerr := zapConfig.Build()
	if zerr != nil {
		return &noOpLogger{}
	}
	return &zapLogger{log: z.Named(name)}
}

func (l *luxLogger) Debug(msg string, fields ...Field) { l.log.Debug(msg, l.with(fields)...) }
func (l *luxLogger) Info(msg string, fields ...Field) { l.log.Info(msg, l.with(fields)...) }
func (l *luxLogger) Warn(msg string, fields ...Field) { l.log.Warn(msg, l.with(fields)...) }
func (l *luxLogger) Error(msg string, fields ...Field) { l.log.Error(msg, l.with(fields)...) }

func (l *luxLogger) With(fields ...Field) Logger {
	return &luxLogger{log: l.log, fields: l.with(fields)}
}

// Sync flushes any buffered log entries
func (l *luxLogger) Sync() error {
	l.log.Stop()
	return nil
}

func (l *luxLogger) with(fields []Field) []Field {
	if len(l.fields) == 0 {
		return fields
	}
	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	return append(all, fields...)
}

// FromZap wraps an existing zap logger, e.g. zaptest.NewLogger(t).
func FromZap(log *zap.Logger) Logger {
	return &zapLogger{log: log}
}

// NoOp returns a no-op logger
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a no-op logger instance
var NoLog = NoOp()

func (l *zapLogger) Debug(msg string, fields ...Field) { l.log.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field) { l.log.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field) { l.log.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.log.Error(msg, fields...) }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{log: l.log.With(fields...)}
}

// Sync flushes any buffered log entries
func (l *zapLogger) Sync() error {
	return l.log.Sync()
}

// noOpLogger is a logger that does nothing
type noOpLogger struct{}

func (n *noOpLogger) Debug(string, ...Field) {}
func (n *noOpLogger) Info(string, ...Field) {}
func (n *noOpLogger) Warn(string, ...Field) {}
func (n *noOpLogger) Error(string, ...Field) {}
func (n *noOpLogger) With(...Field) Logger { return n }
func (n *noOpLogger) Sync() error { return nil }

func String(key, val string) Field { return zap.String(key, val) }
func Strings(key string, val []string) Field { return zap.Strings(key, val) }
func Int(key string, val int) Field { return zap.Int(key, val) }
func Float64(key string, val float64) Field { return zap.Float64(key, val) }
func Bool(key string, val bool) Field { return zap.Bool(key, val) }
func Time(key string, val time.Time) Field { return zap.Time(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Stringer(key string, val interface{ String() string }) Field {
	return zap.Stringer(key, val)
}

func Error(err error) Field {
	return zap.Error(err)
}
