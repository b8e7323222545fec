// Package logger wraps zap's sugared logger with the key-value call shape
// used across the hub (Info/Warn/Error/Debug all take a message followed
// by alternating keys and values) plus a per-request child logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a structured, leveled logger built on zap.
type Logger struct {
	sugar *zap.SugaredLogger
}

// New builds a Logger for the given level ("debug", "info", "warn", "error")
// and environment. Production environments get JSON output; anything else
// gets zap's human-readable console encoder.
func New(level, environment string) *Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	var cfg zap.Config
	if environment == "production" || environment == "staging" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	zl, err := cfg.Build()
	if err != nil {
		zl = zap.NewNop()
	}

	return &Logger{sugar: zl.Sugar()}
}

// ForRequest returns a child logger annotated with request identity, used by
// the HTTP logging middleware so every log line in a request's lifetime
// carries the same fields.
func (l *Logger) ForRequest(requestID, method, path string) *Logger {
	return &Logger{sugar: l.sugar.With(
		"request_id", requestID,
		"method", method,
		"path", path,
	)}
}

// With returns a child logger with additional fixed key-value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Debugw/Infow/Warnw/Errorw are aliases kept for call sites that spell out
// the zap-style "w" suffix explicitly.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) { l.Debug(msg, keysAndValues...) }
func (l *Logger) Infow(msg string, keysAndValues ...interface{})  { l.Info(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...interface{})  { l.Warn(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) { l.Error(msg, keysAndValues...) }

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// Zap returns the underlying *zap.Logger, for the handful of components
// built in zap's structured-field style (zap.Error(err) etc.) rather
// than this wrapper's key-value call shape.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}
