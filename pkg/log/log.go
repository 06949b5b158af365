// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used across the generator.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Sync() error
}

type zapLogger struct {
	log *zap.Logger
}

// New creates a production logger at info level.
func New() Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a logger with a specific level.
func NewWithLevel(level string) Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	case "fatal":
		lvl = zapcore.FatalLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return &noOpLogger{}
	}

	return &zapLogger{log: logger.Named("funnelgen")}
}

// NoOp returns a no-op logger.
func NoOp() Logger {
	return &noOpLogger{}
}

// NoLog is a no-op logger instance.
var NoLog = NoOp()

func (l *zapLogger) Debug(msg string, fields ...zap.Field) { l.log.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)  { l.log.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)  { l.log.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field) { l.log.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field) { l.log.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error                           { return l.log.Sync() }

type noOpLogger struct{}

func (n *noOpLogger) Debug(msg string, fields ...zap.Field) {}
func (n *noOpLogger) Info(msg string, fields ...zap.Field)  {}
func (n *noOpLogger) Warn(msg string, fields ...zap.Field)  {}
func (n *noOpLogger) Error(msg string, fields ...zap.Field) {}
func (n *noOpLogger) Fatal(msg string, fields ...zap.Field) {}
func (n *noOpLogger) Sync() error                           { return nil }
