// Copyright 2025. Grounded on packetd-packetd/logger/logger.go's
// zap-backed sugared logger, scaled to an instance value instead of a
// package-level global since a client library must not mutate process-wide
// logging state behind a caller's back.

package amqp

import (
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the minimal structured-logging surface this client calls into:
// reader-loop protocol errors, heartbeat misses, unroutable returns with no
// NotifyReturn handler registered (spec.md §9 open question, resolved here as
// "log a warning"), and consumer callback panics contained per §4.5.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

type zapLogger struct {
	sugared *zap.SugaredLogger
}

func (l zapLogger) Debugf(template string, args ...interface{}) { l.sugared.Debugf(template, args...) }
func (l zapLogger) Infof(template string, args ...interface{})  { l.sugared.Infof(template, args...) }
func (l zapLogger) Warnf(template string, args ...interface{})  { l.sugared.Warnf(template, args...) }
func (l zapLogger) Errorf(template string, args ...interface{}) { l.sugared.Errorf(template, args...) }

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// LogFile, when set, rotates logs through lumberjack instead of writing
	// to stdout -- for long-lived consumer processes.
	LogFile    string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Level      zapcore.Level
}

// NewLogger builds a zap-backed Logger. Callers that do not want any
// client-library logging should leave Config.Logger nil, which defaults to
// a no-op implementation.
func NewLogger(opt LoggerOptions) Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var sink zapcore.WriteSyncer
	if opt.LogFile != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.LogFile,
			MaxSize:    opt.MaxSizeMB,
			MaxAge:     opt.MaxAgeDays,
			MaxBackups: opt.MaxBackups,
			LocalTime:  true,
		})
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, opt.Level)
	return zapLogger{sugared: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Errorf(string, ...interface{}) {}
