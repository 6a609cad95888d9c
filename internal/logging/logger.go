// Package logging builds the zap loggers used by DeepCurrent components.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	Level   string   // debug, info, warn, error
	Format  string   // json or console
	Verbose bool     // forces debug level
	Outputs []string // zap sink URLs; defaults to stderr
}

// New builds the process logger. Components derive their own logger
// with Component rather than reading a global.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	config := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	if len(opts.Outputs) > 0 {
		config.OutputPaths = opts.Outputs
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a level name to a zap level; empty means warn.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.WarnLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.WarnLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Component returns l tagged with a component name; a nil l yields a no-op logger.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String("component", name))
}

// Timed logs event at info level with the elapsed time since start.
func Timed(l *zap.Logger, event string, start time.Time, fields ...zap.Field) {
	fields = append(fields, zap.Duration("duration", time.Since(start)))
	l.Info(event, fields...)
}
