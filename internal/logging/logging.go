// Package logging builds the zap logger shared by the CLI and the runner.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Verbose switches to a human-readable console encoder at debug level.
	Verbose bool
	// Format is "text" or "json".
	Format string
	// OutputPaths overrides where logs go. Defaults to stderr.
	OutputPaths []string
}

// New returns a configured logger.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Verbose && opts.Format != "json" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Scenario returns a child logger tagged with the scenario name.
func Scenario(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String("scenario", name))
}

// Case returns a child logger tagged with the case index and name.
func Case(l *zap.Logger, index int, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.Int("case", index), zap.String("case_name", name))
}
