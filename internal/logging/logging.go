// Package logging builds the broker's structured logger, grounded on
// go-server-3/internal/logging.NewLogger: the same zap.Config shape, with
// the logging concern's only dial a level string rather than a richer
// LoggingConfig, since the broker's CLI surface (spec.md §6) carries no
// other logging knob.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON-encoded zap logger at the given level ("debug", "info",
// "warn", "error"; empty defaults to "info").
func New(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", level, err)
	}

	cfg := zap.Config{
		Level: zap.NewAtomicLevelAt(lvl),
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
