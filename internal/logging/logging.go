// Package logging builds the zap loggers used by the wp binary.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"workplace/internal/config"
)

// New returns a production logger configured from settings. Output goes to
// stderr unless log.file is set.
func New(s config.Settings) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if s.Log.Format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	if s.Log.File != "" {
		cfg.OutputPaths = []string{s.Log.File}
		cfg.ErrorOutputPaths = []string{s.Log.File}
	}
	return cfg.Build()
}

// ForTerminal returns a logger that never writes to the terminal: a no-op
// logger unless log.file is set.
func ForTerminal(s config.Settings) (*zap.Logger, error) {
	if s.Log.File == "" {
		return zap.NewNop(), nil
	}
	return New(s)
}
