// =============================================================================
// Tax Transaction Manager - Logger Module
// =============================================================================
//
// This module builds the zap logger shared by every command.
//
// OUTPUT:
//   2026-10-19T10:15:04.123+0200  INFO  <caller>  calculated tax  {"file": "input/sales.csv", ...}
//
// Log lines go to stderr; stdout carries command output only.
//
// =============================================================================

package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger writing human-readable lines to stderr at the
// provided level (debug, info, warn, error). Stdout is left to command output.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil

	if level == "" {
		level = "info"
	}

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}
