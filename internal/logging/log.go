// SPDX-License-Identifier: AGPL-3.0-or-later
// GoBTS - an open-source GSM base station core

// Package logging wires log/slog to the configured level, matching the
// handler selection the reference CLI performs inline.
package logging

import (
	"log/slog"
	"os"

	"github.com/gobts/gobts/internal/config"
	"github.com/lmittmann/tint"
)

// Setup builds and installs the process-wide slog default logger for the
// given log level.
func Setup(level config.LogLevel) *slog.Logger {
	var logger *slog.Logger
	switch level {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	case config.LogLevelInfo:
		fallthrough
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
	return logger
}

// Alert logs a fatal internal-invariant violation (spec.md §7: "Fatal
// internal assertions log at ALERT and terminate the process") and exits.
func Alert(msg string, args ...any) {
	slog.Error(msg, append(args, slog.Bool("alert", true))...)
	os.Exit(1)
}
