// Package logutil configures the process-wide structured logger.
package logutil

import (
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 5
	maxBackups = 3
)

// Init routes slog output to a size-rotated log file and installs the
// resulting logger as the default.
func Init(pathToLog string, verbose bool) *slog.Logger {
	w := &lumberjack.Logger{
		Filename:   pathToLog,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(l)

	return l
}
