// Package logger provides the structured logger shared by every package in
// this module. It wraps log/slog the way runtime/logger/logger.go does —
// a package-level DefaultLogger, env-var-driven level, context-aware
// variants — minus the LLM-call and API-key-redaction helpers, which have
// no counterpart in a practice-session core.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogger is the global structured logger instance. Safe for
// concurrent use.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("DRILLFORGE_LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel replaces DefaultLogger with one at the given level.
func SetLevel(level slog.Level) {
	DefaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetVerbose is a convenience wrapper for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

// With returns a logger with the given key-value attributes attached to
// every subsequent record.
func With(args ...any) *slog.Logger {
	return DefaultLogger.With(args...)
}

func Info(msg string, args ...any)  { DefaultLogger.Info(msg, args...) }
func Debug(msg string, args ...any) { DefaultLogger.Debug(msg, args...) }
func Warn(msg string, args ...any)  { DefaultLogger.Warn(msg, args...) }
func Error(msg string, args ...any) { DefaultLogger.Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}
