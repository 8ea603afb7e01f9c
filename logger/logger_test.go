package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestSetLevel_ChangesDefaultLogger(t *testing.T) {
	orig := DefaultLogger
	defer func() { DefaultLogger = orig }()

	SetLevel(slog.LevelError)
	if DefaultLogger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("logger at LevelError should not be enabled for LevelWarn")
	}
	if !DefaultLogger.Enabled(context.Background(), slog.LevelError) {
		t.Error("logger at LevelError should be enabled for LevelError")
	}
}

func TestSetVerbose(t *testing.T) {
	orig := DefaultLogger
	defer func() { DefaultLogger = orig }()

	SetVerbose(true)
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetVerbose(true) should enable debug logging")
	}

	SetVerbose(false)
	if DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("SetVerbose(false) should disable debug logging")
	}
}

func TestWith_AttachesFields(t *testing.T) {
	l := With("session", "abc123")
	if l == nil {
		t.Fatal("With() returned nil logger")
	}
}

func TestLoggingHelpersDoNotPanic(t *testing.T) {
	Info("info message", "k", "v")
	Debug("debug message")
	Warn("warn message")
	Error("error message", "err", "boom")
	InfoContext(context.Background(), "info with context")
	ErrorContext(context.Background(), "error with context")
}
