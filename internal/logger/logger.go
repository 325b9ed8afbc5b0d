package logger

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

// Init initializes structured JSON logging. Debug level is enabled when
// debug is true (also adds source positions).
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func get() *slog.Logger {
	if Logger == nil {
		Init(false)
	}
	return Logger
}

// Helper functions for common log operations.

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}
