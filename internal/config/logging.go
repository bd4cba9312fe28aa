package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger creates a JSON logger writing to w and, when logFile is set,
// fanned out to a JSON log file as well.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(w io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	primary := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	if logFile == "" {
		return slog.New(primary), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to the primary writer only if the file fails.
		logger := slog.New(primary)
		logger.Error("failed to open log file, using primary output only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(slogmulti.Fanout(primary, fileHandler))

	cleanup := func() error {
		return file.Close()
	}

	return logger, cleanup
}

// SetupLoggerWithWriters creates a fanout logger with custom writers (for testing).
func SetupLoggerWithWriters(primary, file io.Writer, level slog.Level) *slog.Logger {
	primaryHandler := slog.NewJSONHandler(primary, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(primaryHandler, fileHandler))
}
