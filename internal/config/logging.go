package config

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds hearth's dual-output logger: readable text on
// stderr for whoever started the process, JSON appended to logFile so
// a serve run can be inspected after the fact. Returns the logger and
// a cleanup that closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: level}
	stderr := slog.NewTextHandler(os.Stderr, opts)

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// A broken log path must not take the assistant down.
		logger := slog.New(stderr).With("app", "hearth")
		logger.Warn("log file unavailable, logging to stderr only", "file", logFile, "error", err)
		return logger, func() error { return nil }
	}

	fanout := slogmulti.Fanout(stderr, slog.NewJSONHandler(file, opts))
	return slog.New(fanout).With("app", "hearth"), file.Close
}
