package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/samcharles93/steer/internal/logger"
)

// newLogger builds the CLI logger. The "auto" format is pretty on a
// terminal and JSON otherwise.
func newLogger(w io.Writer, level, format string, debug bool) logger.Logger {
	lvl := logger.ParseLevel(level)
	if debug {
		lvl = slog.LevelDebug
	}
	switch resolveLogFormat(format) {
	case "json":
		return logger.JSON(w, lvl)
	case "text":
		return logger.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	default:
		return logger.Pretty(w, lvl)
	}
}

func resolveLogFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "pretty", "json", "text":
		return f
	}
	if stderrIsTTY() {
		return "pretty"
	}
	return "json"
}
