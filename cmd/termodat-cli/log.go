package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	console "github.com/phsym/console-slog"
)

type debugAdapter struct {
	*slog.Logger
}

func (log *debugAdapter) Printf(msg string, args ...any) {
	log.Logger.Debug(strings.TrimSuffix(fmt.Sprintf(msg, args...), "\n"))
}

// newLogger builds the shell logger: coloured console output for people,
// JSON for log collectors. Frame tracing needs debug level.
func newLogger(w io.Writer, jsonOutput, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	} else {
		handler = console.NewHandler(w, &console.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}
