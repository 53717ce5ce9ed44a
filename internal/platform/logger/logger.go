package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output for deployed environments,
// text for local development.
func New(json bool) *slog.Logger {
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
