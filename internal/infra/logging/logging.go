package logging

import (
	"io"
	"log/slog"
	"os"
)

// SetupJSON sets slog's default logger to JSON on stdout at the given level.
// Every record carries the service name.
func SetupJSON(service string, level slog.Level) {
	slog.SetDefault(NewJSON(os.Stdout, service, level))
}

func NewJSON(w io.Writer, service string, level slog.Level) *slog.Logger {
	return slog.New(
		slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}),
	).With("service", service)
}
