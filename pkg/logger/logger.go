package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options controls how the application logger is built.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values
	// fall back to "info".
	Level string

	// Environment selects the handler format: "prod" logs JSON,
	// anything else logs text.
	Environment string

	// AddSource annotates records with file:line of the call site.
	AddSource bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// New builds a *slog.Logger tagged with the service name and environment.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     parseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(opts.Environment) == "prod" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler).With(
		slog.String("service", "wikigate"),
		slog.String("environment", opts.Environment),
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
