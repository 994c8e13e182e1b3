package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger writes JSON lines to stdout. Dev gets debug output.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(env)}

	return slog.New(NewContextHandler(slog.NewJSONHandler(w, opts))).
		With("service", "inkwell-api", "env", env)
}

func levelFor(env string) slog.Level {
	switch env {
	case "dev", "test":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
