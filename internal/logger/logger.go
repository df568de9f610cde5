package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a text logger; debug swaps the level to Debug.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs a stdout logger as the slog default and returns it.
func Init(debug bool) *slog.Logger {
	l := New(os.Stdout, debug)
	slog.SetDefault(l)
	return l
}

// Component tags a logger with the component name, falling back to the
// slog default when l is nil.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
