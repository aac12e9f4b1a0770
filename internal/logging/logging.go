// Package logging builds the structured logger shared by the CLI and its
// collaborators.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. Debug records are only emitted
// when verbose is set.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Error returns an "error" attribute, or an empty attribute for nil errors so
// callers can log without nil checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component tags records with the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
