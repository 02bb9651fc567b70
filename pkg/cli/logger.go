package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the logger used by one-shot subcommands. It
// writes text to an interactive stderr and JSON when stderr is piped.
func NewCommandLogger(level slog.Level) *slog.Logger {
	return newCommandLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level)
}

func newCommandLogger(w io.Writer, interactive bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if interactive {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
