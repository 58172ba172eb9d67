package stdtext

import (
	"io"
	"log/slog"
	"os"
)

// NewDefault writes key=value lines to stderr so stdout stays free for piping.
func NewDefault(level slog.Level) *slog.Logger {
	return New(os.Stderr, level)
}

func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
