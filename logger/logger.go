package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/pure-golang/sheetmail/logger/devslog"
	"github.com/pure-golang/sheetmail/logger/noop"
	"github.com/pure-golang/sheetmail/logger/stdjson"
	"github.com/pure-golang/sheetmail/logger/stdtext"
)

type Level string
type Provider string
type Output string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/sheetmail/logger")

const (
	INFO  Level = "info"
	ERROR Level = "error"
	WARN  Level = "warn"
	DEBUG Level = "debug"

	ProviderDevSlog Provider = "dev"      // colored, for local runs
	ProviderStdJson Provider = "std_json" // for scheduled runs shipped to a collector
	ProviderStdText Provider = "text"     // key=value, for operators at a terminal
	ProviderNoop    Provider = "noop"     // for unit tests

	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
)

type Config struct {
	Provider Provider `envconfig:"LOG_PROVIDER" default:"std_json"`
	Level    Level    `envconfig:"LOG_LEVEL" default:"info"`
	// Empty keeps the provider's own choice: stderr for text, stdout otherwise.
	Output Output `envconfig:"LOG_OUTPUT"`
}

func (c Config) writer() io.Writer {
	switch Output(strings.ToLower(string(c.Output))) {
	case OutputStdout:
		return os.Stdout
	case OutputStderr:
		return os.Stderr
	}
	if c.Provider == ProviderStdText {
		return os.Stderr
	}
	return os.Stdout
}

// NewDefault builds the logger described by c.
func NewDefault(c Config) *slog.Logger {
	return New(c, c.writer())
}

// New is NewDefault writing to w instead of the configured output.
func New(c Config, w io.Writer) *slog.Logger {
	level := convertLevel(c.Level)
	switch c.Provider {
	case ProviderDevSlog:
		return devslog.New(w, level)
	case ProviderStdText:
		return stdtext.New(w, level)
	case ProviderNoop:
		return noop.NewNoop()
	default:
		return stdjson.New(w, level)
	}
}

// InitDefault installs the logger as slog's default and routes OTel
// exporter errors into it.
func InitDefault(c Config) *slog.Logger {
	l := NewDefault(c)
	slog.SetDefault(l)
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Warn("telemetry error", "error", err.Error())
	}))
	return l
}

// FromContext extracts the logger from ctx or returns the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}

// NewContext packs the logger into ctx.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// With returns a context whose logger carries the given attributes in
// addition to whatever the parent context logger already had.
func With(ctx context.Context, args ...any) context.Context {
	return NewContext(ctx, FromContext(ctx).With(args...))
}

// WithErr return default logger with error.
func WithErr(err error) *slog.Logger {
	return appendErr(slog.Default(), err)
}

// FromContextWithErr extract logger from context and attach error field.
func FromContextWithErr(ctx context.Context, err error) *slog.Logger {
	l := FromContext(ctx)
	return appendErr(l, err)
}

// WithErrIf return default logger with error if err != nil.
// Otherwise no-op.
func WithErrIf(err error) *slog.Logger {
	if err == nil {
		return noop.NewNoop()
	}

	return WithErr(err)
}

// FromContextWithErrIf extract logger from context (default if not exists).
// Append error and stack trace.
// Returns no-op if err == nil.
func FromContextWithErrIf(ctx context.Context, err error) *slog.Logger {
	if err == nil {
		return noop.NewNoop()
	}

	return FromContextWithErr(ctx, err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}

func convertLevel(level Level) slog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(string(level)))) {
	case ERROR:
		return slog.LevelError
	case WARN, "warning":
		return slog.LevelWarn
	case DEBUG:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
