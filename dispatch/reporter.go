package dispatch

import (
	"context"
	"log/slog"

	"github.com/pure-golang/sheetmail/logger"
)

// Reporter receives each outcome as soon as the row is done.
type Reporter interface {
	Report(ctx context.Context, o Outcome)
}

type ReporterFunc func(ctx context.Context, o Outcome)

func (f ReporterFunc) Report(ctx context.Context, o Outcome) { f(ctx, o) }

// Reporters fans an outcome out to every reporter in order.
type Reporters []Reporter

func (rs Reporters) Report(ctx context.Context, o Outcome) {
	for _, r := range rs {
		if r != nil {
			r.Report(ctx, o)
		}
	}
}

// LogReporter writes one log line per outcome using the logger in ctx.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, o Outcome) {
	l := logger.FromContext(ctx).With(
		"row", o.Row.Index,
		"email", o.Row.Email,
		"state", string(o.State),
	)

	switch o.State {
	case StateSent:
		l.Info("sent", "recovered", o.Recovered, "duration", o.SendDuration)
	case StateDryRun:
		l.Info("dry run, not sent")
	case StateUnresolved:
		attrs := []any{"kind", string(KindOf(o.Err))}
		if o.Err != nil {
			attrs = append(attrs, "error", o.Err.Error())
		}
		l.Error("row unresolved", attrs...)
	default:
		l.Log(ctx, slog.LevelDebug, "skipped", "status", o.Row.Status)
	}
}
