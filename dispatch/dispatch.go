// Package dispatch runs one pass of the mail merge: it fetches the recipient
// snapshot, sends a message to every pending row and marks delivered rows Sent.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/sheetmail/logger"
	"github.com/pure-golang/sheetmail/mail"
	"github.com/pure-golang/sheetmail/sheet"
)

// TimestampLayout is the format written to the Timestamp column.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultTimezone is used when Config.Location is nil.
const DefaultTimezone = "Asia/Taipei"

var tracer = otel.Tracer("github.com/pure-golang/sheetmail/dispatch")

type Config struct {
	DryRun   bool
	Location *time.Location
}

// Composer builds the message for one recipient.
type Composer interface {
	Build(ctx context.Context, name, to string) (mail.Email, error)
}

// Ledger remembers rows whose message went out but whose writeback has not
// landed yet, so a rerun does not send twice.
type Ledger interface {
	Delivered(ctx context.Context, row sheet.Row) (bool, error)
	Record(ctx context.Context, row sheet.Row) error
	Forget(ctx context.Context, row sheet.Row) error
}

type Option func(*Dispatcher)

func WithLedger(l Ledger) Option {
	return func(d *Dispatcher) { d.ledger = l }
}

// WithReporter replaces the default LogReporter.
func WithReporter(r Reporter) Option {
	return func(d *Dispatcher) { d.reporter = r }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithRunID(id string) Option {
	return func(d *Dispatcher) { d.runID = id }
}

type Dispatcher struct {
	cfg      Config
	src      sheet.Source
	composer Composer
	sender   mail.Sender
	ledger   Ledger
	reporter Reporter
	now      func() time.Time
	logger   *slog.Logger
	runID    string
}

func New(cfg Config, src sheet.Source, composer Composer, sender mail.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		src:      src,
		composer: composer,
		sender:   sender,
		reporter: LogReporter{},
		now:      time.Now,
		logger:   slog.Default(),
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		d.cfg.Location = loc
	}
	return d
}

func (d *Dispatcher) RunID() string {
	return d.runID
}

// Run processes one snapshot. Only a failed fetch or a canceled context is
// returned as an error; per-row failures are recorded in the Report and the
// run moves on to the next row.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Run", trace.WithAttributes(
		attribute.String("sheetmail.run_id", d.runID),
		attribute.Bool("sheetmail.dry_run", d.cfg.DryRun),
	))
	defer span.End()

	ctx = logger.NewContext(ctx, d.logger)
	ctx = logger.With(ctx, "run_id", d.runID)

	report := &Report{RunID: d.runID}

	rows, err := d.src.Fetch(ctx)
	if err != nil {
		err = &Error{Kind: KindConnection, Err: errors.Wrap(err, "failed to fetch recipients")}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return report, err
	}
	span.SetAttributes(attribute.Int("sheetmail.rows", len(rows)))

	logger.FromContext(ctx).Info("recipients fetched", "rows", len(rows), "dry_run", d.cfg.DryRun)

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return report, errors.Wrapf(err, "run stopped before row %d", row.Index)
		}

		o := d.process(ctx, row)
		report.Outcomes = append(report.Outcomes, o)
		if d.reporter != nil {
			d.reporter.Report(ctx, o)
		}
	}

	logger.FromContext(ctx).Info("run finished",
		"rows", len(report.Outcomes),
		"sent", report.Count(StateSent),
		"skipped", report.Count(StateSkipped),
		"dry_run", report.Count(StateDryRun),
		"unresolved", report.Count(StateUnresolved),
	)
	return report, nil
}

func (d *Dispatcher) process(ctx context.Context, row sheet.Row) (o Outcome) {
	o = Outcome{Row: row, State: StatePending}
	if !row.Pending() {
		o.State = StateSkipped
		return o
	}

	// Once a pending row is picked up it runs to its writeback; cancellation
	// only stops the loop before the next row.
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "Dispatch.Row", trace.WithAttributes(
		attribute.Int("sheetmail.row", row.Index),
	))
	defer func() {
		span.SetAttributes(attribute.String("sheetmail.state", string(o.State)))
		if o.Err != nil {
			span.RecordError(o.Err)
			span.SetStatus(codes.Error, string(KindOf(o.Err)))
		}
		span.End()
	}()

	unresolved := func(kind Kind, err error) Outcome {
		o.State = StateUnresolved
		o.Err = &Error{Kind: kind, Row: row.Index, Email: row.Email, Err: err}
		return o
	}

	email, err := d.composer.Build(ctx, row.Name, row.Email)
	if err != nil {
		return unresolved(KindSend, errors.Wrap(err, "failed to compose message"))
	}

	if d.cfg.DryRun {
		o.State = StateDryRun
		return o
	}

	delivered := false
	if d.ledger != nil {
		delivered, err = d.ledger.Delivered(ctx, row)
		if err != nil {
			return unresolved(KindSend, errors.Wrap(err, "failed to check delivery ledger"))
		}
	}

	if delivered {
		o.Recovered = true
	} else {
		start := time.Now()
		err = d.sender.Send(ctx, email)
		o.SendDuration = time.Since(start)
		if err != nil {
			return unresolved(KindSend, err)
		}
		if d.ledger != nil {
			if err := d.ledger.Record(ctx, row); err != nil {
				logger.FromContext(ctx).Warn("failed to record delivery", "row", row.Index, "error", err.Error())
			}
		}
	}

	sentAt := d.now().In(d.cfg.Location).Format(TimestampLayout)
	if err := d.src.Writeback(ctx, row.Index, sheet.StatusSent, sentAt); err != nil {
		return unresolved(KindWrite, err)
	}

	if d.ledger != nil {
		if err := d.ledger.Forget(ctx, row); err != nil {
			logger.FromContext(ctx).Warn("failed to clear delivery record", "row", row.Index, "error", err.Error())
		}
	}

	o.State = StateSent
	return o
}
