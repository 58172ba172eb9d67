// Command sheetmail sends the templated message to every pending row of the
// recipient sheet and marks each delivered row Sent.
//
//	sheetmail [--dry-run] [--env-file path]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/compose"
	"github.com/pure-golang/sheetmail/dispatch"
	"github.com/pure-golang/sheetmail/kv"
	"github.com/pure-golang/sheetmail/ledger"
	"github.com/pure-golang/sheetmail/logger"
	"github.com/pure-golang/sheetmail/mail"
	"github.com/pure-golang/sheetmail/mail/noop"
	"github.com/pure-golang/sheetmail/mail/smtp"
	"github.com/pure-golang/sheetmail/metrics"
	"github.com/pure-golang/sheetmail/sheet/gsheets"
	"github.com/pure-golang/sheetmail/storage"
	"github.com/pure-golang/sheetmail/storage/minio"
	"github.com/pure-golang/sheetmail/tracing"
	"github.com/pure-golang/sheetmail/tracing/otlp"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(stderr, "invalid configuration:", err)
		return exitFailure
	}

	log := logger.InitDefault(cfg.Log)

	a, err := setup(ctx, cfg, log)
	if a != nil {
		defer a.Close()
	}
	if err != nil {
		logger.WithErr(err).Error("setup failed")
		return exitFailure
	}

	report, err := a.dispatcher.Run(ctx)
	a.recorder.Finish(err)
	if pushErr := a.recorder.Push(context.WithoutCancel(ctx), cfg.Metrics, a.runID); pushErr != nil {
		log.Warn("failed to push metrics", "error", pushErr.Error())
	}

	if err != nil {
		logger.WithErr(err).Error("run failed", "run_id", a.runID, "processed", len(report.Outcomes))
		return exitFailure
	}
	return exitOK
}

// app holds everything a run needs. Close releases it in reverse order.
type app struct {
	runID      string
	dispatcher *dispatch.Dispatcher
	recorder   *metrics.Recorder
	closers    []io.Closer
	log        *slog.Logger
}

func (a *app) add(c io.Closer) {
	a.closers = append(a.closers, c)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("failed to close", "error", err.Error())
		}
	}
	a.closers = nil
}

// setup returns a non-nil app even on error so the caller can release what
// was opened.
func setup(ctx context.Context, cfg *Config, log *slog.Logger) (*app, error) {
	a := &app{
		runID:    uuid.NewString(),
		recorder: metrics.NewRecorder(),
		log:      log,
	}

	if cfg.Tracing.Enabled() {
		provider, err := tracing.Init(otlp.NewProviderBuilder(cfg.Tracing))
		if err != nil {
			log.Warn("tracing disabled", "error", err.Error())
		}
		a.add(provider)
	}

	if cfg.Metrics.Enabled() {
		provider, err := metrics.InitPrometheus(a.recorder.Registry())
		if err != nil {
			log.Warn("otel metrics disabled", "error", err.Error())
		} else {
			a.add(provider)
		}
	}

	src, err := gsheets.New(ctx, cfg.Sheet, &gsheets.Options{Logger: log})
	if err != nil {
		return a, errors.Wrap(err, "failed to open recipient sheet")
	}
	a.add(src)

	files := compose.Files{}
	if _, _, ok := storage.ParseURI(cfg.Compose.AttachmentPath); ok {
		objects, err := minio.New(ctx, cfg.S3, &minio.StorageOptions{Logger: log})
		if err != nil {
			return a, err
		}
		a.add(objects)
		files.Objects = objects
	}
	composer := compose.New(cfg.Compose, compose.DefaultTemplate, files)

	sender, err := newSender(ctx, cfg, log)
	if err != nil {
		return a, err
	}
	a.add(sender)

	opts := []dispatch.Option{
		dispatch.WithRunID(a.runID),
		dispatch.WithLogger(log),
		dispatch.WithReporter(dispatch.Reporters{dispatch.LogReporter{}, a.recorder}),
	}

	if cfg.KV.Provider == kv.ProviderRedis && !cfg.DryRun {
		store, err := kv.New(ctx, cfg.KV, log)
		if err != nil {
			return a, err
		}
		a.add(store)
		opts = append(opts, dispatch.WithLedger(ledger.New(store, src.SpreadsheetID(), a.runID, cfg.Ledger)))
	}

	a.dispatcher = dispatch.New(dispatch.Config{
		DryRun:   cfg.DryRun,
		Location: cfg.Location,
	}, src, composer, sender, opts...)

	log.Info("ready",
		"run_id", a.runID,
		"spreadsheet", src.SpreadsheetID(),
		"tab", src.Tab(),
		"dry_run", cfg.DryRun,
		"ledger", cfg.KV.Provider == kv.ProviderRedis && !cfg.DryRun,
	)
	return a, nil
}

func newSender(ctx context.Context, cfg *Config, log *slog.Logger) (mail.Sender, error) {
	if cfg.DryRun {
		return noop.NewSender(), nil
	}

	s := smtp.NewSender(cfg.SMTP, &smtp.SenderOptions{Logger: log})
	if cfg.SMTP.Verify {
		if err := s.Verify(ctx); err != nil {
			return nil, errors.Wrap(err, "SMTP check failed")
		}
	}
	return s, nil
}
