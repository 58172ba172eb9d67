package main

import (
	"flag"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/compose"
	"github.com/pure-golang/sheetmail/env"
	"github.com/pure-golang/sheetmail/kv"
	"github.com/pure-golang/sheetmail/ledger"
	"github.com/pure-golang/sheetmail/logger"
	"github.com/pure-golang/sheetmail/mail/smtp"
	"github.com/pure-golang/sheetmail/metrics"
	"github.com/pure-golang/sheetmail/sheet/gsheets"
	"github.com/pure-golang/sheetmail/storage"
	"github.com/pure-golang/sheetmail/storage/minio"
	"github.com/pure-golang/sheetmail/tracing/otlp"
)

type flags struct {
	dryRun  bool
	envFile string
}

func parseFlags(args []string, output io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("sheetmail", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.BoolVar(&f.dryRun, "dry-run", false, "fetch and compose, but send nothing and leave the sheet untouched")
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file to load instead of ./"+env.DefaultEnvFile)
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	if fs.NArg() > 0 {
		return flags{}, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	return f, nil
}

// Config is the whole run configuration. Each part is read from the
// environment on its own so the variable names stay unprefixed.
type Config struct {
	DryRun   bool   `envconfig:"DRY_RUN" default:"false"`
	Timezone string `envconfig:"TIMEZONE" default:"Asia/Taipei"`

	Log     logger.Config  `ignored:"true"`
	Sheet   gsheets.Config `ignored:"true"`
	Compose compose.Config `ignored:"true"`
	SMTP    smtp.Config    `ignored:"true"`
	KV      kv.Config      `ignored:"true"`
	Ledger  ledger.Config  `ignored:"true"`
	S3      minio.Config   `ignored:"true"` // read only for s3:// attachments
	Tracing otlp.Config    `ignored:"true"`
	Metrics metrics.Config `ignored:"true"`

	Location *time.Location `ignored:"true"`
}

func loadConfig(f flags) (*Config, error) {
	var cfg Config
	if f.envFile != "" {
		if err := env.LoadFile(f.envFile); err != nil {
			return nil, err
		}
		if err := env.Process(&cfg); err != nil {
			return nil, err
		}
	} else if err := env.InitConfig(&cfg); err != nil {
		return nil, err
	}

	parts := []any{&cfg.Log, &cfg.Sheet, &cfg.Compose, &cfg.SMTP, &cfg.KV, &cfg.Ledger, &cfg.Tracing, &cfg.Metrics}
	for _, p := range parts {
		if err := env.Process(p); err != nil {
			return nil, err
		}
	}

	if f.dryRun {
		cfg.DryRun = true
	}

	if _, _, ok := storage.ParseURI(cfg.Compose.AttachmentPath); ok {
		if err := env.Process(&cfg.S3); err != nil {
			return nil, errors.Wrap(err, "attachment is in object storage")
		}
	}

	if !cfg.DryRun && cfg.SMTP.Password == "" {
		return nil, errors.New("APP_PASSWORD is required unless running with --dry-run")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid TIMEZONE %q", cfg.Timezone)
	}
	cfg.Location = loc

	return &cfg, nil
}
