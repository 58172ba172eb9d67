// Package ledger remembers which rows were already delivered, so a run that
// follows a failed status writeback does not mail the same recipient twice.
//
// A token is keyed by spreadsheet, row and address. Editing the address of
// a row therefore makes it deliverable again.
package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/kv"
	"github.com/pure-golang/sheetmail/sheet"
)

const keyPrefix = "sheetmail:delivered:"

type Config struct {
	TTL time.Duration `envconfig:"LEDGER_TTL" default:"720h"`
}

// Ledger stores delivery tokens in a kv.Store.
type Ledger struct {
	store       kv.Store
	spreadsheet string
	runID       string
	ttl         time.Duration
}

func New(store kv.Store, spreadsheet, runID string, cfg Config) *Ledger {
	return &Ledger{
		store:       store,
		spreadsheet: spreadsheet,
		runID:       runID,
		ttl:         cfg.TTL,
	}
}

// Key returns the token key for row.
func (l *Ledger) Key(row sheet.Row) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteString(l.spreadsheet)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(row.Index))
	b.WriteByte(':')
	b.WriteString(strings.ToLower(strings.TrimSpace(row.Email)))
	return b.String()
}

// Delivered reports whether a token for row exists.
func (l *Ledger) Delivered(ctx context.Context, row sheet.Row) (bool, error) {
	n, err := l.store.Exists(ctx, l.Key(row))
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up delivery of row %d", row.Index)
	}
	return n > 0, nil
}

// Record stores a token for row holding the current run id.
func (l *Ledger) Record(ctx context.Context, row sheet.Row) error {
	if err := l.store.Set(ctx, l.Key(row), l.runID, l.ttl); err != nil {
		return errors.Wrapf(err, "failed to record delivery of row %d", row.Index)
	}
	return nil
}

// Forget removes the token for row.
func (l *Ledger) Forget(ctx context.Context, row sheet.Row) error {
	if err := l.store.Delete(ctx, l.Key(row)); err != nil {
		return errors.Wrapf(err, "failed to forget delivery of row %d", row.Index)
	}
	return nil
}
