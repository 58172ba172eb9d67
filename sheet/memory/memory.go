// Package memory is an in-process sheet.Source. It backs tests and local
// rehearsals of a run without touching a real spreadsheet.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/pure-golang/sheetmail/sheet"
)

var _ sheet.Source = (*Source)(nil)

// Write is one recorded Writeback call.
type Write struct {
	Index  int
	Status sheet.Status
	SentAt string
}

// Source keeps the table in memory. Writebacks mutate the stored rows so a
// second Fetch observes them, like the real spreadsheet would.
type Source struct {
	mx      sync.Mutex
	rows    []sheet.Row
	writes  []Write
	fetches int
	closed  bool

	FetchErr error           // returned by every Fetch when set
	WriteErr func(int) error // consulted before each Writeback
}

// New creates a Source holding a copy of rows. Row indexes are taken as
// given; use FromValues to number them from the table layout.
func New(rows ...sheet.Row) *Source {
	return &Source{rows: append([]sheet.Row(nil), rows...)}
}

// FromValues builds a Source from raw data rows (header excluded), applying
// the same parsing as a real provider.
func FromValues(values [][]string) *Source {
	return New(sheet.ParseRows(values)...)
}

// Fetch returns a copy of the current rows.
func (s *Source) Fetch(_ context.Context) ([]sheet.Row, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return nil, errors.New("source is closed")
	}
	s.fetches++
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return append([]sheet.Row(nil), s.rows...), nil
}

// Writeback records the call and updates the stored row.
func (s *Source) Writeback(ctx context.Context, index int, status sheet.Status, sentAt string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "writeback")
	}

	s.mx.Lock()
	defer s.mx.Unlock()

	if s.closed {
		return errors.New("source is closed")
	}
	if index < sheet.FirstDataRow {
		return errors.Errorf("row %d is not a data row", index)
	}
	if s.WriteErr != nil {
		if err := s.WriteErr(index); err != nil {
			return err
		}
	}

	for i := range s.rows {
		if s.rows[i].Index == index {
			s.rows[i].Status = string(status)
			s.rows[i].SentAt = sentAt
			s.writes = append(s.writes, Write{Index: index, Status: status, SentAt: sentAt})
			return nil
		}
	}
	return errors.Errorf("row %d not found", index)
}

// Rows returns a copy of the stored rows.
func (s *Source) Rows() []sheet.Row {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]sheet.Row(nil), s.rows...)
}

// Writes returns every successful Writeback in call order.
func (s *Source) Writes() []Write {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]Write(nil), s.writes...)
}

// Fetches returns how many times Fetch was called.
func (s *Source) Fetches() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.fetches
}

func (s *Source) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.closed = true
	return nil
}
