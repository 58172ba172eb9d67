// Package sheet describes the recipient table the mail-merge job works on.
//
// The table is positional: A=Name, B=Email, C=Status, D=Timestamp. Row 1 is
// the header and data starts at FirstDataRow.
package sheet

import (
	"context"
	"io"
	"strings"
)

// FirstDataRow is the 1-based index of the first row after the header.
const FirstDataRow = 2

// Zero-based column positions.
const (
	ColumnName = iota
	ColumnEmail
	ColumnStatus
	ColumnTimestamp

	ColumnCount
)

// Header titles required in row 1, compared case-insensitively.
var Header = []string{"Name", "Email", "Status"}

// Status is the value stored in the Status column.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSent    Status = "Sent"
)

// Row is one recipient as read from the table.
type Row struct {
	Index  int    // 1-based row number in the table
	Name   string // trimmed
	Email  string // trimmed
	Status string // raw cell value
	SentAt string // raw cell value, informational
}

// Pending reports whether the row still waits for delivery.
func (r Row) Pending() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), string(StatusPending))
}

// Source reads the recipient snapshot and records per-row outcomes.
type Source interface {
	// Fetch returns every data row in storage order.
	Fetch(ctx context.Context) ([]Row, error)
	// Writeback sets the Status and Timestamp cells of the row at index.
	Writeback(ctx context.Context, index int, status Status, sentAt string) error
	io.Closer
}
