package sheet

import (
	"fmt"
	"strings"
)

// SchemaError reports a header row that does not match the expected layout.
type SchemaError struct {
	Column int    // zero-based
	Want   string // expected title
	Got    string
}

func (e *SchemaError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("sheet: header column %c is empty, want %q", 'A'+rune(e.Column), e.Want)
	}
	return fmt.Sprintf("sheet: header column %c is %q, want %q", 'A'+rune(e.Column), e.Got, e.Want)
}

// CheckHeader validates the header row. Extra columns are allowed.
func CheckHeader(header []string) error {
	for i, want := range Header {
		var got string
		if i < len(header) {
			got = strings.TrimSpace(header[i])
		}
		if !strings.EqualFold(got, want) {
			return &SchemaError{Column: i, Want: want, Got: got}
		}
	}
	return nil
}

// ParseRows turns raw data rows (header excluded) into rows. Short rows are
// padded, empty rows keep their index. Cell contents are not validated here:
// a pending row with a bad address fails on its own when composed.
func ParseRows(values [][]string) []Row {
	rows := make([]Row, 0, len(values))
	for i, cells := range values {
		row := Row{
			Index:  i + FirstDataRow,
			Name:   strings.TrimSpace(cell(cells, ColumnName)),
			Email:  strings.TrimSpace(cell(cells, ColumnEmail)),
			Status: cell(cells, ColumnStatus),
			SentAt: cell(cells, ColumnTimestamp),
		}
		rows = append(rows, row)
	}
	return rows
}

func cell(cells []string, col int) string {
	if col < len(cells) {
		return cells[col]
	}
	return ""
}
