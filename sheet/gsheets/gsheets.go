// Package gsheets reads and updates the recipient table in a Google
// Spreadsheet through the Sheets v4 API with a service account.
package gsheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pure-golang/sheetmail/sheet"
)

var _ sheet.Source = (*Sheets)(nil)

const valueInputOption = "USER_ENTERED"

// Sheets is a sheet.Source backed by one worksheet of a spreadsheet.
type Sheets struct {
	mx            sync.Mutex
	svc           *sheets.Service
	spreadsheetID string
	tab           string
	logger        *slog.Logger
	closed        bool
}

// Options contains options for creating Sheets.
type Options struct {
	Logger *slog.Logger
	// ClientOptions replace the service account credentials from Config.
	ClientOptions []option.ClientOption
}

// New connects to the spreadsheet and resolves the worksheet title, so bad
// credentials or a wrong URL fail here rather than on the first row.
func New(ctx context.Context, cfg Config, options *Options) (*Sheets, error) {
	if options == nil {
		options = &Options{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	id, err := cfg.SpreadsheetID()
	if err != nil {
		return nil, err
	}

	clientOptions := options.ClientOptions
	if len(clientOptions) == 0 {
		client, err := credentialsClient(ctx, cfg.Credentials)
		if err != nil {
			return nil, err
		}
		clientOptions = []option.ClientOption{option.WithHTTPClient(client)}
	}

	svc, err := sheets.NewService(ctx, clientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sheets service")
	}

	tab, err := resolveTab(ctx, svc, id, cfg.Tab)
	if err != nil {
		return nil, err
	}

	s := &Sheets{
		svc:           svc,
		spreadsheetID: id,
		tab:           tab,
		logger:        options.Logger.WithGroup("gsheets"),
	}
	s.logger.Debug("spreadsheet opened", "spreadsheet", id, "tab", tab)

	return s, nil
}

func credentialsClient(ctx context.Context, path string) (*http.Client, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read credentials %s", path)
	}

	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope, sheets.DriveReadonlyScope)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse service account key")
	}

	// The client refreshes tokens for the whole run, not just for New.
	return conf.Client(context.WithoutCancel(ctx)), nil
}

func resolveTab(ctx context.Context, svc *sheets.Service, id, want string) (string, error) {
	ss, err := svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open spreadsheet %s", id)
	}
	if len(ss.Sheets) == 0 {
		return "", errors.Errorf("spreadsheet %s has no worksheets", id)
	}

	if want == "" {
		if p := ss.Sheets[0].Properties; p != nil {
			return p.Title, nil
		}
		return "", errors.Errorf("spreadsheet %s: first worksheet has no title", id)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == want {
			return want, nil
		}
	}
	return "", errors.Errorf("worksheet %q not found in spreadsheet %s", want, id)
}

// SpreadsheetID returns the id of the opened spreadsheet.
func (s *Sheets) SpreadsheetID() string {
	return s.spreadsheetID
}

// Tab returns the worksheet title in use.
func (s *Sheets) Tab() string {
	return s.tab
}

// Fetch reads columns A:D of the worksheet, checks the header and returns
// the data rows.
func (s *Sheets) Fetch(ctx context.Context) ([]sheet.Row, error) {
	ctx, span := tracer.Start(ctx, "Sheets.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	readRange := s.a1("A1:D")
	span.SetAttributes(
		attribute.String("sheets.spreadsheet_id", s.spreadsheetID),
		attribute.String("sheets.range", readRange),
	)

	if s.isClosed() {
		span.SetStatus(codes.Error, "source is closed")
		return nil, errors.New("source is closed")
	}

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		recordError(span, err, "failed to read values")
		return nil, errors.Wrapf(err, "failed to read %s", readRange)
	}

	values := toStrings(resp.Values)
	var header []string
	if len(values) > 0 {
		header = values[0]
	}
	if err := sheet.CheckHeader(header); err != nil {
		recordError(span, err, "bad header")
		return nil, err
	}

	var data [][]string
	if len(values) > 1 {
		data = values[1:]
	}
	rows := sheet.ParseRows(data)

	span.SetAttributes(attribute.Int("sheets.rows", len(rows)))
	span.SetStatus(codes.Ok, "")
	s.logger.Debug("rows fetched", "count", len(rows))

	return rows, nil
}

// Writeback sets columns C:D of the row with a single update.
func (s *Sheets) Writeback(ctx context.Context, index int, status sheet.Status, sentAt string) error {
	ctx, span := tracer.Start(ctx, "Sheets.Writeback", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if index < sheet.FirstDataRow {
		err := errors.Errorf("row %d is not a data row", index)
		recordError(span, err, "invalid row index")
		return err
	}

	writeRange := s.a1(fmt.Sprintf("C%d:D%d", index, index))
	span.SetAttributes(
		attribute.String("sheets.spreadsheet_id", s.spreadsheetID),
		attribute.String("sheets.range", writeRange),
		attribute.Int("sheets.row", index),
	)

	if s.isClosed() {
		span.SetStatus(codes.Error, "source is closed")
		return errors.New("source is closed")
	}

	vr := &sheets.ValueRange{
		Range:  writeRange,
		Values: [][]interface{}{{string(status), sentAt}},
	}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, writeRange, vr).
		ValueInputOption(valueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		recordError(span, err, "failed to update values")
		return errors.Wrapf(err, "failed to update %s", writeRange)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// a1 qualifies a cell range with the quoted worksheet title.
func (s *Sheets) a1(cells string) string {
	return "'" + strings.ReplaceAll(s.tab, "'", "''") + "'!" + cells
}

func (s *Sheets) isClosed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.closed
}

func (s *Sheets) Close() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.closed = true
	return nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}
	return out
}
