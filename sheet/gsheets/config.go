package gsheets

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

type Config struct {
	URL         string `envconfig:"SHEET_URL" required:"true"`                     // spreadsheet URL or bare id
	Credentials string `envconfig:"GOOGLE_CREDENTIALS" default:"credentials.json"` // service account key file
	Tab         string `envconfig:"SHEET_TAB"`                                     // empty selects the first worksheet
}

var idPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the spreadsheet id from URL.
func (c Config) SpreadsheetID() (string, error) {
	raw := strings.TrimSpace(c.URL)
	if raw == "" {
		return "", errors.New("empty spreadsheet URL")
	}
	if m := idPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if strings.ContainsAny(raw, "/?#: ") {
		return "", errors.Errorf("cannot find spreadsheet id in %q", raw)
	}
	return raw, nil
}
