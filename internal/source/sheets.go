package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig locates a Google Sheets range.
type SheetsConfig struct {
	SpreadsheetID   string
	Range           string // A1 notation, e.g. "Página1!A:D"
	CredentialsFile string // service account JSON

	// Options are appended to the client options; tests use them to point
	// the client at a local server.
	Options []option.ClientOption
}

// Sheets reads a range through the Sheets v4 API.
type Sheets struct {
	cfg SheetsConfig
	srv *sheets.Service
}

// NewSheets creates the API client. No request is made.
func NewSheets(ctx context.Context, cfg SheetsConfig) (*Sheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets: spreadsheet id is required")
	}
	if cfg.Range == "" {
		cfg.Range = "A:D"
	}
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, cfg.Options...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, &FetchError{Class: ClassAuth, Source: "sheets", Err: err}
	}
	return &Sheets{cfg: cfg, srv: srv}, nil
}

// Describe implements Source.
func (s *Sheets) Describe() string {
	return fmt.Sprintf("sheets:%s!%s", s.cfg.SpreadsheetID, s.cfg.Range)
}

// Fetch implements Source. Cells are rendered with fmt's default format,
// which is how formatted values arrive from the API.
func (s *Sheets) Fetch(ctx context.Context) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, s.cfg.Range).Context(ctx).Do()
	if err != nil {
		return nil, &FetchError{Class: classifyGoogle(err), Source: s.Describe(), Err: err}
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows, nil
}

func classifyGoogle(err error) Class {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return ClassAuth
		case gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest:
			return ClassNotFound
		case gerr.Code == http.StatusTooManyRequests:
			return ClassRateLimit
		}
	}
	return ClassTransport
}
