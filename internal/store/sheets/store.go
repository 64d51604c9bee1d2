// Package sheets implements the record store on top of a Google Sheets
// worksheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/plantops/downtime-keeper/internal/store"
)

// Config holds sheets store configuration.
type Config struct {
	SpreadsheetID   string
	Worksheet       string
	CredentialsFile string
	// RequestsPerMinute caps outgoing API calls client-side; the Sheets
	// API rejects bursts with 429 well below its documented quota.
	RequestsPerMinute float64
}

// Store is a Google Sheets backed record store.
type Store struct {
	svc     *sheetsapi.Service
	cfg     Config
	limiter *rate.Limiter
}

// New creates a sheets store using service account credentials.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("sheets store: spreadsheet id is required")
	}
	if cfg.Worksheet == "" {
		return nil, errors.New("sheets store: worksheet name is required")
	}

	svc, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 50
	}

	slog.Info("sheets store configured",
		"spreadsheet_id", cfg.SpreadsheetID,
		"worksheet", cfg.Worksheet,
		"requests_per_minute", rpm,
	)

	return &Store{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rpm/60), 1),
	}, nil
}

// AppendRecord appends one row to the end of the worksheet.
func (s *Store) AppendRecord(ctx context.Context, row []string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}

	_, err := s.svc.Spreadsheets.Values.
		Append(s.cfg.SpreadsheetID, s.cfg.Worksheet, &sheetsapi.ValueRange{
			Values: [][]interface{}{values},
		}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("append record", err)
	}
	return nil
}

// FetchAllRows returns the header row and all data rows of the worksheet.
func (s *Store) FetchAllRows(ctx context.Context) ([]string, [][]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := s.svc.Spreadsheets.Values.
		Get(s.cfg.SpreadsheetID, s.cfg.Worksheet).
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, classify("fetch rows", err)
	}

	if len(resp.Values) == 0 {
		return nil, nil, nil
	}

	headers := toStrings(resp.Values[0])
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		rows = append(rows, toStrings(raw))
	}
	return headers, rows, nil
}

// NextSequenceNumber reads column A and returns max+1. Sequence numbers
// are advisory, so any failure degrades to 1 with a log line instead of
// propagating.
func (s *Store) NextSequenceNumber(ctx context.Context) int {
	if err := s.limiter.Wait(ctx); err != nil {
		slog.Error("sequence number lookup aborted", "error", err)
		return 1
	}

	resp, err := s.svc.Spreadsheets.Values.
		Get(s.cfg.SpreadsheetID, s.cfg.Worksheet+"!A:A").
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("failed to read sequence column", "error", err)
		return 1
	}

	if len(resp.Values) == 0 {
		return 1
	}
	return store.NextSequenceFromColumn(toStrings(resp.Values[0]))
}

func toStrings(raw []interface{}) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// classify maps API failures onto the store error taxonomy so the cache
// can tell quota rejections from everything else.
func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w: %v", op, store.ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
}
