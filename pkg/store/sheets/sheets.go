// Package sheets implements a TableStore backed by a tab of a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Default retry settings for rate-limited calls.
const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 60 * time.Second
)

// Store reads and appends rows of one sheet tab. Row 1 holds the header.
type Store struct {
	client        *sheets.Service
	spreadsheetID string
	sheetName     string
	columns       []string
	attempts      uint
	retryDelay    time.Duration
	logger        *slog.Logger
}

// Config holds configuration for the Sheets store.
type Config struct {
	// SpreadsheetID is the ID of an existing spreadsheet.
	SpreadsheetID string
	// SheetName is the tab holding the table. It is created with a header row if missing.
	SheetName string
	// Columns is the header row; its length fixes the table width.
	Columns []string
	// Attempts is the number of tries for rate-limited calls. Defaults to DefaultAttempts.
	Attempts uint
	// RetryDelay is the wait between tries. Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
}

// New creates a Sheets store and makes sure its tab exists.
func New(ctx context.Context, httpClient *http.Client, cfg Config, logger *slog.Logger) (*Store, error) {
	client, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return NewWithService(ctx, client, cfg, logger)
}

// NewWithService creates a Sheets store from an existing service.
func NewWithService(ctx context.Context, client *sheets.Service, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet ID is required")
	}
	if cfg.SheetName == "" {
		return nil, errors.New("sheet name is required")
	}
	if len(cfg.Columns) == 0 {
		return nil, errors.New("columns are required")
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	s := &Store{
		client:        client,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		columns:       cfg.Columns,
		attempts:      cfg.Attempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logger,
	}

	if err := s.ensureSheet(ctx); err != nil {
		return nil, fmt.Errorf("initializing sheet %q: %w", cfg.SheetName, err)
	}

	logger.Info("sheets store initialized",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName,
		"columns", len(cfg.Columns),
	)
	return s, nil
}

func (s *Store) ensureSheet(ctx context.Context) error {
	spreadsheet, err := s.client.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting spreadsheet: %w", err)
	}

	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.sheetName {
			s.logger.Debug("using existing sheet", "title", spreadsheet.Properties.Title, "sheet", s.sheetName)
			return nil
		}
	}

	_, err = s.client.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: s.sheetName},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}
	s.logger.Info("created sheet", "sheet", s.sheetName)

	return s.writeHeaders(ctx)
}

func (s *Store) writeHeaders(ctx context.Context) error {
	header := make([]any, 0, len(s.columns))
	for _, c := range s.columns {
		header = append(header, c)
	}

	_, err := s.client.Spreadsheets.Values.Update(s.spreadsheetID, s.a1Range(1, 1), &sheets.ValueRange{
		Values: [][]any{header},
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating headers: %w", err)
	}

	s.logger.Info("wrote headers to sheet", "sheet", s.sheetName)
	return nil
}

// ReadRows returns every row below the header as formatted text.
func (s *Store) ReadRows(ctx context.Context) ([][]string, error) {
	var resp *sheets.ValueRange
	err := s.withRetry(ctx, func() error {
		var err error
		resp, err = s.client.Spreadsheets.Values.Get(s.spreadsheetID, s.a1Range(2, 0)).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", s.sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(s.columns))
		for i := 0; i < len(raw) && i < len(row); i++ {
			row[i] = fmt.Sprint(raw[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRows appends rows after the last row of the table in a single call.
// Values are written RAW so dates and amounts keep their source text.
func (s *Store) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := make([]any, 0, len(r))
		for _, v := range r {
			row = append(row, v)
		}
		values = append(values, row)
	}
	req := &sheets.ValueRange{Values: values}

	err := s.withRetry(ctx, func() error {
		_, err := s.client.Spreadsheets.Values.Append(s.spreadsheetID, s.a1Range(1, 1), req).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending to sheet %q: %w", s.sheetName, err)
	}

	s.logger.Info("appended rows", "sheet", s.sheetName, "count", len(rows))
	return nil
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "sheet", s.sheetName, "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// a1Range addresses the table columns from startRow. endRow 0 means open-ended.
func (s *Store) a1Range(startRow, endRow int) string {
	last := columnName(len(s.columns))
	if endRow == 0 {
		return fmt.Sprintf("'%s'!A%d:%s", s.sheetName, startRow, last)
	}
	return fmt.Sprintf("'%s'!A%d:%s%d", s.sheetName, startRow, last, endRow)
}

// columnName converts a 1-based column index to its A1 letters.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

var _ api.TableStore = (*Store)(nil)
