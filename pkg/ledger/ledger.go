// Package ledger implements the append-only history of processed transactions.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// DefaultDateLayout is the date representation used by the transaction feed.
const DefaultDateLayout = "2006/01/02"

// spreadsheetEpoch is day zero of spreadsheet serial dates.
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// fallbackLayouts are tried when a stored date is not in the configured layout.
var fallbackLayouts = []string{
	"2006/1/2",
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006/01/02 15:04:05",
}

// Ledger reads and appends rows of the ledger table.
type Ledger struct {
	store      api.TableStore
	dateLayout string
	logger     *slog.Logger
}

// New creates a ledger over store. An empty dateLayout uses DefaultDateLayout.
func New(store api.TableStore, dateLayout string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	return &Ledger{
		store:      store,
		dateLayout: dateLayout,
		logger:     logger,
	}
}

// History is a point-in-time view of the ledger keyed by natural key.
type History struct {
	keys map[string]struct{}
	rows int
}

// Snapshot reads the whole ledger once.
func (l *Ledger) Snapshot(ctx context.Context) (*History, error) {
	rows, err := l.store.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w: %w", api.ErrStoreRead, err)
	}

	h := &History{keys: make(map[string]struct{}, len(rows)), rows: len(rows)}
	for _, row := range rows {
		h.keys[l.rowKey(row)] = struct{}{}
	}

	l.logger.Debug("ledger snapshot taken", "rows", len(rows))
	return h, nil
}

// rowKey rebuilds the natural key of a stored row, formatting its date like the feed does.
func (l *Ledger) rowKey(row []string) string {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return FormatDate(cell(0), l.dateLayout) + cell(1) + cell(2) + cell(3) + cell(4)
}

// IsNew reports whether no history row shares the record's natural key.
func (h *History) IsNew(r api.DetailRecord) bool {
	_, seen := h.keys[r.Key()]
	return !seen
}

// Len returns the number of rows in the snapshot.
func (h *History) Len() int {
	return h.rows
}

// Append writes rows after the last ledger row in one call. Zero rows is a no-op.
func (l *Ledger) Append(ctx context.Context, rows []api.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Values())
	}

	if err := l.store.AppendRows(ctx, values); err != nil {
		return fmt.Errorf("appending %d ledger rows: %w: %w", len(rows), api.ErrStoreWrite, err)
	}

	l.logger.Info("appended ledger rows", "count", len(rows))
	return nil
}

// FormatDate renders a stored date in layout. Values that cannot be parsed are returned unchanged.
func FormatDate(stored, layout string) string {
	s := strings.TrimSpace(stored)
	if s == "" {
		return stored
	}

	if t, err := time.Parse(layout, s); err == nil {
		return t.Format(layout)
	}
	for _, fl := range fallbackLayouts {
		if t, err := time.Parse(fl, s); err == nil {
			return t.Format(layout)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 2958466 {
		return spreadsheetEpoch.AddDate(0, 0, int(serial)).Format(layout)
	}

	return stored
}
