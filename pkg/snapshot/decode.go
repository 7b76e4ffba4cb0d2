package snapshot

import (
	"fmt"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Fixed column positions in a snapshot row.
const (
	colDate     = 1
	colContents = 2
	colAmount   = 3
	colRouting  = 5

	minCells = colRouting + 1
)

// MalformedRowError reports a row that lacks the expected cells.
type MalformedRowError struct {
	Index int
	Cells int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: %d cells, need at least %d", e.Index, e.Cells, minCells)
}

func (e *MalformedRowError) Unwrap() error {
	return api.ErrMalformedRow
}

// Decode maps rows to records in input order. Rows with too few cells are
// skipped and returned in skipped; a missing nested routing part reads as "".
func Decode(rows []Row) (records []api.DetailRecord, skipped []*MalformedRowError) {
	records = make([]api.DetailRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < minCells {
			skipped = append(skipped, &MalformedRowError{Index: i, Cells: len(row)})
			continue
		}

		routing := row[colRouting]
		records = append(records, api.DetailRecord{
			Date:       row[colDate].Text,
			Contents:   row[colContents].Text,
			Amount:     row[colAmount].Text,
			Account:    part(routing, 0),
			SubAccount: part(routing, 1),
		})
	}
	return records, skipped
}

func part(c Cell, i int) string {
	if i < len(c.Parts) {
		return c.Parts[i]
	}
	return ""
}
