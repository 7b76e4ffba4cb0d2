// Package memory implements an in-memory TableStore.
package memory

import (
	"context"
	"sync"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Store holds rows in a slice. It is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	rows [][]string

	// ReadErr and AppendErr, when set, are returned by the matching call.
	ReadErr   error
	AppendErr error

	appends int
}

// New creates a store seeded with rows.
func New(rows ...[]string) *Store {
	s := &Store{}
	for _, r := range rows {
		s.rows = append(s.rows, clone(r))
	}
	return s
}

// ReadRows returns a copy of all rows.
func (s *Store) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReadErr != nil {
		return nil, s.ReadErr
	}

	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = clone(r)
	}
	return out, nil
}

// AppendRows appends rows after the last row. A done ctx writes nothing.
func (s *Store) AppendRows(ctx context.Context, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.AppendErr != nil {
		return s.AppendErr
	}

	for _, r := range rows {
		s.rows = append(s.rows, clone(r))
	}
	s.appends++
	return nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Appends returns how many AppendRows calls succeeded.
func (s *Store) Appends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

func clone(r []string) []string {
	return append([]string(nil), r...)
}

var _ api.TableStore = (*Store)(nil)
