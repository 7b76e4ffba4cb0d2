// Package csv implements a TableStore backed by a local CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Store reads and appends rows of a CSV file whose first record is the header.
type Store struct {
	filePath string
	columns  []string
	mu       sync.Mutex
	logger   *slog.Logger
}

// Config holds configuration for the CSV store.
type Config struct {
	// FilePath is the path to the CSV file. It is created with a header if missing.
	FilePath string
	// Columns is the header record.
	Columns []string
}

// New creates a CSV store.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, errors.New("file path is required")
	}

	s := &Store{
		filePath: cfg.FilePath,
		columns:  cfg.Columns,
		logger:   logger,
	}

	if err := s.ensureFile(); err != nil {
		return nil, err
	}

	logger.Info("csv store initialized", "file", cfg.FilePath)
	return s, nil
}

func (s *Store) ensureFile() error {
	file, err := os.OpenFile(s.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening csv file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return fmt.Errorf("stat csv file: %w", err)
	}

	if stat.Size() == 0 {
		w := csv.NewWriter(file)
		if err := w.Write(s.columns); err != nil {
			file.Close()
			return fmt.Errorf("writing headers: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			file.Close()
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	return file.Close()
}

// ReadRows returns every record after the header, padded to the column count.
func (s *Store) ReadRows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}
		if first {
			first = false
			continue
		}
		for len(record) < len(s.columns) {
			record = append(record, "")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// AppendRows appends rows at the end of the file.
func (s *Store) AppendRows(_ context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening csv file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv records: %w", err)
	}

	s.logger.Debug("appended rows to csv", "file", s.filePath, "count", len(rows))
	return nil
}

var _ api.TableStore = (*Store)(nil)
