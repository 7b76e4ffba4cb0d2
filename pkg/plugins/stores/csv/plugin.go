// Package csv provides a plugin wrapper for the CSV store.
package csv

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	csvstore "github.com/ArionMiles/paynotify/pkg/store/csv"
)

// File names inside CSV_DIR.
const (
	LedgerFile = "ledger.csv"
	MasterFile = "account_master.csv"
)

// Plugin implements plugins.StorePlugin for local CSV files.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "csv"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep the ledger and account master as CSV files in a local directory"
}

// RequiredScopes returns nil; local files need no OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// NewTables creates CSV_DIR if needed and opens both files.
func (p *Plugin) NewTables(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (*plugins.Tables, error) {
	if err := os.MkdirAll(cfg.CSVDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating csv directory: %w", err)
	}

	ledger, err := csvstore.New(csvstore.Config{
		FilePath: filepath.Join(cfg.CSVDir, LedgerFile),
		Columns:  api.LedgerColumns,
	}, logger.With("table", "ledger"))
	if err != nil {
		return nil, err
	}

	master, err := csvstore.New(csvstore.Config{
		FilePath: filepath.Join(cfg.CSVDir, MasterFile),
		Columns:  api.MasterColumns,
	}, logger.With("table", "master"))
	if err != nil {
		return nil, err
	}

	return &plugins.Tables{Ledger: ledger, Master: master, Close: func() {}}, nil
}

var _ plugins.StorePlugin = (*Plugin)(nil)
