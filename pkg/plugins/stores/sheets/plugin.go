// Package sheets provides a plugin wrapper for the Google Sheets store.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	sheetsstore "github.com/ArionMiles/paynotify/pkg/store/sheets"
)

// Plugin implements plugins.StorePlugin for Google Sheets.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "sheets"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep the ledger and account master as two tabs of one spreadsheet"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{sheetsapi.SpreadsheetsScope}
}

// NewTables opens both tabs, creating them with a header row if missing.
func (p *Plugin) NewTables(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (*plugins.Tables, error) {
	if cfg.GSheetsID == "" {
		return nil, fmt.Errorf("GSHEETS_ID is required")
	}

	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	ledger, err := sheetsstore.NewWithService(ctx, svc, sheetsstore.Config{
		SpreadsheetID: cfg.GSheetsID,
		SheetName:     cfg.GSheetsLedgerName,
		Columns:       api.LedgerColumns,
	}, logger.With("table", "ledger"))
	if err != nil {
		return nil, fmt.Errorf("opening ledger sheet: %w", err)
	}

	master, err := sheetsstore.NewWithService(ctx, svc, sheetsstore.Config{
		SpreadsheetID: cfg.GSheetsID,
		SheetName:     cfg.GSheetsMasterName,
		Columns:       api.MasterColumns,
	}, logger.With("table", "master"))
	if err != nil {
		return nil, fmt.Errorf("opening account master sheet: %w", err)
	}

	return &plugins.Tables{Ledger: ledger, Master: master, Close: func() {}}, nil
}

var _ plugins.StorePlugin = (*Plugin)(nil)
