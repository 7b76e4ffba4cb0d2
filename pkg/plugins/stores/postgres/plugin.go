// Package postgres provides a plugin wrapper for the PostgreSQL store.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/config"
	pgstore "github.com/ArionMiles/paynotify/pkg/store/postgres"
)

// Plugin implements plugins.StorePlugin for PostgreSQL.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "postgres"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Keep the ledger and account master in PostgreSQL"
}

// RequiredScopes returns nil; PostgreSQL needs no OAuth scopes.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// NewTables connects and ensures both tables exist.
func (p *Plugin) NewTables(ctx context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (*plugins.Tables, error) {
	db, err := pgstore.Open(ctx, pgstore.Config{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		Database: cfg.PostgresDB,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		SSLMode:  cfg.PostgresSSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	return &plugins.Tables{
		Ledger: db.Table(pgstore.LedgerTable),
		Master: db.Table(pgstore.MasterTable),
		Close:  db.Close,
	}, nil
}

var _ plugins.StorePlugin = (*Plugin)(nil)
