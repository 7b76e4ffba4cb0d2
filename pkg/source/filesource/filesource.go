// Package filesource implements source.Client over files saved from the service.
// It is used for replays and offline runs.
package filesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/source"
)

// Config holds the file locations.
type Config struct {
	// TransactionsFile holds the transaction table fragment.
	TransactionsFile string
	// AccountsFile holds the account list as JSON.
	AccountsFile string
}

// Client reads snapshots from disk.
type Client struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a file source.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Login is a no-op.
func (c *Client) Login(context.Context) error { return nil }

// FetchTransactions reads the transaction fragment.
func (c *Client) FetchTransactions(context.Context) (string, error) {
	if c.cfg.TransactionsFile == "" {
		return "", errors.New("transactions file is not configured")
	}
	data, err := os.ReadFile(c.cfg.TransactionsFile)
	if err != nil {
		return "", fmt.Errorf("reading transactions file: %w", err)
	}
	return string(data), nil
}

// FetchAccounts reads the account list.
func (c *Client) FetchAccounts(context.Context) ([]api.AccountListing, error) {
	if c.cfg.AccountsFile == "" {
		return nil, errors.New("accounts file is not configured")
	}
	data, err := os.ReadFile(c.cfg.AccountsFile)
	if err != nil {
		return nil, fmt.Errorf("reading accounts file: %w", err)
	}
	var listings []api.AccountListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("decoding accounts file: %w", err)
	}
	return listings, nil
}

// BulkRefresh has nothing to refresh offline.
func (c *Client) BulkRefresh(context.Context) error {
	c.logger.Info("bulk refresh skipped for file source")
	return nil
}

var _ source.Client = (*Client)(nil)
