// Command snapshotdump logs in to the accounting service and saves the raw
// transaction fragment and account list. The files feed MF_SOURCE=file runs
// and serve as test fixtures.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/logging"
	"github.com/ArionMiles/paynotify/pkg/snapshot"
	"github.com/ArionMiles/paynotify/pkg/source/httpsource"
)

const defaultDumpDir = "data/dump"

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	configPath := flag.String("config", "config.json", "path to the JSON config file")
	dumpDir := flag.String("out", defaultDumpDir, "directory to write the snapshot files to")
	flag.Parse()

	if err := run(logger, *configPath, *dumpDir); err != nil {
		logger.Error("snapshot dump failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, dumpDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	src, err := httpsource.New(httpsource.Config{
		BaseURL:          cfg.MFBaseURL,
		LoginID:          cfg.MFLoginID,
		Password:         cfg.MFLoginPassword,
		TransactionsPath: cfg.MFTransactionsPath,
		AccountsPath:     cfg.MFAccountsPath,
	}, logger.With("component", "source"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PassTimeout)
	defer cancel()

	if err := src.Login(ctx); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}

	raw, err := src.FetchTransactions(ctx)
	if err != nil {
		return err
	}
	listings, err := src.FetchAccounts(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dumpDir, 0o700); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}
	stamp := time.Now().Format("20060102_150405")

	actsPath := filepath.Join(dumpDir, fmt.Sprintf("acts_%s.html", stamp))
	if err := os.WriteFile(actsPath, []byte(raw), 0o600); err != nil {
		return fmt.Errorf("writing transactions: %w", err)
	}

	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding accounts: %w", err)
	}
	accountsPath := filepath.Join(dumpDir, fmt.Sprintf("accounts_%s.json", stamp))
	if err := os.WriteFile(accountsPath, data, 0o600); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}

	// Decode once so a layout change upstream shows up here rather than in a pass.
	rows, err := snapshot.HTMLLoader{}.LoadTable(raw)
	if err != nil {
		return fmt.Errorf("parsing transactions: %w", err)
	}
	records, skipped := snapshot.Decode(rows)
	for _, s := range skipped {
		logger.Warn("row does not decode", "row", s.Index, "cells", s.Cells)
	}

	logger.Info("snapshot dump complete",
		"transactions_file", actsPath,
		"accounts_file", accountsPath,
		"records", len(records),
		"skipped", len(skipped),
		"accounts", len(listings),
	)
	return nil
}
