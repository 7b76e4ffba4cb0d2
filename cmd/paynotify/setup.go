package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ArionMiles/paynotify/pkg/client"
	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/plugins/builtin"
)

// runSetup authorizes Google access for the configured store and notifier.
func runSetup(logger *slog.Logger, configPath string, force bool) error {
	fmt.Println("=== paynotify setup ===")
	fmt.Println()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	registry, err := builtin.Registry()
	if err != nil {
		return err
	}
	scopes, err := registry.Scopes(cfg.Store, cfg.Notifier)
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		fmt.Printf("Store %q and notifier %q need no Google authorization.\n", cfg.Store, cfg.Notifier)
		return nil
	}

	secret, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application) or a service account key\n"+
			"3. Save the JSON file as '%s'", cfg.ClientSecretFile, cfg.ClientSecretFile)
	}

	if client.IsServiceAccount(secret) {
		fmt.Println("Service account key found; no browser authorization needed.")
		fmt.Println("Share the spreadsheet with the service account's email address.")
		return nil
	}

	if !force {
		if _, err := os.Stat(cfg.TokenFile); err == nil {
			fmt.Printf("Already authorized. Token file exists: %s\n", cfg.TokenFile)
			fmt.Println()
			fmt.Println("To re-authorize, run: paynotify setup -force")
			return nil
		}
	}

	fmt.Println("Requested permissions:")
	for _, s := range scopes {
		fmt.Printf("  - %s\n", strings.TrimPrefix(s, "https://www.googleapis.com/auth/"))
	}
	fmt.Println()

	if _, err := client.Authorize(secret, cfg.TokenFile, scopes...); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	logger.Debug("token stored", "path", cfg.TokenFile)

	fmt.Println()
	fmt.Println("=== Setup complete ===")
	fmt.Printf("Token saved to: %s\n", cfg.TokenFile)
	fmt.Println("Next: run 'paynotify sync-masters', enable accounts in the account master, then 'paynotify notify-now'.")
	return nil
}
