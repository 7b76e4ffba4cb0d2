package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ArionMiles/paynotify/pkg/client"
	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/plugins/builtin"
)

// runStatus checks configuration, credentials and the cached token.
func runStatus(configPath string) error {
	fmt.Println("=== paynotify status ===")
	fmt.Println()

	allGood := true
	mark := func(ok bool, msg string) {
		if ok {
			fmt.Printf("✓ %s\n", msg)
			return
		}
		fmt.Printf("✗ %s\n", msg)
		allGood = false
	}

	fmt.Printf("Config file (%s): ", configPath)
	if _, err := os.Stat(configPath); err != nil {
		fmt.Println("not found, using environment only")
	} else {
		fmt.Println("found")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		mark(false, err.Error())
		printFinalStatus(false)
		return nil
	}

	fmt.Printf("Store: %s, notifier: %s, source: %s\n", cfg.Store, cfg.Notifier, cfg.MFSource)
	for _, flow := range []config.Flow{config.FlowNotify, config.FlowSyncMasters, config.FlowBulkRefresh} {
		if err := cfg.Validate(flow); err != nil {
			mark(false, fmt.Sprintf("%s: %v", flow, err))
		} else {
			mark(true, fmt.Sprintf("%s: configured", flow))
		}
	}

	registry, err := builtin.Registry()
	if err != nil {
		return err
	}
	scopes, err := registry.Scopes(cfg.Store, cfg.Notifier)
	if err != nil {
		mark(false, err.Error())
		printFinalStatus(allGood)
		return nil
	}

	if len(scopes) > 0 {
		checkGoogleCredentials(cfg, mark)
	}

	printFinalStatus(allGood)
	return nil
}

func checkGoogleCredentials(cfg *config.Config, mark func(bool, string)) {
	secret, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		mark(false, fmt.Sprintf("credentials file (%s): not found", cfg.ClientSecretFile))
		return
	}
	mark(true, fmt.Sprintf("credentials file (%s): found", cfg.ClientSecretFile))

	if client.IsServiceAccount(secret) {
		mark(true, "service account key, no token needed")
		return
	}

	token, err := client.LoadToken(cfg.TokenFile)
	switch {
	case err != nil:
		mark(false, fmt.Sprintf("OAuth token (%s): missing or invalid (run 'paynotify setup')", cfg.TokenFile))
	case token.Expiry.Before(time.Now()):
		mark(true, fmt.Sprintf("OAuth token (%s): expired, will refresh on next run", cfg.TokenFile))
	default:
		mark(true, fmt.Sprintf("OAuth token (%s): valid until %s", cfg.TokenFile, token.Expiry.Format(time.RFC3339)))
	}
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		return
	}
	fmt.Println("Status: ✗ Configuration issues detected")
	fmt.Println("Fix the issues above, then run 'paynotify status' again.")
}
