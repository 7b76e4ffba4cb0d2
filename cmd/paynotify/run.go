package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/internal/runner"
	"github.com/ArionMiles/paynotify/pkg/client"
	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/orchestrator"
	"github.com/ArionMiles/paynotify/pkg/plugins/builtin"
)

// runFlow loads configuration, builds the collaborators and runs one flow.
func runFlow(logger *slog.Logger, configPath string, flow config.Flow) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(flow); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry, err := builtin.Registry()
	if err != nil {
		return fmt.Errorf("registering plugins: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpClient, err := googleClient(ctx, logger, registry, cfg, flow)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, runner.Deps{
		Registry:   registry,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	report, err := r.Run(ctx, flow)
	printReport(report)

	var passErr *orchestrator.PassError
	if errors.As(err, &passErr) {
		fmt.Printf("\npass failed at %s: processed %d, appended %d\n", passErr.Stage, passErr.Processed, passErr.Appended)
		fmt.Println("Rows already in the ledger are skipped, so the pass can be re-run.")
	}
	return err
}

// googleClient returns an authorized client when a selected plugin needs Google scopes.
func googleClient(ctx context.Context, logger *slog.Logger, registry *plugins.Registry, cfg *config.Config, flow config.Flow) (*http.Client, error) {
	if flow == config.FlowBulkRefresh {
		return nil, nil
	}
	notifier := ""
	if flow == config.FlowNotify {
		notifier = cfg.Notifier
	}

	scopes, err := registry.Scopes(cfg.Store, notifier)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, nil
	}

	logger.Debug("OAuth scopes required", "scopes", scopes)
	httpClient, err := client.New(ctx, client.Config{
		SecretFile: cfg.ClientSecretFile,
		TokenFile:  cfg.TokenFile,
		Scopes:     scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("creating google client: %w", err)
	}
	return httpClient, nil
}

func printReport(report *runner.Report) {
	if report == nil {
		return
	}
	if res := report.Notify; res != nil {
		fmt.Printf("run %s\n", res.RunID)
		fmt.Printf("  parsed %d, skipped %d, duplicates %d, unmatched %d\n", res.Parsed, res.Skipped, res.Duplicates, res.Unmatched)
		fmt.Printf("  appended %d, notified %d (total %s), send failures %d\n", res.Appended, res.Notified, res.NotifiedTotal.StringFixed(0), res.SendFailures)
		if res.Deferred > 0 {
			fmt.Printf("  deferred %d to the next pass\n", res.Deferred)
		}
	}
	if res := report.Sync; res != nil {
		fmt.Printf("run %s\n", res.RunID)
		fmt.Printf("  listed %d sub-accounts, added %d\n", res.Listed, len(res.Added))
		for _, e := range res.Added {
			fmt.Printf("  + %s / %s\n", e.Account, e.SubAccount)
		}
	}
}
