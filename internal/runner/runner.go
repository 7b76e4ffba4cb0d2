// Package runner wires configured collaborators together and runs one flow.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/orchestrator"
	"github.com/ArionMiles/paynotify/pkg/source"
	"github.com/ArionMiles/paynotify/pkg/source/filesource"
	"github.com/ArionMiles/paynotify/pkg/source/httpsource"
)

// Deps are the collaborators of a runner.
type Deps struct {
	Registry *plugins.Registry
	// HTTPClient is the authorized Google client. Nil when no plugin needs OAuth.
	HTTPClient *http.Client
	// Source defaults to the one selected by MF_SOURCE.
	Source source.Client
	Now    func() time.Time
	Logger *slog.Logger
}

// Runner runs notify-now, bulk-refresh and sync-masters.
type Runner struct {
	cfg        *config.Config
	registry   *plugins.Registry
	httpClient *http.Client
	source     source.Client
	now        func() time.Time
	logger     *slog.Logger
}

// Report is the outcome of one flow. Only the field of the flow that ran is set.
type Report struct {
	Flow   config.Flow
	Notify *orchestrator.Result
	Sync   *orchestrator.SyncResult
}

// New creates a runner.
func New(cfg *config.Config, deps Deps) (*Runner, error) {
	if deps.Registry == nil {
		return nil, errors.New("plugin registry is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	src := deps.Source
	if src == nil {
		var err error
		src, err = NewSource(cfg, logger.With("component", "source"))
		if err != nil {
			return nil, err
		}
	}

	return &Runner{
		cfg:        cfg,
		registry:   deps.Registry,
		httpClient: deps.HTTPClient,
		source:     src,
		now:        now,
		logger:     logger,
	}, nil
}

// NewSource builds the upstream client selected by MF_SOURCE.
func NewSource(cfg *config.Config, logger *slog.Logger) (source.Client, error) {
	switch cfg.MFSource {
	case "http":
		c, err := httpsource.New(httpsource.Config{
			BaseURL:          cfg.MFBaseURL,
			LoginID:          cfg.MFLoginID,
			Password:         cfg.MFLoginPassword,
			TransactionsPath: cfg.MFTransactionsPath,
			AccountsPath:     cfg.MFAccountsPath,
			Timeout:          cfg.PassTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating http source: %w", err)
		}
		return c, nil
	case "file":
		return filesource.New(filesource.Config{
			TransactionsFile: cfg.MFTransactionsFile,
			AccountsFile:     cfg.MFAccountsFile,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown MF_SOURCE %q", cfg.MFSource)
	}
}

// Run executes flow bounded by PASS_TIMEOUT.
func (r *Runner) Run(ctx context.Context, flow config.Flow) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PassTimeout)
	defer cancel()

	r.logger.Info("starting flow", "flow", flow, "store", r.cfg.Store, "notifier", r.cfg.Notifier)

	report := &Report{Flow: flow}
	var err error
	switch flow {
	case config.FlowNotify:
		report.Notify, err = r.notifyNow(ctx)
	case config.FlowSyncMasters:
		report.Sync, err = r.syncMasters(ctx)
	case config.FlowBulkRefresh:
		err = r.bulkRefresh(ctx)
	default:
		err = fmt.Errorf("unknown flow %q", flow)
	}
	if err != nil {
		return report, err
	}

	r.logger.Info("flow finished", "flow", flow)
	return report, nil
}

func (r *Runner) notifyNow(ctx context.Context) (*orchestrator.Result, error) {
	loc, err := r.cfg.Location()
	if err != nil {
		return nil, err
	}

	tables, err := r.openTables(ctx)
	if err != nil {
		return nil, err
	}
	defer tables.Close()

	notifier, err := r.registry.CreateNotifier(ctx, r.cfg.Notifier, r.httpClient, r.cfg,
		r.logger.With("component", "notifier", "plugin", r.cfg.Notifier))
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}
	if c, ok := notifier.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				r.logger.Warn("closing notifier", "error", err)
			}
		}()
	}

	if err := r.source.Login(ctx); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	raw, err := r.source.FetchTransactions(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Destination:     r.cfg.Destination(),
		SenderLabel:     r.cfg.NotifySenderLabel,
		TransferMarker:  r.cfg.TransferMarker,
		DateLayout:      r.cfg.DateLayout,
		TimestampLayout: r.cfg.TimestampLayout,
		Location:        loc,
	}, r.orchestratorDeps(tables, notifier))
	if err != nil {
		return nil, err
	}
	return orch.NotifyPayments(ctx, raw)
}

func (r *Runner) syncMasters(ctx context.Context) (*orchestrator.SyncResult, error) {
	tables, err := r.openTables(ctx)
	if err != nil {
		return nil, err
	}
	defer tables.Close()

	if err := r.source.Login(ctx); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	listings, err := r.source.FetchAccounts(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Config{}, r.orchestratorDeps(tables, nil))
	if err != nil {
		return nil, err
	}
	return orch.SyncAccountMaster(ctx, listings)
}

func (r *Runner) bulkRefresh(ctx context.Context) error {
	if err := r.source.Login(ctx); err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	return r.source.BulkRefresh(ctx)
}

func (r *Runner) openTables(ctx context.Context) (*plugins.Tables, error) {
	tables, err := r.registry.CreateTables(ctx, r.cfg.Store, r.httpClient, r.cfg,
		r.logger.With("component", "store", "plugin", r.cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", r.cfg.Store, err)
	}
	return tables, nil
}

func (r *Runner) orchestratorDeps(tables *plugins.Tables, notifier api.Notifier) orchestrator.Deps {
	return orchestrator.Deps{
		Ledger:   tables.Ledger,
		Master:   tables.Master,
		Notifier: notifier,
		Now:      r.now,
		Logger:   r.logger.With("component", "orchestrator"),
	}
}
