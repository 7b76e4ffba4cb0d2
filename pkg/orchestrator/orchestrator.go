// Package orchestrator runs the deposit notification and account master sync passes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/ledger"
	"github.com/ArionMiles/paynotify/pkg/master"
	"github.com/ArionMiles/paynotify/pkg/policy"
	"github.com/ArionMiles/paynotify/pkg/render"
	"github.com/ArionMiles/paynotify/pkg/snapshot"
)

// DefaultTimestampLayout formats LedgerRow.NotifiedAt.
const DefaultTimestampLayout = "2006/01/02 15:04:05"

// DefaultRecordTimeout bounds the final ledger append once sends have started.
const DefaultRecordTimeout = 2 * time.Minute

// Stage names the step of a pass that failed.
type Stage string

// Pass stages that can abort a run.
const (
	StageLoadTable    Stage = "load-table"
	StageReadLedger   Stage = "read-ledger"
	StageReadMaster   Stage = "read-master"
	StageAppendLedger Stage = "append-ledger"
	StageAppendMaster Stage = "append-master"
)

// PassError reports a fatal failure together with the progress made before it.
// Re-running the pass is safe: rows already in the ledger are skipped.
type PassError struct {
	Stage     Stage
	Processed int
	Appended  int
	Err       error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s failed (processed %d, appended %d): %v", e.Stage, e.Processed, e.Appended, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// Config holds the settings of a pass. Nothing is read from the environment.
type Config struct {
	// Destination is where notifications go (channel ID, address, topic key). Required.
	Destination string
	// SenderLabel prefixes the per-send sender name. Defaults to render.DefaultSenderLabel.
	SenderLabel string
	// TransferMarker prefixes the contents of incoming transfers. Defaults to policy.DefaultTransferMarker.
	TransferMarker string
	// DateLayout is the feed's date format, used to rebuild ledger keys. Defaults to ledger.DefaultDateLayout.
	DateLayout string
	// TimestampLayout formats NotifiedAt. Defaults to DefaultTimestampLayout.
	TimestampLayout string
	// Location is the zone NotifiedAt is rendered in. Defaults to time.Local.
	Location *time.Location
	// RecordTimeout bounds the ledger append of a notify pass. The append is
	// detached from pass cancellation so delivered notifications are always
	// recorded. Defaults to DefaultRecordTimeout.
	RecordTimeout time.Duration
}

// Deps are the collaborators of a pass.
type Deps struct {
	// Loader turns the raw snapshot into cells. Defaults to snapshot.HTMLLoader.
	Loader snapshot.TableLoader
	// Ledger is the ledger table. Required.
	Ledger api.TableStore
	// Master is the account master table. Required.
	Master api.TableStore
	// Notifier delivers payloads. Required for NotifyPayments.
	Notifier api.Notifier
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Orchestrator composes parsing, dedup, matching, policy, rendering and persistence.
// A pass is synchronous; passes must not run concurrently against the same tables.
type Orchestrator struct {
	cfg      Config
	loader   snapshot.TableLoader
	ledger   *ledger.Ledger
	master   api.TableStore
	notifier api.Notifier
	renderer render.Renderer
	now      func() time.Time
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Ledger == nil {
		return nil, errors.New("ledger store is required")
	}
	if deps.Master == nil {
		return nil, errors.New("account master store is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loader := deps.Loader
	if loader == nil {
		loader = snapshot.HTMLLoader{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = DefaultTimestampLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = DefaultRecordTimeout
	}

	return &Orchestrator{
		cfg:      cfg,
		loader:   loader,
		ledger:   ledger.New(deps.Ledger, cfg.DateLayout, logger.With("component", "ledger")),
		master:   deps.Master,
		notifier: deps.Notifier,
		renderer: render.Renderer{
			Destination: cfg.Destination,
			SenderLabel: cfg.SenderLabel,
			Now:         now,
		},
		now:    now,
		logger: logger,
	}, nil
}

// Result summarises a notify pass.
type Result struct {
	RunID uuid.UUID
	// Parsed counts decoded records; Skipped counts malformed rows.
	Parsed  int
	Skipped int
	// Duplicates were already in the ledger; Unmatched had no account master entry.
	Duplicates int
	Unmatched  int
	// Processed counts records that produced a ledger row.
	Processed int
	// Deferred counts records left for the next pass because the pass was cancelled.
	Deferred     int
	Appended     int
	Notified     int
	SendFailures int
	// NotifiedTotal sums the amounts of notified deposits.
	NotifiedTotal decimal.Decimal
	Rows          []api.LedgerRow
}

// NotifyPayments runs one notify pass over a raw snapshot:
// parse, snapshot the ledger, match, notify, and append the outcome in one write.
// A failed send leaves the row unnotified and does not stop the pass.
// Records without an account master entry are dropped without a ledger row.
func (o *Orchestrator) NotifyPayments(ctx context.Context, raw string) (*Result, error) {
	res := &Result{RunID: uuid.New(), NotifiedTotal: decimal.Zero}
	logger := o.logger.With("run_id", res.RunID.String())

	if o.notifier == nil {
		return res, errors.New("notifier is required for the notify pass")
	}

	table, err := o.loader.LoadTable(raw)
	if err != nil {
		return res, &PassError{Stage: StageLoadTable, Err: err}
	}

	records, skipped := snapshot.Decode(table)
	res.Parsed, res.Skipped = len(records), len(skipped)
	for _, s := range skipped {
		logger.Warn("skipping malformed snapshot row", "row", s.Index, "cells", s.Cells)
	}

	history, err := o.ledger.Snapshot(ctx)
	if err != nil {
		return res, &PassError{Stage: StageReadLedger, Err: err}
	}

	registry, err := master.Load(ctx, o.master, logger.With("component", "master"))
	if err != nil {
		return res, &PassError{Stage: StageReadMaster, Err: err}
	}
	rule := policy.New(registry, o.cfg.TransferMarker)

	logger.Info("notify pass started",
		"records", res.Parsed,
		"skipped", res.Skipped,
		"ledger_rows", history.Len(),
	)

	// History is not refreshed inside the pass, so two identical records in
	// one snapshot both count as new.
	batch := make([]api.LedgerRow, 0, len(records))
	for i, rec := range records {
		if ctx.Err() != nil {
			res.Deferred = len(records) - i
			logger.Warn("pass cancelled, leaving remaining records for the next pass", "deferred", res.Deferred)
			break
		}
		if !history.IsNew(rec) {
			res.Duplicates++
			continue
		}

		entry, ok := registry.FindMatch(rec.Account, rec.SubAccount)
		if !ok {
			res.Unmatched++
			logger.Debug("no account master entry, dropping record",
				"account", rec.Account,
				"sub_account", rec.SubAccount,
				"date", rec.Date,
			)
			continue
		}

		row := api.LedgerRow{DetailRecord: rec}
		if rule.ShouldNotify(rec) {
			if err := o.send(ctx, logger, rec, entry); err != nil {
				res.SendFailures++
				logger.Warn("notification failed, recording as unnotified",
					"account", rec.Account,
					"amount", rec.Amount,
					"error", err,
				)
			} else {
				row.NotifiedAt = o.now().In(o.cfg.Location).Format(o.cfg.TimestampLayout)
				res.Notified++
				o.addToTotal(logger, res, rec.Amount)
			}
		}

		batch = append(batch, row)
		res.Processed++
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RecordTimeout)
	defer cancel()
	if err := o.ledger.Append(recordCtx, batch); err != nil {
		if res.Notified > 0 {
			logger.Error("notifications were sent but not recorded", "notified", res.Notified)
		}
		return res, &PassError{Stage: StageAppendLedger, Processed: res.Processed, Err: err}
	}
	res.Appended = len(batch)
	res.Rows = batch

	logger.Info("notify pass complete",
		"appended", res.Appended,
		"notified", res.Notified,
		"duplicates", res.Duplicates,
		"unmatched", res.Unmatched,
		"send_failures", res.SendFailures,
		"deferred", res.Deferred,
		"notified_total", res.NotifiedTotal.String(),
	)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("notify pass interrupted with %d records deferred: %w", res.Deferred, err)
	}
	return res, nil
}

func (o *Orchestrator) send(ctx context.Context, logger *slog.Logger, rec api.DetailRecord, entry api.AccountMasterEntry) error {
	payload := o.renderer.Render(rec, entry)
	ack, err := o.notifier.Send(ctx, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", api.ErrSend, err)
	}
	logger.Info("deposit notified", "headline", payload.Headline, "amount", rec.Amount, "ack", ack)
	return nil
}

func (o *Orchestrator) addToTotal(logger *slog.Logger, res *Result, amount string) {
	d, err := api.ParseAmount(amount)
	if err != nil {
		logger.Debug("amount not numeric, left out of total", "amount", amount, "error", err)
		return
	}
	res.NotifiedTotal = res.NotifiedTotal.Add(d)
}

// SyncResult summarises an account master sync pass.
type SyncResult struct {
	RunID  uuid.UUID
	Listed int
	Added  []api.AccountMasterEntry
}

// SyncAccountMaster appends a disabled entry for every listed pair missing
// from the account master. Existing entries are never modified.
func (o *Orchestrator) SyncAccountMaster(ctx context.Context, listings []api.AccountListing) (*SyncResult, error) {
	res := &SyncResult{RunID: uuid.New()}
	for _, l := range listings {
		res.Listed += len(l.SubAccounts)
	}
	logger := o.logger.With("run_id", res.RunID.String())

	registry, err := master.Load(ctx, o.master, logger.With("component", "master"))
	if err != nil {
		return res, &PassError{Stage: StageReadMaster, Err: err}
	}

	added, err := registry.Sync(ctx, listings)
	if err != nil {
		return res, &PassError{Stage: StageAppendMaster, Processed: res.Listed, Err: err}
	}
	res.Added = added

	logger.Info("account master sync complete", "listed", res.Listed, "added", len(added))
	return res, nil
}
