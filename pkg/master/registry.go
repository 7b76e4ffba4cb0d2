// Package master holds the account master: routing, display and notification
// settings per account/sub-account pair.
package master

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Registry is an in-memory view of the account master table.
type Registry struct {
	store   api.TableStore
	entries []api.AccountMasterEntry
	logger  *slog.Logger
}

// Load reads the whole account master table from store.
func Load(ctx context.Context, store api.TableStore, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := store.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading account master: %w: %w", api.ErrStoreRead, err)
	}

	entries := make([]api.AccountMasterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, api.EntryFromValues(row))
	}

	logger.Debug("account master loaded", "entries", len(entries))
	return &Registry{store: store, entries: entries, logger: logger}, nil
}

// NewRegistry builds a registry from entries without a backing store. Sync is unavailable.
func NewRegistry(entries ...api.AccountMasterEntry) *Registry {
	return &Registry{entries: entries, logger: slog.Default()}
}

// Entries returns a copy of the entries in storage order.
func (r *Registry) Entries() []api.AccountMasterEntry {
	return append([]api.AccountMasterEntry(nil), r.entries...)
}

// FindMatch returns the first entry whose account and sub-account equal the
// query once all whitespace is removed from both sides.
func (r *Registry) FindMatch(account, subAccount string) (api.AccountMasterEntry, bool) {
	account, subAccount = stripSpace(account), stripSpace(subAccount)
	for _, e := range r.entries {
		if stripSpace(e.Account) == account && stripSpace(e.SubAccount) == subAccount {
			return e, true
		}
	}
	return api.AccountMasterEntry{}, false
}

// IsNotifyEligible reports whether an enabled entry's raw account name is a
// substring of detailAccount. Coarser than FindMatch on purpose: it gates
// whether the account class is watched at all.
func (r *Registry) IsNotifyEligible(detailAccount string) bool {
	for _, e := range r.entries {
		if e.NotifyEnabled && strings.Contains(detailAccount, e.Account) {
			return true
		}
	}
	return false
}

// UpsertDiscovered adds a disabled entry for every sub-account of accountName
// not already present (exact match) and returns the added entries.
func (r *Registry) UpsertDiscovered(accountName string, subAccountNames []string) []api.AccountMasterEntry {
	var added []api.AccountMasterEntry
	for _, sub := range subAccountNames {
		if r.has(accountName, sub) {
			continue
		}
		e := api.AccountMasterEntry{Account: accountName, SubAccount: sub}
		r.entries = append(r.entries, e)
		added = append(added, e)
	}
	return added
}

func (r *Registry) has(account, subAccount string) bool {
	for _, e := range r.entries {
		if e.Account == account && e.SubAccount == subAccount {
			return true
		}
	}
	return false
}

// Sync upserts every listed pair and appends the new entries in one write.
// Existing entries are never modified.
func (r *Registry) Sync(ctx context.Context, listings []api.AccountListing) ([]api.AccountMasterEntry, error) {
	if r.store == nil {
		return nil, fmt.Errorf("account master has no backing store")
	}

	before := len(r.entries)
	var added []api.AccountMasterEntry
	for _, l := range listings {
		added = append(added, r.UpsertDiscovered(l.Account, l.SubAccounts)...)
	}
	if len(added) == 0 {
		r.logger.Info("account master up to date", "entries", before)
		return nil, nil
	}

	values := make([][]string, 0, len(added))
	for _, e := range added {
		values = append(values, e.Values())
	}
	if err := r.store.AppendRows(ctx, values); err != nil {
		r.entries = r.entries[:before]
		return nil, fmt.Errorf("appending %d account master rows: %w: %w", len(added), api.ErrStoreWrite, err)
	}

	r.logger.Info("added account master entries", "count", len(added))
	return added, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
