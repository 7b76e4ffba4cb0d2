// Package source defines the upstream accounting service the passes pull from.
package source

import (
	"context"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Client talks to the upstream accounting service.
type Client interface {
	// Login establishes a session. It must be called before any other method.
	Login(ctx context.Context) error
	// FetchTransactions returns the raw transaction table fragment.
	FetchTransactions(ctx context.Context) (string, error)
	// FetchAccounts returns the accounts and sub-accounts the service knows about.
	FetchAccounts(ctx context.Context) ([]api.AccountListing, error)
	// BulkRefresh asks the service to re-fetch every linked account.
	BulkRefresh(ctx context.Context) error
}
