// Package policy decides which transactions warrant a deposit notification.
package policy

import (
	"strings"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// DefaultTransferMarker prefixes the contents of incoming transfers.
const DefaultTransferMarker = "振込"

// Eligibility reports whether an account class is watched.
type Eligibility interface {
	IsNotifyEligible(detailAccount string) bool
}

// Policy is the deposit notification rule.
type Policy struct {
	Accounts       Eligibility
	TransferMarker string
}

// New creates a policy. An empty marker uses DefaultTransferMarker.
func New(accounts Eligibility, transferMarker string) Policy {
	if transferMarker == "" {
		transferMarker = DefaultTransferMarker
	}
	return Policy{Accounts: accounts, TransferMarker: transferMarker}
}

// ShouldNotify reports whether r is an inflow transfer into a watched account.
func (p Policy) ShouldNotify(r api.DetailRecord) bool {
	return p.Accounts.IsNotifyEligible(r.Account) &&
		r.IsInflow() &&
		strings.HasPrefix(r.Contents, p.TransferMarker)
}
