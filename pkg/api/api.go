// Package api defines the core interfaces and data structures for paynotify.
package api

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across components.
var (
	// ErrMalformedRow marks a snapshot row that does not have the expected cell structure.
	ErrMalformedRow = errors.New("malformed snapshot row")
	// ErrStoreRead marks a failure reading a backing table.
	ErrStoreRead = errors.New("store read failed")
	// ErrStoreWrite marks a failure appending to a backing table.
	ErrStoreWrite = errors.New("store write failed")
	// ErrSend marks a notification transport failure.
	ErrSend = errors.New("notification send failed")
)

// Ledger column headers, in storage order.
var LedgerColumns = []string{"date", "contents", "amount", "account", "subAccount", "notifiedAt"}

// Account master column headers, in storage order.
var MasterColumns = []string{"account", "subAccount", "alias", "icon", "notifyEnabled"}

// Switch values for AccountMasterEntry.NotifyEnabled at the table boundary.
const (
	SwitchOn  = "ON"
	SwitchOff = "OFF"
)

// DetailRecord is one transaction line from a fetched snapshot.
type DetailRecord struct {
	Date       string `json:"date"`
	Contents   string `json:"contents"`
	Amount     string `json:"amount"`
	Account    string `json:"account"`
	SubAccount string `json:"subAccount"`
}

// Key returns the natural key. Two records are the same transaction iff their keys are equal.
func (r DetailRecord) Key() string {
	return r.Date + r.Contents + r.Amount + r.Account + r.SubAccount
}

// Values returns the record fields in ledger column order.
func (r DetailRecord) Values() []string {
	return []string{r.Date, r.Contents, r.Amount, r.Account, r.SubAccount}
}

// IsInflow reports whether the amount carries no minus sign.
func (r DetailRecord) IsInflow() bool {
	return !strings.Contains(r.Amount, "-")
}

// LedgerRow is a persisted record plus its notification outcome.
type LedgerRow struct {
	DetailRecord
	// NotifiedAt is the time the notification was sent, or empty if none was.
	NotifiedAt string `json:"notifiedAt"`
}

// Values returns the row in ledger column order.
func (r LedgerRow) Values() []string {
	return append(r.DetailRecord.Values(), r.NotifiedAt)
}

// Notified reports whether a notification was delivered for this row.
func (r LedgerRow) Notified() bool {
	return r.NotifiedAt != ""
}

// AccountMasterEntry maps an account/sub-account pair to its display and notification settings.
type AccountMasterEntry struct {
	Account    string `json:"account"`
	SubAccount string `json:"subAccount"`
	// Alias overrides the display name when non-empty.
	Alias string `json:"alias"`
	// Icon is a presentation hint for the transport (e.g. a Slack emoji).
	Icon          string `json:"icon"`
	NotifyEnabled bool   `json:"notifyEnabled"`
}

// Values returns the entry in master column order.
func (e AccountMasterEntry) Values() []string {
	return []string{e.Account, e.SubAccount, e.Alias, e.Icon, FormatSwitch(e.NotifyEnabled)}
}

// EntryFromValues builds an entry from a master table row. Missing cells read as empty.
func EntryFromValues(row []string) AccountMasterEntry {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return AccountMasterEntry{
		Account:       cell(0),
		SubAccount:    cell(1),
		Alias:         cell(2),
		Icon:          cell(3),
		NotifyEnabled: ParseSwitch(cell(4)),
	}
}

// ParseSwitch converts the textual ON/OFF flag to a bool. Anything but ON is off.
func ParseSwitch(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), SwitchOn)
}

// FormatSwitch converts a bool to the textual ON/OFF flag.
func FormatSwitch(on bool) string {
	if on {
		return SwitchOn
	}
	return SwitchOff
}

// AccountListing is one account and its sub-accounts as reported by the upstream service.
type AccountListing struct {
	Account     string   `json:"account"`
	SubAccounts []string `json:"subAccount"`
}

// Payload is a transport-agnostic notification message.
type Payload struct {
	// Destination is the channel, address or topic key the transport delivers to.
	Destination string `json:"destination"`
	Icon        string `json:"icon,omitempty"`
	// SenderLabel differs on every send so transports do not group messages.
	SenderLabel string   `json:"senderLabel"`
	Headline    string   `json:"headline"`
	Lines       []string `json:"lines"`
}

// Text renders the payload as plain text, headline first.
func (p Payload) Text() string {
	return strings.Join(append([]string{p.Headline}, p.Lines...), "\n")
}

// TableStore is an append-only table. ReadRows returns data rows with the header excluded.
type TableStore interface {
	ReadRows(ctx context.Context) ([][]string, error)
	AppendRows(ctx context.Context, rows [][]string) error
}

// Notifier delivers a payload and returns a transport acknowledgment.
type Notifier interface {
	Send(ctx context.Context, p Payload) (string, error)
}

// ParseAmount parses a source-formatted amount such as "10,000", "-1,200円" or "¥3,000".
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", "円", "", "¥", "", "￥", "", " ", "", "　", "").Replace(strings.TrimSpace(s))
	return decimal.NewFromString(cleaned)
}
