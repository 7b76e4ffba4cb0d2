// Package render builds notification payloads for deposits.
package render

import (
	"time"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// DefaultSenderLabel is the sender name shown by chat transports.
const DefaultSenderLabel = "入金通知bot"

// senderStampLayout makes each sender label unique down to the millisecond.
const senderStampLayout = "2006-01-02 15:04:05.000"

// Renderer turns a record and its account master entry into a Payload.
type Renderer struct {
	Destination string
	SenderLabel string
	Now         func() time.Time
}

// ResolveName returns the entry's alias, or "<account> <subAccount>" when it has none.
func ResolveName(r api.DetailRecord, e api.AccountMasterEntry) string {
	if e.Alias != "" {
		return e.Alias
	}
	return r.Account + " " + r.SubAccount
}

// Render builds the deposit payload: a headline naming the account and the
// date, amount and contents lines in that order.
func (rd Renderer) Render(r api.DetailRecord, e api.AccountMasterEntry) api.Payload {
	now := time.Now
	if rd.Now != nil {
		now = rd.Now
	}
	label := rd.SenderLabel
	if label == "" {
		label = DefaultSenderLabel
	}

	return api.Payload{
		Destination: rd.Destination,
		Icon:        e.Icon,
		SenderLabel: label + " " + now().Format(senderStampLayout),
		Headline:    ResolveName(r, e) + "の口座に新しく入金がありました！",
		Lines: []string{
			"入金日：" + r.Date,
			"金額：" + r.Amount,
			"内容：" + r.Contents,
		},
	}
}
