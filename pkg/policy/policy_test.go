package policy

import (
	"testing"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/master"
)

func TestPolicy_ShouldNotify(t *testing.T) {
	registry := master.NewRegistry(
		api.AccountMasterEntry{Account: "MAIN", SubAccount: "SUB", NotifyEnabled: true},
		api.AccountMasterEntry{Account: "CARD", SubAccount: "SUB", NotifyEnabled: false},
	)
	p := New(registry, "")

	base := api.DetailRecord{Date: "2024/01/10", Contents: "振込ABC入金", Amount: "10,000", Account: "MAIN", SubAccount: "SUB"}

	tests := []struct {
		name   string
		mutate func(r *api.DetailRecord)
		want   bool
	}{
		{"inflow transfer", func(*api.DetailRecord) {}, true},
		{"outflow", func(r *api.DetailRecord) { r.Amount = "-10,000" }, false},
		{"not a transfer", func(r *api.DetailRecord) { r.Contents = "利息" }, false},
		{"marker not at start", func(r *api.DetailRecord) { r.Contents = "ABC振込" }, false},
		{"disabled account", func(r *api.DetailRecord) { r.Account = "CARD" }, false},
		{"watched account as substring", func(r *api.DetailRecord) { r.Account = "MAIN BANK" }, true},
		{"unknown account", func(r *api.DetailRecord) { r.Account = "OTHER" }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := base
			tc.mutate(&r)
			if got := p.ShouldNotify(r); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
			// Pure: same answer on a second call.
			if again := p.ShouldNotify(r); again != tc.want {
				t.Errorf("second call: got %v, want %v", again, tc.want)
			}
		})
	}
}

func TestPolicy_CustomMarker(t *testing.T) {
	registry := master.NewRegistry(api.AccountMasterEntry{Account: "MAIN", NotifyEnabled: true})
	p := New(registry, "TRANSFER")

	r := api.DetailRecord{Contents: "TRANSFER from ACME", Amount: "500", Account: "MAIN"}
	if !p.ShouldNotify(r) {
		t.Errorf("custom marker not honoured")
	}
}
