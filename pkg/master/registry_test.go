package master

import (
	"context"
	"errors"
	"testing"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/store/memory"
)

func TestRegistry_FindMatch(t *testing.T) {
	r := NewRegistry(
		api.AccountMasterEntry{Account: "MAIN BANK", SubAccount: "普通 預金", Alias: "first"},
		api.AccountMasterEntry{Account: "MAINBANK", SubAccount: "普通預金", Alias: "second"},
		api.AccountMasterEntry{Account: "OTHER", SubAccount: "SUB"},
	)

	tests := []struct {
		name       string
		account    string
		subAccount string
		wantOK     bool
		wantAlias  string
	}{
		{"whitespace ignored, first wins", "MAINBANK", "普通預金", true, "first"},
		{"query whitespace ignored", " MAIN\tBANK ", "普通　預金", true, "first"},
		{"sub-account must match", "OTHER", "SUB2", false, ""},
		{"no substring matching", "OTH", "SUB", false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, ok := r.FindMatch(tc.account, tc.subAccount)
			if ok != tc.wantOK {
				t.Fatalf("ok: got %v, want %v", ok, tc.wantOK)
			}
			if e.Alias != tc.wantAlias {
				t.Errorf("alias: got %q, want %q", e.Alias, tc.wantAlias)
			}
		})
	}
}

func TestRegistry_IsNotifyEligible(t *testing.T) {
	r := NewRegistry(
		api.AccountMasterEntry{Account: "BANK", SubAccount: "A", NotifyEnabled: true},
		api.AccountMasterEntry{Account: "CARD", SubAccount: "B", NotifyEnabled: false},
	)

	tests := []struct {
		account string
		want    bool
	}{
		{"BANK", true},
		{"MEGA BANK TOKYO", true},
		{"CARD", false},
		{"BAN", false},
	}

	for _, tc := range tests {
		t.Run(tc.account, func(t *testing.T) {
			if got := r.IsNotifyEligible(tc.account); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLoad_ShortRows(t *testing.T) {
	store := memory.New(
		[]string{"BANK", "A", "Alias", ":bank:", "ON"},
		[]string{"CARD", "B"},
	)

	r, err := Load(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	want := api.AccountMasterEntry{Account: "BANK", SubAccount: "A", Alias: "Alias", Icon: ":bank:", NotifyEnabled: true}
	if entries[0] != want {
		t.Errorf("entry 0: got %+v, want %+v", entries[0], want)
	}
	if entries[1].NotifyEnabled || entries[1].Alias != "" {
		t.Errorf("entry 1: got %+v, want disabled with empty alias", entries[1])
	}
}

func TestRegistry_Sync(t *testing.T) {
	store := memory.New(
		[]string{"BANK", "A", "My Bank", ":bank:", "ON"},
	)
	r, err := Load(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	listings := []api.AccountListing{
		{Account: "BANK", SubAccounts: []string{"A", "B"}},
		{Account: "CARD", SubAccounts: []string{"X", "X"}},
	}

	added, err := r.Sync(context.Background(), listings)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("added: got %d, want 2", len(added))
	}
	if store.Appends() != 1 {
		t.Errorf("appends: got %d, want 1", store.Appends())
	}

	rows, _ := store.ReadRows(context.Background())
	want := [][]string{
		{"BANK", "A", "My Bank", ":bank:", "ON"},
		{"BANK", "B", "", "", "OFF"},
		{"CARD", "X", "", "", "OFF"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows: got %d, want %d", len(rows), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d: got %q, want %q", i, j, rows[i][j], want[i][j])
			}
		}
	}

	// Second run finds nothing new and does not write.
	added, err = r.Sync(context.Background(), listings)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(added) != 0 || store.Appends() != 1 {
		t.Errorf("second sync: added %d, appends %d; want 0 and 1", len(added), store.Appends())
	}
}

func TestRegistry_SyncWriteFailure(t *testing.T) {
	store := memory.New()
	r, err := Load(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	store.AppendErr = errors.New("quota")

	_, err = r.Sync(context.Background(), []api.AccountListing{{Account: "BANK", SubAccounts: []string{"A"}}})
	if !errors.Is(err, api.ErrStoreWrite) {
		t.Fatalf("error: got %v, want ErrStoreWrite", err)
	}
	if len(r.Entries()) != 0 {
		t.Errorf("failed sync left %d entries in memory", len(r.Entries()))
	}
}
