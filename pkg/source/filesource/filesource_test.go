package filesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestClient_Fetch(t *testing.T) {
	dir := t.TempDir()
	txFile := filepath.Join(dir, "acts.html")
	acFile := filepath.Join(dir, "accounts.json")
	if err := os.WriteFile(txFile, []byte("<tr></tr>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(acFile, []byte(`[{"account":"MAIN","subAccount":["SUB"]}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	c := New(Config{TransactionsFile: txFile, AccountsFile: acFile}, nil)
	ctx := context.Background()

	if err := c.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	raw, err := c.FetchTransactions(ctx)
	if err != nil || raw != "<tr></tr>" {
		t.Errorf("FetchTransactions: got %q, %v", raw, err)
	}
	listings, err := c.FetchAccounts(ctx)
	if err != nil {
		t.Fatalf("FetchAccounts: %v", err)
	}
	if len(listings) != 1 || listings[0].SubAccounts[0] != "SUB" {
		t.Errorf("listings: got %+v", listings)
	}
}

func TestClient_Unconfigured(t *testing.T) {
	c := New(Config{}, nil)
	if _, err := c.FetchTransactions(context.Background()); err == nil {
		t.Error("expected error for missing transactions file")
	}
	if _, err := c.FetchAccounts(context.Background()); err == nil {
		t.Error("expected error for missing accounts file")
	}
}
