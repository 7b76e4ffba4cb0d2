package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
  "PAYNOTIFY_STORE": "csv",
  "SLACK_CHANNEL_ID": "C-FILE",
  "SLACK_BOT_TOKEN": "xoxb-file",
  "PASS_TIMEOUT": "30s"
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SLACK_CHANNEL_ID", "C-ENV")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Store != "csv" {
		t.Errorf("store: got %q, want csv", cfg.Store)
	}
	if cfg.SlackChannelID != "C-ENV" {
		t.Errorf("channel: got %q, want C-ENV", cfg.SlackChannelID)
	}
	if cfg.SlackBotToken != "xoxb-file" {
		t.Errorf("token: got %q, want xoxb-file", cfg.SlackBotToken)
	}
	if cfg.PassTimeout != 30*time.Second {
		t.Errorf("pass timeout: got %v, want 30s", cfg.PassTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("brokers: got %v", cfg.KafkaBrokers)
	}
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "k1:9092", []string{"k1:9092"}},
		{"comma separated", "k1:9092,k2:9092", []string{"k1:9092", "k2:9092"}},
		{"spaces and empties", " k1:9092 , ,k2:9092,", []string{"k1:9092", "k2:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KAFKA_BROKERS", tt.value)

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if strings.Join(cfg.KafkaBrokers, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %q, want %q", cfg.KafkaBrokers, tt.want)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"notifier", cfg.Notifier, DefaultNotifier},
		{"ledger name", cfg.GSheetsLedgerName, DefaultLedgerName},
		{"master name", cfg.GSheetsMasterName, DefaultMasterName},
		{"token file", cfg.TokenFile, TokenFile},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.PassTimeout != DefaultPassTimeout {
		t.Errorf("pass timeout: got %v, want %v", cfg.PassTimeout, DefaultPassTimeout)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
}

func validConfig() Config {
	c := Config{
		MFBaseURL:       "https://mf.example.com",
		MFLoginID:       "id",
		MFLoginPassword: "pw",
		GSheetsID:       "sheet",
		SlackBotToken:   "xoxb",
		SlackChannelID:  "C1",
	}
	c.ApplyDefaults()
	return c
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		flow    Flow
		mutate  func(*Config)
		wantErr string
	}{
		{name: "complete", flow: FlowNotify, mutate: func(*Config) {}},
		{name: "missing token", flow: FlowNotify, mutate: func(c *Config) { c.SlackBotToken = "" }, wantErr: "SLACK_BOT_TOKEN"},
		{name: "token not needed for sync", flow: FlowSyncMasters, mutate: func(c *Config) { c.SlackBotToken = "" }},
		{name: "store not needed for refresh", flow: FlowBulkRefresh, mutate: func(c *Config) { c.GSheetsID = "" }},
		{name: "missing sheet", flow: FlowSyncMasters, mutate: func(c *Config) { c.GSheetsID = "" }, wantErr: "GSHEETS_ID"},
		{name: "missing login", flow: FlowBulkRefresh, mutate: func(c *Config) { c.MFLoginID = "" }, wantErr: "MF_LOGIN_ID"},
		{name: "file source", flow: FlowNotify, mutate: func(c *Config) {
			c.MFSource = "file"
			c.MFBaseURL = ""
		}, wantErr: "MF_TRANSACTIONS_FILE"},
		{name: "kafka brokers", flow: FlowNotify, mutate: func(c *Config) { c.Notifier = "kafka" }, wantErr: "KAFKA_BROKERS"},
		{name: "bad timezone", flow: FlowNotify, mutate: func(c *Config) { c.Timezone = "Nowhere/City" }, wantErr: "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate(tt.flow)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Destination(t *testing.T) {
	c := validConfig()
	if got := c.Destination(); got != "C1" {
		t.Errorf("slack: got %q, want C1", got)
	}
	c.Notifier = "gmail"
	c.GmailTo = "me@example.com"
	if got := c.Destination(); got != "me@example.com" {
		t.Errorf("gmail: got %q", got)
	}
	c.NotifyDestination = "override"
	if got := c.Destination(); got != "override" {
		t.Errorf("override: got %q", got)
	}
}
