// Package config loads paynotify settings from an optional JSON file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	kJson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults.
const (
	ClientSecretFile   = "data/client_secret.json"
	TokenFile          = "data/token.json"
	DefaultStore       = "sheets"
	DefaultNotifier    = "slack"
	DefaultSource      = "http"
	DefaultLedgerName  = "明細"
	DefaultMasterName  = "口座マスタ"
	DefaultCSVDir      = "data"
	DefaultNotifyFile  = "data/notifications.jsonl"
	DefaultPassTimeout = 5 * time.Minute
)

// Flow names one of the runnable passes.
type Flow string

// Runnable flows.
const (
	FlowNotify      Flow = "notify-now"
	FlowBulkRefresh Flow = "bulk-refresh"
	FlowSyncMasters Flow = "sync-masters"
)

// Config holds the application configuration.
// Every key can come from the JSON file or from the environment variable of the same name;
// the environment wins.
type Config struct {
	// Store selects the table backend: sheets, postgres, csv.
	// Environment variable: PAYNOTIFY_STORE
	Store string `koanf:"PAYNOTIFY_STORE"`

	// Notifier selects the transport: slack, gmail, kafka, file.
	// Environment variable: PAYNOTIFY_NOTIFIER
	Notifier string `koanf:"PAYNOTIFY_NOTIFIER"`

	// GSheetsID is the ID of the spreadsheet holding both tables.
	// Environment variable: GSHEETS_ID
	GSheetsID string `koanf:"GSHEETS_ID"`
	// Environment variable: GSHEETS_LEDGER_NAME
	GSheetsLedgerName string `koanf:"GSHEETS_LEDGER_NAME"`
	// Environment variable: GSHEETS_MASTER_NAME
	GSheetsMasterName string `koanf:"GSHEETS_MASTER_NAME"`

	PostgresHost     string `koanf:"POSTGRES_HOST"`
	PostgresPort     int    `koanf:"POSTGRES_PORT"`
	PostgresDB       string `koanf:"POSTGRES_DB"`
	PostgresUser     string `koanf:"POSTGRES_USER"`
	PostgresPassword string `koanf:"POSTGRES_PASSWORD"`
	PostgresSSLMode  string `koanf:"POSTGRES_SSLMODE"`

	// CSVDir holds ledger.csv and account_master.csv.
	// Environment variable: CSV_DIR
	CSVDir string `koanf:"CSV_DIR"`

	// Environment variable: SLACK_BOT_TOKEN
	SlackBotToken string `koanf:"SLACK_BOT_TOKEN"`
	// Environment variable: SLACK_CHANNEL_ID
	SlackChannelID string `koanf:"SLACK_CHANNEL_ID"`

	// GmailFrom is the sender address; GmailTo receives the notifications.
	GmailFrom string `koanf:"GMAIL_FROM"`
	GmailTo   string `koanf:"GMAIL_TO"`

	// KafkaBrokers is a comma-separated broker list.
	// Environment variable: KAFKA_BROKERS
	KafkaBrokers []string `koanf:"KAFKA_BROKERS"`
	// Environment variable: KAFKA_TOPIC
	KafkaTopic string `koanf:"KAFKA_TOPIC"`

	// NotifyFile is the JSON-lines output of the file notifier.
	// Environment variable: NOTIFY_FILE
	NotifyFile string `koanf:"NOTIFY_FILE"`

	// NotifyDestination overrides the notifier's default destination.
	// Environment variable: NOTIFY_DESTINATION
	NotifyDestination string `koanf:"NOTIFY_DESTINATION"`
	// Environment variable: NOTIFY_SENDER_LABEL
	NotifySenderLabel string `koanf:"NOTIFY_SENDER_LABEL"`

	// TransferMarker is the contents prefix of incoming transfers.
	// Environment variable: TRANSFER_MARKER
	TransferMarker string `koanf:"TRANSFER_MARKER"`
	// DateLayout is the Go layout of dates in the fetched feed.
	// Environment variable: DATE_LAYOUT
	DateLayout string `koanf:"DATE_LAYOUT"`
	// TimestampLayout formats the notifiedAt column.
	// Environment variable: TIMESTAMP_LAYOUT
	TimestampLayout string `koanf:"TIMESTAMP_LAYOUT"`
	// Timezone is an IANA zone name for notifiedAt. Empty means local time.
	// Environment variable: TIMEZONE
	Timezone string `koanf:"TIMEZONE"`

	// MFSource selects the upstream client: http or file.
	// Environment variable: MF_SOURCE
	MFSource           string `koanf:"MF_SOURCE"`
	MFBaseURL          string `koanf:"MF_BASE_URL"`
	MFLoginID          string `koanf:"MF_LOGIN_ID"`
	MFLoginPassword    string `koanf:"MF_LOGIN_PASSWORD"`
	MFTransactionsPath string `koanf:"MF_TRANSACTIONS_PATH"`
	MFAccountsPath     string `koanf:"MF_ACCOUNTS_PATH"`
	// MFTransactionsFile and MFAccountsFile feed the file source.
	MFTransactionsFile string `koanf:"MF_TRANSACTIONS_FILE"`
	MFAccountsFile     string `koanf:"MF_ACCOUNTS_FILE"`

	// Environment variable: CLIENT_SECRET_FILE
	ClientSecretFile string `koanf:"CLIENT_SECRET_FILE"`
	// Environment variable: TOKEN_FILE
	TokenFile string `koanf:"TOKEN_FILE"`

	// PassTimeout bounds one flow, e.g. "5m".
	// Environment variable: PASS_TIMEOUT
	PassTimeout time.Duration `koanf:"PASS_TIMEOUT"`
}

// Load reads the JSON file at path (skipped when path is empty or missing),
// overlays the environment and applies defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), kJson.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// listKeys are environment variables holding comma-separated lists.
var listKeys = map[string]bool{
	"KAFKA_BROKERS": true,
}

func envValue(key, value string) (string, any) {
	if !listKeys[key] {
		return key, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return key, items
}

// ApplyDefaults fills unset keys.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Store, DefaultStore)
	setDefault(&c.Notifier, DefaultNotifier)
	setDefault(&c.MFSource, DefaultSource)
	setDefault(&c.GSheetsLedgerName, DefaultLedgerName)
	setDefault(&c.GSheetsMasterName, DefaultMasterName)
	setDefault(&c.CSVDir, DefaultCSVDir)
	setDefault(&c.NotifyFile, DefaultNotifyFile)
	setDefault(&c.PostgresSSLMode, "disable")
	setDefault(&c.ClientSecretFile, ClientSecretFile)
	setDefault(&c.TokenFile, TokenFile)
	if c.PostgresPort == 0 {
		c.PostgresPort = 5432
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = DefaultPassTimeout
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks that everything the flow needs is set.
func (c *Config) Validate(flow Flow) error {
	var errs []error
	require := func(value, key string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	switch c.MFSource {
	case "http":
		require(c.MFBaseURL, "MF_BASE_URL")
		require(c.MFLoginID, "MF_LOGIN_ID")
		require(c.MFLoginPassword, "MF_LOGIN_PASSWORD")
	case "file":
		switch flow {
		case FlowNotify:
			require(c.MFTransactionsFile, "MF_TRANSACTIONS_FILE")
		case FlowSyncMasters:
			require(c.MFAccountsFile, "MF_ACCOUNTS_FILE")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MF_SOURCE %q", c.MFSource))
	}

	if flow == FlowBulkRefresh {
		return errors.Join(errs...)
	}

	switch c.Store {
	case "sheets":
		require(c.GSheetsID, "GSHEETS_ID")
	case "postgres":
		require(c.PostgresHost, "POSTGRES_HOST")
		require(c.PostgresDB, "POSTGRES_DB")
		require(c.PostgresUser, "POSTGRES_USER")
	case "csv":
		require(c.CSVDir, "CSV_DIR")
	}

	if flow == FlowNotify {
		switch c.Notifier {
		case "slack":
			require(c.SlackBotToken, "SLACK_BOT_TOKEN")
		case "gmail":
			require(c.GmailTo, "GMAIL_TO")
		case "kafka":
			if len(c.KafkaBrokers) == 0 {
				errs = append(errs, errors.New("KAFKA_BROKERS is required"))
			}
		}
		if c.Destination() == "" {
			errs = append(errs, fmt.Errorf("no destination for notifier %q (set NOTIFY_DESTINATION)", c.Notifier))
		}
		if _, err := c.Location(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Destination returns where notifications go for the configured notifier.
func (c *Config) Destination() string {
	if c.NotifyDestination != "" {
		return c.NotifyDestination
	}
	switch c.Notifier {
	case "slack":
		return c.SlackChannelID
	case "gmail":
		return c.GmailTo
	case "kafka":
		return c.KafkaTopic
	case "file":
		return c.NotifyFile
	}
	return ""
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
