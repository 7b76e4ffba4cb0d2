// Command paynotify reconciles the accounting feed against the ledger and
// notifies new deposits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ArionMiles/paynotify/pkg/config"
	"github.com/ArionMiles/paynotify/pkg/logging"
)

const usage = `Usage: paynotify <command> [flags]

Commands:
  notify-now     fetch transactions, record new ones and notify deposits
  bulk-refresh   ask the accounting service to refresh every linked account
  sync-masters   add newly listed accounts to the account master (disabled)
  setup          authorize Google access for the configured plugins
  status         check configuration, credentials and token

Flags:
  -config path   JSON config file (default config.json); environment overrides it
`

func main() {
	logger := logging.Setup(logging.DefaultConfig())

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "config.json", "path to the JSON config file")
	force := fs.Bool("force", false, "setup: re-run authorization even if a token exists")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	var err error
	switch cmd {
	case string(config.FlowNotify), string(config.FlowBulkRefresh), string(config.FlowSyncMasters):
		err = runFlow(logger, *configPath, config.Flow(cmd))
	case "setup":
		err = runSetup(logger, *configPath, *force)
	case "status":
		err = runStatus(*configPath)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", slog.String("command", cmd), slog.Any("error", err))
		os.Exit(1)
	}
}
