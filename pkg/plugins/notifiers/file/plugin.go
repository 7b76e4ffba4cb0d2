// Package file provides a plugin wrapper for the JSON-lines file notifier.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	filenotifier "github.com/ArionMiles/paynotify/pkg/notifier/file"
)

// Plugin implements plugins.NotifierPlugin for dry runs.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "file"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Append notifications to a local JSON-lines file (dry run)"
}

// RequiredScopes returns nil.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// NewNotifier creates the file notifier.
func (p *Plugin) NewNotifier(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.NotifyFile), 0o700); err != nil {
		return nil, fmt.Errorf("creating notify file directory: %w", err)
	}
	n, err := filenotifier.New(filenotifier.Config{FilePath: cfg.NotifyFile}, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

var _ plugins.NotifierPlugin = (*Plugin)(nil)
