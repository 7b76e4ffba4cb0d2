// Package gmail provides a plugin wrapper for the Gmail notifier.
package gmail

import (
	"context"
	"log/slog"
	"net/http"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	gmailnotifier "github.com/ArionMiles/paynotify/pkg/notifier/gmail"
)

// Plugin implements plugins.NotifierPlugin for Gmail.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "gmail"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Mail deposit notifications from the authorized Gmail account"
}

// RequiredScopes returns the OAuth scopes needed by this plugin.
func (p *Plugin) RequiredScopes() []string {
	return []string{gmailapi.GmailSendScope}
}

// NewNotifier creates the Gmail notifier.
func (p *Plugin) NewNotifier(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error) {
	n, err := gmailnotifier.New(ctx, httpClient, gmailnotifier.Config{From: cfg.GmailFrom}, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

var _ plugins.NotifierPlugin = (*Plugin)(nil)
