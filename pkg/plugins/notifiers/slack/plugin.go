// Package slack provides a plugin wrapper for the Slack notifier.
package slack

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	slacknotifier "github.com/ArionMiles/paynotify/pkg/notifier/slack"
)

// Plugin implements plugins.NotifierPlugin for Slack.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "slack"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Post deposit notifications to a Slack channel"
}

// RequiredScopes returns nil; Slack uses its own bot token.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// NewNotifier creates the Slack notifier.
func (p *Plugin) NewNotifier(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error) {
	n, err := slacknotifier.New(slacknotifier.Config{Token: cfg.SlackBotToken}, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

var _ plugins.NotifierPlugin = (*Plugin)(nil)
