// Package kafka provides a plugin wrapper for the Kafka notifier.
package kafka

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ArionMiles/paynotify/internal/plugins"
	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
	kafkanotifier "github.com/ArionMiles/paynotify/pkg/notifier/kafka"
)

// Plugin implements plugins.NotifierPlugin for Kafka.
type Plugin struct{}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return "kafka"
}

// Description returns a human-readable description.
func (p *Plugin) Description() string {
	return "Publish deposit notifications as JSON events to a Kafka topic"
}

// RequiredScopes returns nil.
func (p *Plugin) RequiredScopes() []string {
	return nil
}

// NewNotifier creates the Kafka notifier. The caller closes it.
func (p *Plugin) NewNotifier(_ context.Context, _ *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error) {
	n, err := kafkanotifier.New(kafkanotifier.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

var _ plugins.NotifierPlugin = (*Plugin)(nil)
