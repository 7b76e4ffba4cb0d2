// Package builtin registers the store and notifier plugins shipped with paynotify.
package builtin

import (
	"github.com/ArionMiles/paynotify/internal/plugins"
	filenotifier "github.com/ArionMiles/paynotify/pkg/plugins/notifiers/file"
	gmailnotifier "github.com/ArionMiles/paynotify/pkg/plugins/notifiers/gmail"
	kafkanotifier "github.com/ArionMiles/paynotify/pkg/plugins/notifiers/kafka"
	slacknotifier "github.com/ArionMiles/paynotify/pkg/plugins/notifiers/slack"
	csvstore "github.com/ArionMiles/paynotify/pkg/plugins/stores/csv"
	postgresstore "github.com/ArionMiles/paynotify/pkg/plugins/stores/postgres"
	sheetsstore "github.com/ArionMiles/paynotify/pkg/plugins/stores/sheets"
)

// Registry returns a registry holding every built-in plugin.
func Registry() (*plugins.Registry, error) {
	r := plugins.NewRegistry()

	for _, p := range []plugins.StorePlugin{
		&sheetsstore.Plugin{},
		&postgresstore.Plugin{},
		&csvstore.Plugin{},
	} {
		if err := r.RegisterStore(p); err != nil {
			return nil, err
		}
	}

	for _, p := range []plugins.NotifierPlugin{
		&slacknotifier.Plugin{},
		&gmailnotifier.Plugin{},
		&kafkanotifier.Plugin{},
		&filenotifier.Plugin{},
	} {
		if err := r.RegisterNotifier(p); err != nil {
			return nil, err
		}
	}

	return r, nil
}
