// Package plugins provides a plugin registry for table stores and notifiers.
package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/ArionMiles/paynotify/pkg/api"
	"github.com/ArionMiles/paynotify/pkg/config"
)

// Tables is the pair of tables a pass works on.
type Tables struct {
	Ledger api.TableStore
	Master api.TableStore
	// Close releases the backend. Never nil once returned by a plugin.
	Close func()
}

// StorePlugin builds the ledger and account master tables of one backend.
type StorePlugin interface {
	// Name returns the value of PAYNOTIFY_STORE selecting this plugin.
	Name() string
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	NewTables(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (*Tables, error)
}

// NotifierPlugin builds one notification transport.
type NotifierPlugin interface {
	// Name returns the value of PAYNOTIFY_NOTIFIER selecting this plugin.
	Name() string
	Description() string
	// RequiredScopes returns the OAuth scopes needed by this plugin.
	RequiredScopes() []string
	NewNotifier(ctx context.Context, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error)
}

// Registry manages available store and notifier plugins.
type Registry struct {
	stores    map[string]StorePlugin
	notifiers map[string]NotifierPlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		stores:    make(map[string]StorePlugin),
		notifiers: make(map[string]NotifierPlugin),
	}
}

// RegisterStore registers a store plugin.
func (r *Registry) RegisterStore(plugin StorePlugin) error {
	name := plugin.Name()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("store plugin %q already registered", name)
	}
	r.stores[name] = plugin
	return nil
}

// RegisterNotifier registers a notifier plugin.
func (r *Registry) RegisterNotifier(plugin NotifierPlugin) error {
	name := plugin.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier plugin %q already registered", name)
	}
	r.notifiers[name] = plugin
	return nil
}

// GetStore returns a store plugin by name.
func (r *Registry) GetStore(name string) (StorePlugin, error) {
	plugin, exists := r.stores[name]
	if !exists {
		return nil, fmt.Errorf("store plugin %q not found", name)
	}
	return plugin, nil
}

// GetNotifier returns a notifier plugin by name.
func (r *Registry) GetNotifier(name string) (NotifierPlugin, error) {
	plugin, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier plugin %q not found", name)
	}
	return plugin, nil
}

// ListStores returns the registered store plugins sorted by name.
func (r *Registry) ListStores() []StorePlugin {
	plugins := make([]StorePlugin, 0, len(r.stores))
	for _, plugin := range r.stores {
		plugins = append(plugins, plugin)
	}
	slices.SortFunc(plugins, func(a, b StorePlugin) int { return strings.Compare(a.Name(), b.Name()) })
	return plugins
}

// ListNotifiers returns the registered notifier plugins sorted by name.
func (r *Registry) ListNotifiers() []NotifierPlugin {
	plugins := make([]NotifierPlugin, 0, len(r.notifiers))
	for _, plugin := range r.notifiers {
		plugins = append(plugins, plugin)
	}
	slices.SortFunc(plugins, func(a, b NotifierPlugin) int { return strings.Compare(a.Name(), b.Name()) })
	return plugins
}

// Scopes returns the sorted union of OAuth scopes for the named store and notifier.
// An empty notifier name is skipped.
func (r *Registry) Scopes(storeName, notifierName string) ([]string, error) {
	store, err := r.GetStore(storeName)
	if err != nil {
		return nil, err
	}

	scopeSet := make(map[string]struct{})
	for _, scope := range store.RequiredScopes() {
		scopeSet[scope] = struct{}{}
	}

	if notifierName != "" {
		notifier, err := r.GetNotifier(notifierName)
		if err != nil {
			return nil, err
		}
		for _, scope := range notifier.RequiredScopes() {
			scopeSet[scope] = struct{}{}
		}
	}

	scopes := make([]string, 0, len(scopeSet))
	for scope := range scopeSet {
		scopes = append(scopes, scope)
	}
	slices.Sort(scopes)
	return scopes, nil
}

// CreateTables builds the tables of the named store.
func (r *Registry) CreateTables(ctx context.Context, name string, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (*Tables, error) {
	plugin, err := r.GetStore(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewTables(ctx, httpClient, cfg, logger)
}

// CreateNotifier builds the named notifier.
func (r *Registry) CreateNotifier(ctx context.Context, name string, httpClient *http.Client, cfg *config.Config, logger *slog.Logger) (api.Notifier, error) {
	plugin, err := r.GetNotifier(name)
	if err != nil {
		return nil, err
	}
	return plugin.NewNotifier(ctx, httpClient, cfg, logger)
}
