package plugin

import (
	"context"
	"net/http"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Plugin defines the interface that every tracelens module implements.
type Plugin interface {
	// Name returns the plugin's unique identifier (e.g., "logcapture", "monitor").
	Name() string

	// Version returns the plugin's semantic version.
	Version() string

	// Init applies the plugin's configuration section and logger.
	Init(config *viper.Viper, logger *zap.Logger) error

	// Start begins the plugin's background operations.
	Start(ctx context.Context) error

	// Stop shuts the plugin down. Stop is only called for started plugins.
	Stop() error

	// Routes returns the HTTP routes this plugin exposes.
	Routes() []Route
}

// Reloadable is implemented by plugins that accept configuration changes at runtime.
type Reloadable interface {
	Reload(config *viper.Viper) error
}
