package monitor

import (
	"context"
	"fmt"
	"net/http"

	"github.com/HerbHall/tracelens/internal/perf/host"
	"github.com/HerbHall/tracelens/internal/perf/reporter"
	"github.com/HerbHall/tracelens/internal/plugin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin     = (*Module)(nil)
	_ plugin.Reloadable = (*Module)(nil)
)

// ModuleOptions supplies the module's external collaborators.
type ModuleOptions struct {
	Host host.Platform
	// Registerer receives the Prometheus reporter's gauges when the
	// prometheus key is enabled.
	Registerer prometheus.Registerer
	HTTPClient *http.Client
}

// Module adapts a Monitor to the plugin lifecycle and exposes its HTTP API.
type Module struct {
	opts    ModuleOptions
	logger  *zap.Logger
	monitor *Monitor
}

// NewModule creates the perf module. The Monitor is built in Init.
func NewModule(opts ModuleOptions) *Module {
	return &Module{opts: opts, logger: zap.NewNop()}
}

func (m *Module) Name() string    { return "perf" }
func (m *Module) Version() string { return "0.1.0" }

// Monitor returns the monitor built by Init, or nil before Init.
func (m *Module) Monitor() *Monitor { return m.monitor }

func (m *Module) Init(config *viper.Viper, logger *zap.Logger) error {
	m.logger = logger

	cfg, err := decodeConfig(config)
	if err != nil {
		return fmt.Errorf("perf: decode config: %w", err)
	}
	m.monitor = New(cfg, Options{
		Logger:     logger,
		Host:       m.opts.Host,
		HTTPClient: m.opts.HTTPClient,
	})

	if broker := config.GetString("mqtt.broker"); broker != "" {
		mc := reporter.MQTTConfig{
			Broker:   broker,
			ClientID: config.GetString("mqtt.client_id"),
			Topic:    config.GetString("mqtt.topic"),
			Username: config.GetString("mqtt.username"),
			Password: config.GetString("mqtt.password"),
		}
		if mc.ClientID == "" {
			mc.ClientID = "tracelens-" + uuid.NewString()
		}
		r, err := reporter.NewMQTT(mc, logger.Named("mqtt"))
		if err != nil {
			return fmt.Errorf("perf: mqtt reporter: %w", err)
		}
		m.monitor.AddReporter(r)
	}

	if config.GetBool("prometheus") {
		if m.opts.Registerer == nil {
			m.logger.Warn("prometheus reporter enabled without a registerer, skipped")
		} else {
			r, err := reporter.NewPrometheus(m.opts.Registerer)
			if err != nil {
				return fmt.Errorf("perf: prometheus reporter: %w", err)
			}
			m.monitor.AddReporter(r)
		}
	}

	m.logger.Info("perf module initialized",
		zap.Strings("reporters", m.monitor.Reporters()),
	)
	return nil
}

// Reload applies a changed configuration to the running monitor.
func (m *Module) Reload(config *viper.Viper) error {
	cfg, err := decodeConfig(config)
	if err != nil {
		return fmt.Errorf("perf: decode config: %w", err)
	}
	m.monitor.UpdateConfig(PatchFrom(cfg))
	return nil
}

// decodeConfig overlays config onto DefaultConfig.
func decodeConfig(config *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalized(), nil
}

func (m *Module) Start(_ context.Context) error {
	m.monitor.Init()
	return nil
}

func (m *Module) Stop() error {
	m.monitor.Destroy()
	m.logger.Info("perf module stopped")
	return nil
}
