package logcapture

import (
	"context"

	"github.com/HerbHall/tracelens/internal/plugin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin     = (*Module)(nil)
	_ plugin.Reloadable = (*Module)(nil)
)

const defaultStreamBuffer = 256

// Module adapts a Service to the plugin lifecycle and exposes its HTTP API.
type Module struct {
	svc          *Service
	logger       *zap.Logger
	streamBuffer int
}

// NewModule wraps svc. The service itself is owned by the caller.
func NewModule(svc *Service) *Module {
	return &Module{svc: svc, logger: zap.NewNop(), streamBuffer: defaultStreamBuffer}
}

func (m *Module) Name() string    { return "logcapture" }
func (m *Module) Version() string { return "0.1.0" }

// Service returns the wrapped service.
func (m *Module) Service() *Service { return m.svc }

func (m *Module) Init(config *viper.Viper, logger *zap.Logger) error {
	m.logger = logger
	m.apply(config)
	m.logger.Info("logcapture module initialized",
		zap.Int("max_logs", m.svc.MaxLogs()),
	)
	return nil
}

// Reload applies max_logs and pattern changes without restarting capture.
func (m *Module) Reload(config *viper.Viper) error {
	m.apply(config)
	m.logger.Info("logcapture configuration reloaded", zap.Int("max_logs", m.svc.MaxLogs()))
	return nil
}

func (m *Module) apply(config *viper.Viper) {
	if config.IsSet("max_logs") {
		m.svc.SetMaxLogs(config.GetInt("max_logs"))
	}
	if config.IsSet("allow_patterns") || config.IsSet("deny_patterns") {
		allow := DefaultAllowPatterns
		if config.IsSet("allow_patterns") {
			allow = config.GetStringSlice("allow_patterns")
		}
		deny := DefaultDenyPatterns
		if config.IsSet("deny_patterns") {
			deny = config.GetStringSlice("deny_patterns")
		}
		m.svc.SetPatterns(allow, deny)
	}
	if n := config.GetInt("stream_buffer"); n > 0 {
		m.streamBuffer = n
	}
}

func (m *Module) Start(_ context.Context) error {
	m.svc.Start()
	m.logger.Info("logcapture module started")
	return nil
}

func (m *Module) Stop() error {
	m.svc.Stop()
	m.logger.Info("logcapture module stopped")
	return nil
}
