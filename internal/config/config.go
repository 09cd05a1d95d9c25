// Package config loads tracelens configuration and wraps viper with
// nil-safe accessors.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/tracelens/internal/logcapture"
	"github.com/HerbHall/tracelens/internal/perf/analyzer"
	"github.com/HerbHall/tracelens/internal/perf/monitor"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TRACELENS_SERVER_PORT.
const EnvPrefix = "TRACELENS"

// Config wraps a viper instance. A Config built from nil returns zero
// values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Viper returns the wrapped instance, creating an empty one for a nil Config.
func (c *Config) Viper() *viper.Viper {
	if c.v == nil {
		c.v = viper.New()
	}
	return c.v
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetFloat64(key string) float64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the subtree at key. A missing subtree yields an empty
// Config, never nil.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// SetDefaults registers the built-in value of every recognized key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "7070")
	v.SetDefault("app.url", "app://main")
	v.SetDefault("app.frame_rate", 60)
	v.SetDefault("app.long_task_threshold", "50ms")

	v.SetDefault("plugins.logcapture.enabled", true)
	v.SetDefault("plugins.logcapture.max_logs", logcapture.DefaultMaxLogs)
	v.SetDefault("plugins.logcapture.allow_patterns", logcapture.DefaultAllowPatterns)
	v.SetDefault("plugins.logcapture.deny_patterns", logcapture.DefaultDenyPatterns)
	v.SetDefault("plugins.logcapture.stream_buffer", 256)

	d := monitor.DefaultConfig()
	t := analyzer.DefaultThresholds()
	v.SetDefault("plugins.perf.enabled", d.Enabled)
	v.SetDefault("plugins.perf.sample_rate", d.SampleRate)
	v.SetDefault("plugins.perf.report_interval", d.ReportInterval.String())
	v.SetDefault("plugins.perf.realtime_report", d.RealtimeReport)
	v.SetDefault("plugins.perf.report_url", d.ReportURL)
	v.SetDefault("plugins.perf.console_output", d.ConsoleOutput)
	v.SetDefault("plugins.perf.report_rate_limit", d.ReportRateLimit)
	v.SetDefault("plugins.perf.thresholds.fps", t.FPS)
	v.SetDefault("plugins.perf.thresholds.memory_usage", t.MemoryUsage)
	v.SetDefault("plugins.perf.thresholds.long_task", t.LongTask)
	v.SetDefault("plugins.perf.thresholds.page_load_time", t.PageLoadTime)
	v.SetDefault("plugins.perf.mqtt.topic", "tracelens/perf")
	v.SetDefault("plugins.perf.prometheus", true)
}

// Load builds a viper instance with defaults, environment overrides and,
// when path is non-empty, the YAML file at path. Without a path it looks
// for tracelens.yaml in the working directory and ignores its absence.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("tracelens")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
