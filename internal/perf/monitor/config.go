package monitor

import (
	"time"

	"github.com/HerbHall/tracelens/internal/perf/analyzer"
)

// Config controls sampling, periodic collection and reporter selection.
type Config struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// SampleRate is the probability in [0,1] that a collect call runs.
	SampleRate float64 `mapstructure:"sample_rate" json:"sample_rate"`
	// ReportInterval is the period of the collection timer. Zero disables it.
	ReportInterval time.Duration `mapstructure:"report_interval" json:"-"`
	// RealtimeReport hands every sampled snapshot to the reporters.
	RealtimeReport bool                `mapstructure:"realtime_report" json:"realtime_report"`
	Thresholds     analyzer.Thresholds `mapstructure:"thresholds" json:"thresholds"`
	// ReportURL enables the network reporter when set.
	ReportURL string `mapstructure:"report_url" json:"report_url"`
	// ConsoleOutput enables the console reporter.
	ConsoleOutput bool `mapstructure:"console_output" json:"console_output"`
	// ReportRateLimit caps network reports per second. Zero means no limit.
	ReportRateLimit float64 `mapstructure:"report_rate_limit" json:"report_rate_limit"`
}

// DefaultConfig returns the built-in monitor configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		SampleRate:     1,
		ReportInterval: 30 * time.Second,
		Thresholds:     analyzer.DefaultThresholds(),
		ConsoleOutput:  true,
	}
}

// ConfigPatch is a partial update. Nil fields are left unchanged.
type ConfigPatch struct {
	Enabled         *bool
	SampleRate      *float64
	ReportInterval  *time.Duration
	RealtimeReport  *bool
	Thresholds      analyzer.ThresholdsPatch
	ReportURL       *string
	ConsoleOutput   *bool
	ReportRateLimit *float64
}

// Apply returns c with the fields set in p replaced.
func (c Config) Apply(p ConfigPatch) Config {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.SampleRate != nil {
		c.SampleRate = *p.SampleRate
	}
	if p.ReportInterval != nil {
		c.ReportInterval = *p.ReportInterval
	}
	if p.RealtimeReport != nil {
		c.RealtimeReport = *p.RealtimeReport
	}
	c.Thresholds = c.Thresholds.Apply(p.Thresholds)
	if p.ReportURL != nil {
		c.ReportURL = *p.ReportURL
	}
	if p.ConsoleOutput != nil {
		c.ConsoleOutput = *p.ConsoleOutput
	}
	if p.ReportRateLimit != nil {
		c.ReportRateLimit = *p.ReportRateLimit
	}
	return c.normalized()
}

func (c Config) normalized() Config {
	c.SampleRate = min(max(c.SampleRate, 0), 1)
	c.ReportInterval = max(c.ReportInterval, 0)
	c.ReportRateLimit = max(c.ReportRateLimit, 0)
	return c
}

// PatchFrom builds a patch that sets every field to the value in c.
func PatchFrom(c Config) ConfigPatch {
	t := c.Thresholds
	return ConfigPatch{
		Enabled:        &c.Enabled,
		SampleRate:     &c.SampleRate,
		ReportInterval: &c.ReportInterval,
		RealtimeReport: &c.RealtimeReport,
		Thresholds: analyzer.ThresholdsPatch{
			FPS:          &t.FPS,
			MemoryUsage:  &t.MemoryUsage,
			LongTask:     &t.LongTask,
			PageLoadTime: &t.PageLoadTime,
		},
		ReportURL:       &c.ReportURL,
		ConsoleOutput:   &c.ConsoleOutput,
		ReportRateLimit: &c.ReportRateLimit,
	}
}
