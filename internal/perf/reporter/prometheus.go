package reporter

import (
	"github.com/HerbHall/tracelens/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

var _ Reporter = (*Prometheus)(nil)

type gaugeDef struct {
	name  string
	help  string
	value func(models.PerformanceMetrics) float64
}

var gaugeDefs = []gaugeDef{
	{"render_fps", "Frames per second.", func(m models.PerformanceMetrics) float64 { return m.Render.FPS }},
	{"render_long_tasks", "Long tasks since the last reset.", func(m models.PerformanceMetrics) float64 { return float64(m.Render.LongTaskCount) }},
	{"render_long_task_duration_ms", "Summed long task duration since the last reset.", func(m models.PerformanceMetrics) float64 { return m.Render.LongTaskDuration }},
	{"load_page_load_ms", "Page load time.", func(m models.PerformanceMetrics) float64 { return m.Load.PageLoadTime }},
	{"load_first_contentful_paint_ms", "First contentful paint.", func(m models.PerformanceMetrics) float64 { return m.Load.FirstContentfulPaint }},
	{"memory_used_mb", "Used heap in megabytes.", func(m models.PerformanceMetrics) float64 { return m.Memory.UsedJSHeapSize }},
	{"memory_usage_percent", "Used heap as a percentage of the limit.", func(m models.PerformanceMetrics) float64 { return m.Memory.MemoryUsage }},
	{"network_requests", "Observed requests since the last reset.", func(m models.PerformanceMetrics) float64 { return float64(m.Network.RequestCount) }},
	{"network_errors", "Failed requests since the last reset.", func(m models.PerformanceMetrics) float64 { return float64(m.Network.ErrorCount) }},
	{"network_cache_hit_percent", "Cache hit rate.", func(m models.PerformanceMetrics) float64 { return m.Network.CacheHitRate }},
	{"interaction_click_response_ms", "Latest click response time.", func(m models.PerformanceMetrics) float64 { return m.Interaction.ClickResponseTime }},
	{"interaction_input_delay_ms", "Latest input delay.", func(m models.PerformanceMetrics) float64 { return m.Interaction.InputDelay }},
}

// Prometheus exposes the latest reported snapshot as gauges labelled by
// event type.
type Prometheus struct {
	gauges  []*prometheus.GaugeVec
	reports *prometheus.CounterVec
}

// NewPrometheus creates the gauges and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracelens",
			Subsystem: "perf",
			Name:      "reports_total",
			Help:      "Performance events reported.",
		}, []string{"type"}),
	}
	collectors := []prometheus.Collector{p.reports}
	for _, d := range gaugeDefs {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tracelens",
			Subsystem: "perf",
			Name:      d.name,
			Help:      d.help,
		}, []string{"type"})
		p.gauges = append(p.gauges, g)
		collectors = append(collectors, g)
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Name() string { return NamePrometheus }

func (p *Prometheus) Report(e models.PerformanceEvent) {
	typ := string(e.Type)
	for i, d := range gaugeDefs {
		p.gauges[i].WithLabelValues(typ).Set(d.value(e.Data))
	}
	p.reports.WithLabelValues(typ).Inc()
}
