package logcapture

import "github.com/prometheus/client_golang/prometheus"

// Compile-time interface guard.
var _ prometheus.Collector = (*statsCollector)(nil)

// statsCollector exports Service counters to Prometheus.
type statsCollector struct {
	svc      *Service
	retained *prometheus.Desc
	evicted  *prometheus.Desc
	dropped  *prometheus.Desc
	buffered *prometheus.Desc
	capacity *prometheus.Desc
}

// NewCollector returns a Prometheus collector reporting s's counters.
func NewCollector(s *Service) prometheus.Collector {
	return &statsCollector{
		svc: s,
		retained: prometheus.NewDesc("tracelens_logs_retained_total",
			"Log entries stored in the capture buffer.", nil, nil),
		evicted: prometheus.NewDesc("tracelens_logs_evicted_total",
			"Log entries evicted from the capture buffer on overflow.", nil, nil),
		dropped: prometheus.NewDesc("tracelens_logs_dropped_total",
			"Log entries rejected by the retention policy.", []string{"reason"}, nil),
		buffered: prometheus.NewDesc("tracelens_logs_buffered",
			"Log entries currently buffered.", nil, nil),
		capacity: prometheus.NewDesc("tracelens_logs_capacity",
			"Capture buffer capacity.", nil, nil),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.retained
	ch <- c.evicted
	ch <- c.dropped
	ch <- c.buffered
	ch <- c.capacity
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.svc.Stats()
	ch <- prometheus.MustNewConstMetric(c.retained, prometheus.CounterValue, float64(st.Retained))
	ch <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(st.Evicted))
	for _, reason := range []DropReason{DropDebug, DropDenied, DropUnmatched, DropFiltered} {
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue,
			float64(st.Dropped[reason]), string(reason))
	}
	ch <- prometheus.MustNewConstMetric(c.buffered, prometheus.GaugeValue, float64(st.Buffered))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity))
}
