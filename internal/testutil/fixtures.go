package testutil

import (
	"time"

	"github.com/HerbHall/tracelens/pkg/models"
)

// NewMetrics returns PerformanceMetrics that pass every check under the
// default thresholds. Override individual fields with options.
func NewMetrics(opts ...func(*models.PerformanceMetrics)) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		Render:      models.RenderMetrics{FPS: 60, FrameTime: 1000.0 / 60},
		Load:        models.LoadMetrics{PageLoadTime: 1200, FirstContentfulPaint: 400, LargestContentfulPaint: 900},
		Memory:      models.MemoryMetrics{UsedJSHeapSize: 40, TotalJSHeapSize: 64, JSHeapSizeLimit: 512, MemoryUsage: 7.81},
		Network:     models.NetworkMetrics{RequestCount: 10, SuccessCount: 10, AvgRequestTime: 35, CacheHitCount: 8, CacheHitRate: 80},
		Interaction: models.InteractionMetrics{ClickResponseTime: 16, ScrollFPS: 60, InputDelay: 8},
		Timestamp:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		URL:         "app://test",
		UserAgent:   "tracelens-test",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithFPS sets the render frame rate.
func WithFPS(fps float64) func(*models.PerformanceMetrics) {
	return func(m *models.PerformanceMetrics) { m.Render.FPS = fps }
}

// WithPageLoadTime sets the page load time in ms.
func WithPageLoadTime(ms float64) func(*models.PerformanceMetrics) {
	return func(m *models.PerformanceMetrics) { m.Load.PageLoadTime = ms }
}

// WithMemoryUsage sets the heap usage percentage.
func WithMemoryUsage(pct float64) func(*models.PerformanceMetrics) {
	return func(m *models.PerformanceMetrics) { m.Memory.MemoryUsage = pct }
}

// WithURL sets the origin URL.
func WithURL(url string) func(*models.PerformanceMetrics) {
	return func(m *models.PerformanceMetrics) { m.URL = url }
}
