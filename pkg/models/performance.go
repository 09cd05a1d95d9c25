package models

import (
	"fmt"
	"strings"
	"time"
)

// EventType identifies what triggered a performance collection.
type EventType string

const (
	EventTypeRender      EventType = "render"
	EventTypeLoad        EventType = "load"
	EventTypeMemory      EventType = "memory"
	EventTypeNetwork     EventType = "network"
	EventTypeInteraction EventType = "interaction"
	EventTypeCustom      EventType = "custom"
	EventTypePeriodic    EventType = "periodic"
)

// EventTypes lists every event type.
var EventTypes = []EventType{
	EventTypeRender, EventTypeLoad, EventTypeMemory, EventTypeNetwork,
	EventTypeInteraction, EventTypeCustom, EventTypePeriodic,
}

// ParseEventType converts a case-insensitive name into an EventType.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EventTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// RenderMetrics describes rendering throughput. Durations are milliseconds.
type RenderMetrics struct {
	FPS              float64 `json:"fps"`
	FrameTime        float64 `json:"frame_time"`
	RepaintCount     int     `json:"repaint_count"`
	ReflowCount      int     `json:"reflow_count"`
	LongTaskCount    int     `json:"long_task_count"`
	LongTaskDuration float64 `json:"long_task_duration"`
}

// LoadMetrics describes page load milestones. Durations are milliseconds and
// are passed through from the host without clamping, so they may be negative
// when the host reports inconsistent timestamps.
type LoadMetrics struct {
	PageLoadTime           float64 `json:"page_load_time"`
	FirstContentfulPaint   float64 `json:"first_contentful_paint"`
	LargestContentfulPaint float64 `json:"largest_contentful_paint"`
	DNSTime                float64 `json:"dns_time"`
	TCPTime                float64 `json:"tcp_time"`
	SSLTime                float64 `json:"ssl_time"`
	TTFB                   float64 `json:"ttfb"`
	DOMReadyTime           float64 `json:"dom_ready_time"`
	ResourceLoadTime       float64 `json:"resource_load_time"`
}

// MemoryMetrics describes heap usage in megabytes.
type MemoryMetrics struct {
	UsedJSHeapSize  float64 `json:"used_heap_size"`
	TotalJSHeapSize float64 `json:"total_heap_size"`
	JSHeapSizeLimit float64 `json:"heap_size_limit"`
	MemoryUsage     float64 `json:"memory_usage"` // percent of limit
}

// NetworkMetrics aggregates observed resource requests.
type NetworkMetrics struct {
	RequestCount      int     `json:"request_count"`
	SuccessCount      int     `json:"success_count"`
	ErrorCount        int     `json:"error_count"`
	AvgRequestTime    float64 `json:"avg_request_time"`
	TotalTransferSize int64   `json:"total_transfer_size"`
	CacheHitCount     int     `json:"cache_hit_count"`
	CacheHitRate      float64 `json:"cache_hit_rate"` // percent
}

// InteractionMetrics describes input responsiveness.
type InteractionMetrics struct {
	ClickResponseTime float64 `json:"click_response_time"`
	ScrollFPS         float64 `json:"scroll_fps"`
	InputDelay        float64 `json:"input_delay"`
}

// PerformanceMetrics is a point-in-time snapshot of all metric groups.
type PerformanceMetrics struct {
	Render      RenderMetrics      `json:"render"`
	Load        LoadMetrics        `json:"load"`
	Memory      MemoryMetrics      `json:"memory"`
	Network     NetworkMetrics     `json:"network"`
	Interaction InteractionMetrics `json:"interaction"`
	Timestamp   time.Time          `json:"timestamp"`
	URL         string             `json:"url"`
	UserAgent   string             `json:"user_agent"`
}

// PerformanceEvent is the unit handed to reporters.
type PerformanceEvent struct {
	Type      EventType          `json:"type"`
	Data      PerformanceMetrics `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
	URL       string             `json:"url"`
}

// PerformanceLevel buckets an analysis score.
type PerformanceLevel string

const (
	PerformanceExcellent PerformanceLevel = "excellent"
	PerformanceGood      PerformanceLevel = "good"
	PerformanceFair      PerformanceLevel = "fair"
	PerformancePoor      PerformanceLevel = "poor"
)

// PerformanceAnalysis is a scored diagnosis of a metrics snapshot. It is
// derived on demand and never stored.
type PerformanceAnalysis struct {
	Score       int                `json:"score"`
	Level       PerformanceLevel   `json:"level"`
	Issues      []string           `json:"issues"`
	Suggestions []string           `json:"suggestions"`
	Metrics     PerformanceMetrics `json:"metrics"`
}
