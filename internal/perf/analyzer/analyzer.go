// Package analyzer scores a performance snapshot against thresholds.
package analyzer

import (
	"fmt"
	"sync"

	"github.com/HerbHall/tracelens/pkg/models"
)

// Thresholds are the limits the analyzer scores against.
type Thresholds struct {
	// FPS is the minimum acceptable frame rate.
	FPS float64 `mapstructure:"fps" json:"fps"`
	// MemoryUsage is the maximum heap usage percentage.
	MemoryUsage float64 `mapstructure:"memory_usage" json:"memory_usage"`
	// LongTask is the maximum average long task duration in ms.
	LongTask float64 `mapstructure:"long_task" json:"long_task"`
	// PageLoadTime is the maximum page load time in ms.
	PageLoadTime float64 `mapstructure:"page_load_time" json:"page_load_time"`
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FPS:          55,
		MemoryUsage:  80,
		LongTask:     50,
		PageLoadTime: 3000,
	}
}

// ThresholdsPatch is a partial threshold update. Nil fields are unchanged.
type ThresholdsPatch struct {
	FPS          *float64 `json:"fps,omitempty"`
	MemoryUsage  *float64 `json:"memory_usage,omitempty"`
	LongTask     *float64 `json:"long_task,omitempty"`
	PageLoadTime *float64 `json:"page_load_time,omitempty"`
}

// Empty reports whether p changes nothing.
func (p ThresholdsPatch) Empty() bool {
	return p.FPS == nil && p.MemoryUsage == nil && p.LongTask == nil && p.PageLoadTime == nil
}

// Apply returns t with the fields set in p replaced.
func (t Thresholds) Apply(p ThresholdsPatch) Thresholds {
	if p.FPS != nil {
		t.FPS = *p.FPS
	}
	if p.MemoryUsage != nil {
		t.MemoryUsage = *p.MemoryUsage
	}
	if p.LongTask != nil {
		t.LongTask = *p.LongTask
	}
	if p.PageLoadTime != nil {
		t.PageLoadTime = *p.PageLoadTime
	}
	return t
}

// Fixed limits for checks without a configurable threshold.
const (
	maxFirstContentfulPaint = 1000 // ms
	maxErrorRate            = 5    // percent
	minCacheHitRate         = 50   // percent
	maxClickResponse        = 100  // ms
	maxInputDelay           = 50   // ms
)

// Deductions per failed check.
const (
	penaltyFPS          = 20
	penaltyLongTask     = 15
	penaltyPageLoad     = 20
	penaltyFCP          = 10
	penaltyMemory       = 15
	penaltyErrorRate    = 10
	penaltyCacheHitRate = 5
	penaltyClick        = 5
	penaltyInputDelay   = 5
)

// Analyzer holds the current thresholds. It is safe for concurrent use.
type Analyzer struct {
	mu         sync.RWMutex
	thresholds Thresholds
}

// New creates an Analyzer with t.
func New(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Thresholds returns the current thresholds.
func (a *Analyzer) Thresholds() Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

// UpdateThresholds merges p into the current thresholds.
func (a *Analyzer) UpdateThresholds(p ThresholdsPatch) Thresholds {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = a.thresholds.Apply(p)
	return a.thresholds
}

// Analyze scores m against the current thresholds.
func (a *Analyzer) Analyze(m models.PerformanceMetrics) models.PerformanceAnalysis {
	return AnalyzeWith(m, a.Thresholds())
}

// AnalyzeWith scores m against t. It does not modify m.
func AnalyzeWith(m models.PerformanceMetrics, t Thresholds) models.PerformanceAnalysis {
	r := report{score: 100, issues: []string{}, suggestions: []string{}}

	if m.Render.FPS < t.FPS {
		r.fail(penaltyFPS,
			fmt.Sprintf("Low frame rate: %.0f FPS (threshold %.0f)", m.Render.FPS, t.FPS),
			"Reduce work per frame: batch UI updates and move heavy computation off the render path")
	}

	if m.Render.LongTaskCount > 0 {
		avg := m.Render.LongTaskDuration / float64(m.Render.LongTaskCount)
		if avg > t.LongTask {
			r.fail(penaltyLongTask,
				fmt.Sprintf("Long tasks averaging %.0fms across %d tasks (threshold %.0fms)", avg, m.Render.LongTaskCount, t.LongTask),
				"Split long-running work into smaller chunks or move it to background workers")
		}
	}

	if m.Load.PageLoadTime > t.PageLoadTime {
		r.fail(penaltyPageLoad,
			fmt.Sprintf("Slow page load: %.0fms (threshold %.0fms)", m.Load.PageLoadTime, t.PageLoadTime),
			"Reduce the initial payload and lazy-load non-critical resources")
	}

	if m.Load.FirstContentfulPaint > maxFirstContentfulPaint {
		r.fail(penaltyFCP,
			fmt.Sprintf("Slow first contentful paint: %.0fms", m.Load.FirstContentfulPaint),
			"Prioritize critical rendering resources and defer non-essential scripts")
	}

	if m.Memory.MemoryUsage > t.MemoryUsage {
		r.fail(penaltyMemory,
			fmt.Sprintf("High memory usage: %.1f%% (threshold %.0f%%)", m.Memory.MemoryUsage, t.MemoryUsage),
			"Release unused references and caches, and check long-lived objects for leaks")
	}

	n := m.Network
	if n.RequestCount > 0 {
		errorRate := float64(n.ErrorCount) / float64(n.RequestCount) * 100
		if errorRate > maxErrorRate {
			r.fail(penaltyErrorRate,
				fmt.Sprintf("High network error rate: %.1f%%", errorRate),
				"Check failing endpoints and handle unreliable requests")
		}
	}
	// With no requests the hit rate is 0 and still counts as low.
	if n.CacheHitRate < minCacheHitRate {
		r.fail(penaltyCacheHitRate,
			fmt.Sprintf("Low cache hit rate: %.1f%%", n.CacheHitRate),
			"Set cache headers on static assets and reuse responses where possible")
	}

	if m.Interaction.ClickResponseTime > maxClickResponse {
		r.fail(penaltyClick,
			fmt.Sprintf("Slow click response: %.0fms", m.Interaction.ClickResponseTime),
			"Keep click handlers light and defer non-urgent work")
	}

	if m.Interaction.InputDelay > maxInputDelay {
		r.fail(penaltyInputDelay,
			fmt.Sprintf("High input delay: %.0fms", m.Interaction.InputDelay),
			"Avoid blocking the main loop while handling input")
	}

	score := max(r.score, 0)
	return models.PerformanceAnalysis{
		Score:       score,
		Level:       levelFor(score),
		Issues:      r.issues,
		Suggestions: r.suggestions,
		Metrics:     m,
	}
}

type report struct {
	score       int
	issues      []string
	suggestions []string
}

func (r *report) fail(penalty int, issue, suggestion string) {
	r.score -= penalty
	r.issues = append(r.issues, issue)
	r.suggestions = append(r.suggestions, suggestion)
}

func levelFor(score int) models.PerformanceLevel {
	switch {
	case score >= 90:
		return models.PerformanceExcellent
	case score >= 70:
		return models.PerformanceGood
	case score >= 50:
		return models.PerformanceFair
	default:
		return models.PerformancePoor
	}
}
