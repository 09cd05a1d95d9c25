package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/HerbHall/tracelens/internal/perf/analyzer"
	"github.com/HerbHall/tracelens/internal/plugin"
	"github.com/HerbHall/tracelens/internal/server"
	"github.com/HerbHall/tracelens/pkg/models"
)

// configView is the JSON form of Config with a human-readable interval.
type configView struct {
	Config
	ReportInterval string `json:"report_interval"`
}

func toView(c Config) configView {
	return configView{Config: c, ReportInterval: c.ReportInterval.String()}
}

// configPatchRequest is the JSON body for PATCH /config.
type configPatchRequest struct {
	Enabled         *bool                    `json:"enabled"`
	SampleRate      *float64                 `json:"sample_rate"`
	ReportInterval  *string                  `json:"report_interval"`
	RealtimeReport  *bool                    `json:"realtime_report"`
	Thresholds      analyzer.ThresholdsPatch `json:"thresholds"`
	ReportURL       *string                  `json:"report_url"`
	ConsoleOutput   *bool                    `json:"console_output"`
	ReportRateLimit *float64                 `json:"report_rate_limit"`
}

func (r configPatchRequest) toPatch() (ConfigPatch, error) {
	p := ConfigPatch{
		Enabled:         r.Enabled,
		SampleRate:      r.SampleRate,
		RealtimeReport:  r.RealtimeReport,
		Thresholds:      r.Thresholds,
		ReportURL:       r.ReportURL,
		ConsoleOutput:   r.ConsoleOutput,
		ReportRateLimit: r.ReportRateLimit,
	}
	if r.SampleRate != nil && (*r.SampleRate < 0 || *r.SampleRate > 1) {
		return ConfigPatch{}, fmt.Errorf("sample_rate must be within [0,1], got %v", *r.SampleRate)
	}
	if r.ReportInterval != nil {
		d, err := time.ParseDuration(*r.ReportInterval)
		if err != nil {
			return ConfigPatch{}, fmt.Errorf("report_interval: %w", err)
		}
		if d < 0 {
			return ConfigPatch{}, fmt.Errorf("report_interval must not be negative")
		}
		p.ReportInterval = &d
	}
	return p, nil
}

// Routes implements plugin.Plugin.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/metrics", Handler: m.handleMetrics},
		{Method: "GET", Path: "/analysis", Handler: m.handleAnalysis},
		{Method: "POST", Path: "/collect", Handler: m.handleCollect},
		{Method: "POST", Path: "/reset", Handler: m.handleReset},
		{Method: "GET", Path: "/config", Handler: m.handleGetConfig},
		{Method: "PATCH", Path: "/config", Handler: m.handlePatchConfig},
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
	}
}

func (m *Module) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, ok := m.monitor.GetMetrics()
	if !ok {
		server.ServiceUnavailable(w, "no performance data available", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, metrics)
}

func (m *Module) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a := m.monitor.Analyze()
	if a == nil {
		server.ServiceUnavailable(w, "no performance data available", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, a)
}

// handleCollect runs one collection cycle. ?type= tags the event and
// ?immediate=true hands it to the reporters.
func (m *Module) handleCollect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := models.EventTypeCustom
	if v := q.Get("type"); v != "" {
		t, err := models.ParseEventType(v)
		if err != nil {
			server.BadRequest(w, err.Error(), r.URL.Path)
			return
		}
		typ = t
	}
	var opts *ReportOptions
	if v := q.Get("immediate"); v != "" {
		immediate, err := strconv.ParseBool(v)
		if err != nil {
			server.BadRequest(w, "immediate must be a boolean", r.URL.Path)
			return
		}
		opts = &ReportOptions{Immediate: immediate}
	}

	if !m.monitor.Initialized() {
		server.Conflict(w, "performance monitor is not running", r.URL.Path)
		return
	}
	ran := m.monitor.CollectAndReport(typ, opts)
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"collected": ran,
		"type":      typ,
	})
}

func (m *Module) handleReset(w http.ResponseWriter, _ *http.Request) {
	m.monitor.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, toView(m.monitor.Config()))
}

func (m *Module) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	var req configPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.BadRequest(w, "invalid request body", r.URL.Path)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	cfg := m.monitor.UpdateConfig(patch)
	server.WriteJSON(w, http.StatusOK, toView(cfg))
}

func (m *Module) handleStatus(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, m.monitor.Status())
}
