// Package monitor orchestrates performance collection, analysis and
// reporting for one host platform.
package monitor

import (
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/HerbHall/tracelens/internal/perf/analyzer"
	"github.com/HerbHall/tracelens/internal/perf/collector"
	"github.com/HerbHall/tracelens/internal/perf/host"
	"github.com/HerbHall/tracelens/internal/perf/reporter"
	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
)

type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateInitialized:
		return "initialized"
	case stateDestroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// Options supplies the monitor's collaborators. Every field is optional.
type Options struct {
	Logger *zap.Logger
	// Host is the platform to collect from. Without one the monitor never
	// produces snapshots.
	Host host.Platform
	// Random drives the sampling gate; nil means math/rand/v2.
	Random func() float64
	// Now stamps events; nil means time.Now.
	Now func() time.Time
	// NewConsole builds the console reporter.
	NewConsole func() reporter.Reporter
	// NewNetwork builds the network reporter for cfg.ReportURL.
	NewNetwork func(cfg Config) reporter.Reporter
	// HTTPClient is used by the default network reporter.
	HTTPClient *http.Client
	Collector  collector.Options
}

// ReportOptions modifies a single CollectAndReport call.
type ReportOptions struct {
	// Immediate hands the event to the reporters even when realtime
	// reporting is off.
	Immediate bool
}

type networkKey struct {
	url  string
	rate float64
}

// Monitor owns a Collector, an Analyzer and a set of Reporters.
type Monitor struct {
	logger     *zap.Logger
	host       host.Platform
	random     func() float64
	now        func() time.Time
	newConsole func() reporter.Reporter
	newNetwork func(Config) reporter.Reporter
	colOpts    collector.Options
	analyzer   *analyzer.Analyzer

	mu        sync.Mutex
	state     state
	cfg       Config
	collector *collector.Collector
	reporters []reporter.Reporter
	network   networkKey
	latest    *models.PerformanceMetrics
	stopTimer chan struct{}
}

// New creates a Monitor. Reporters implied by cfg are created immediately;
// collection starts with Init.
func New(cfg Config, opts Options) *Monitor {
	cfg = cfg.normalized()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Random == nil {
		opts.Random = rand.Float64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if opts.NewConsole == nil {
		opts.NewConsole = func() reporter.Reporter {
			return reporter.NewConsole(logger.Named("console"))
		}
	}
	if opts.NewNetwork == nil {
		client := opts.HTTPClient
		opts.NewNetwork = func(c Config) reporter.Reporter {
			l := logger.Named("network")
			return reporter.NewNetwork(c.ReportURL, l,
				reporter.WithHTTPClient(client),
				reporter.WithBeacon(reporter.NewHTTPBeacon(client, 0, l)),
				reporter.WithRateLimit(c.ReportRateLimit, 1),
			)
		}
	}
	m := &Monitor{
		logger:     logger,
		host:       opts.Host,
		random:     opts.Random,
		now:        opts.Now,
		newConsole: opts.NewConsole,
		newNetwork: opts.NewNetwork,
		colOpts:    opts.Collector,
		analyzer:   analyzer.New(cfg.Thresholds),
		cfg:        cfg,
	}
	m.reconcileLocked()
	return m
}

// Init starts collection and the periodic timer. It is idempotent; Init
// after Destroy is ignored.
func (m *Monitor) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateInitialized:
		return
	case stateDestroyed:
		m.logger.Warn("monitor already destroyed, init ignored")
		return
	}

	if m.host != nil {
		m.collector = collector.New(m.host, m.logger.Named("collector"), m.colOpts)
		m.collector.Init()
	} else {
		m.logger.Info("no host platform, collection disabled")
	}
	m.state = stateInitialized
	m.startTimerLocked()

	m.logger.Info("performance monitor initialized",
		zap.Bool("enabled", m.cfg.Enabled),
		zap.Float64("sample_rate", m.cfg.SampleRate),
		zap.Duration("report_interval", m.cfg.ReportInterval),
		zap.Bool("realtime_report", m.cfg.RealtimeReport),
		zap.Int("reporters", len(m.reporters)),
	)
}

// Status is a point-in-time view of the monitor.
type Status struct {
	State       string                `json:"state"`
	Reporters   []string              `json:"reporters"`
	Channels    map[host.Channel]bool `json:"channels,omitempty"`
	HasSnapshot bool                  `json:"has_snapshot"`
}

// Status returns the lifecycle state, reporter names and, once
// initialized, which host channels are being observed.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	st := Status{
		State:       m.state.String(),
		Reporters:   make([]string, len(m.reporters)),
		HasSnapshot: m.latest != nil,
	}
	for i, r := range m.reporters {
		st.Reporters[i] = r.Name()
	}
	col := m.collector
	m.mu.Unlock()

	if col != nil {
		st.Channels = col.Channels()
	}
	return st
}

// Initialized reports whether the monitor is collecting.
func (m *Monitor) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateInitialized
}

// CollectAndReport takes one snapshot tagged with typ and caches it. The
// event reaches the reporters only when opts.Immediate or realtime
// reporting is set. It reports whether a cycle ran; disabled, uninitialized
// and unsampled calls return false.
func (m *Monitor) CollectAndReport(typ models.EventType, opts *ReportOptions) bool {
	if typ == "" {
		typ = models.EventTypeCustom
	}

	m.mu.Lock()
	if m.state != stateInitialized || !m.cfg.Enabled || m.collector == nil {
		m.mu.Unlock()
		return false
	}
	if m.random() >= m.cfg.SampleRate {
		m.mu.Unlock()
		return false
	}
	col := m.collector
	immediate := m.cfg.RealtimeReport || (opts != nil && opts.Immediate)
	m.mu.Unlock()

	metrics := col.Collect(typ)
	event := models.PerformanceEvent{
		Type:      typ,
		Data:      metrics,
		Timestamp: m.now(),
		URL:       metrics.URL,
	}

	m.mu.Lock()
	if m.state != stateInitialized {
		m.mu.Unlock()
		return false
	}
	m.latest = &metrics
	reporters := append([]reporter.Reporter(nil), m.reporters...)
	m.mu.Unlock()

	if immediate {
		for _, r := range reporters {
			m.report(r, event)
		}
	}
	return true
}

func (m *Monitor) report(r reporter.Reporter, e models.PerformanceEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Warn("reporter panicked",
				zap.String("reporter", r.Name()),
				zap.Any("panic", rec),
			)
		}
	}()
	r.Report(e)
}

// GetMetrics returns the cached snapshot, or a fresh one when nothing has
// been cached yet. It returns false when there is no collector.
func (m *Monitor) GetMetrics() (models.PerformanceMetrics, bool) {
	m.mu.Lock()
	if m.latest != nil {
		latest := *m.latest
		m.mu.Unlock()
		return latest, true
	}
	col := m.collector
	m.mu.Unlock()

	if col == nil {
		return models.PerformanceMetrics{}, false
	}
	return col.Collect(models.EventTypeCustom), true
}

// Analyze scores the snapshot returned by GetMetrics. It returns nil when
// no snapshot is available.
func (m *Monitor) Analyze() *models.PerformanceAnalysis {
	metrics, ok := m.GetMetrics()
	if !ok {
		return nil
	}
	a := m.analyzer.Analyze(metrics)
	return &a
}

// Config returns the current configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// UpdateConfig merges p into the configuration, propagates threshold
// changes, reconciles the console and network reporters and restarts the
// timer when the interval or realtime mode changed. A destroyed monitor
// only records the new configuration.
func (m *Monitor) UpdateConfig(p ConfigPatch) Config {
	m.mu.Lock()
	prev := m.cfg
	m.cfg = prev.Apply(p)
	if !p.Thresholds.Empty() {
		m.cfg.Thresholds = m.analyzer.UpdateThresholds(p.Thresholds)
	}
	var removed []reporter.Reporter
	if m.state != stateDestroyed {
		removed = m.reconcileLocked()
	}
	if m.state == stateInitialized &&
		(prev.ReportInterval != m.cfg.ReportInterval || prev.RealtimeReport != m.cfg.RealtimeReport) {
		m.stopTimerLocked()
		m.startTimerLocked()
	}
	cfg := m.cfg
	m.mu.Unlock()

	m.closeAll(removed)
	m.logger.Debug("monitor configuration updated",
		zap.Bool("enabled", cfg.Enabled),
		zap.Float64("sample_rate", cfg.SampleRate),
		zap.Duration("report_interval", cfg.ReportInterval),
		zap.Strings("reporters", m.Reporters()),
	)
	return cfg
}

// reconcileLocked brings the console and network reporters in line with
// m.cfg and returns the reporters it removed.
func (m *Monitor) reconcileLocked() []reporter.Reporter {
	var removed []reporter.Reporter

	if m.cfg.ConsoleOutput {
		if m.indexLocked(reporter.NameConsole) < 0 {
			m.reporters = append(m.reporters, m.newConsole())
		}
	} else if r := m.removeLocked(reporter.NameConsole); r != nil {
		removed = append(removed, r)
	}

	want := networkKey{url: m.cfg.ReportURL, rate: m.cfg.ReportRateLimit}
	switch {
	case want.url == "":
		if r := m.removeLocked(reporter.NameNetwork); r != nil {
			removed = append(removed, r)
		}
		m.network = networkKey{}
	case m.indexLocked(reporter.NameNetwork) < 0 || m.network != want:
		if r := m.removeLocked(reporter.NameNetwork); r != nil {
			removed = append(removed, r)
		}
		m.reporters = append(m.reporters, m.newNetwork(m.cfg))
		m.network = want
	}
	return removed
}

func (m *Monitor) indexLocked(name string) int {
	for i, r := range m.reporters {
		if r.Name() == name {
			return i
		}
	}
	return -1
}

func (m *Monitor) removeLocked(name string) reporter.Reporter {
	i := m.indexLocked(name)
	if i < 0 {
		return nil
	}
	r := m.reporters[i]
	m.reporters = append(m.reporters[:i:i], m.reporters[i+1:]...)
	return r
}

// closeAll releases reporters that hold resources. It must be called
// without the lock held since closing may wait on in-flight sends.
func (m *Monitor) closeAll(rs []reporter.Reporter) {
	for _, r := range rs {
		c, ok := r.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			m.logger.Debug("close reporter", zap.String("reporter", r.Name()), zap.Error(err))
		}
	}
}

// AddReporter registers r, replacing any reporter with the same name.
func (m *Monitor) AddReporter(r reporter.Reporter) {
	m.mu.Lock()
	old := m.removeLocked(r.Name())
	m.reporters = append(m.reporters, r)
	m.mu.Unlock()

	if old != nil && old != r {
		m.closeAll([]reporter.Reporter{old})
	}
}

// RemoveReporter unregisters the reporter called name. Unknown names are
// ignored.
func (m *Monitor) RemoveReporter(name string) {
	m.mu.Lock()
	r := m.removeLocked(name)
	if name == reporter.NameNetwork {
		m.network = networkKey{}
	}
	m.mu.Unlock()

	if r != nil {
		m.closeAll([]reporter.Reporter{r})
	}
}

// Reporters returns the names of the registered reporters in order.
func (m *Monitor) Reporters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.reporters))
	for i, r := range m.reporters {
		names[i] = r.Name()
	}
	return names
}

// Reset clears the collector buffers and the cached snapshot.
func (m *Monitor) Reset() {
	m.mu.Lock()
	col := m.collector
	m.latest = nil
	m.mu.Unlock()

	if col != nil {
		col.Reset()
	}
}

// Destroy stops the timer, tears down the collector and drops every
// reporter and the cached snapshot. The monitor cannot be reused.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.state == stateDestroyed {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	col := m.collector
	reporters := m.reporters
	m.collector = nil
	m.reporters = nil
	m.network = networkKey{}
	m.latest = nil
	m.state = stateDestroyed
	m.mu.Unlock()

	if col != nil {
		col.Destroy()
	}
	m.closeAll(reporters)
	m.logger.Info("performance monitor destroyed")
}

func (m *Monitor) startTimerLocked() {
	if m.cfg.RealtimeReport || m.cfg.ReportInterval <= 0 {
		return
	}
	stop := make(chan struct{})
	m.stopTimer = stop
	go m.runTimer(m.cfg.ReportInterval, stop)
}

func (m *Monitor) stopTimerLocked() {
	if m.stopTimer != nil {
		close(m.stopTimer)
		m.stopTimer = nil
	}
}

// runTimer collects once per interval until stop is closed. Ticks run on
// this goroutine, so they never overlap.
func (m *Monitor) runTimer(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			m.CollectAndReport(models.EventTypePeriodic, nil)
		}
	}
}
