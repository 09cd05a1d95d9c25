// Package collector subscribes to a host platform's observation channels and
// produces PerformanceMetrics snapshots on demand.
package collector

import (
	"math"
	"sync"
	"time"

	"github.com/HerbHall/tracelens/internal/perf/host"
	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
)

const (
	initialFPS = 60
	// DefaultMaxEntries bounds each per-channel entry buffer.
	DefaultMaxEntries = 1000
	bytesPerMB        = 1024 * 1024
)

// Options configures a Collector.
type Options struct {
	// MaxEntries bounds each entry buffer; the oldest entries are dropped
	// first. Zero means DefaultMaxEntries.
	MaxEntries int
	// Now stamps snapshots; nil means time.Now.
	Now func() time.Time
}

// Collector gathers raw measurements from a host.Platform.
type Collector struct {
	host       host.Platform
	logger     *zap.Logger
	now        func() time.Time
	maxEntries int

	mu          sync.Mutex
	initialized bool
	channels    map[host.Channel]bool
	observers   []host.Observer
	removers    []func()

	longTasks   []host.Entry
	resources   []host.Entry
	paintCount  int
	fcp         float64
	lcp         float64
	navDuration float64

	cancelFrame   func()
	frames        int
	lastFrameTime float64
	fps           float64

	clickResponse     float64
	inputDelay        float64
	scrollCount       int
	scrollWindowStart float64
	scrollFPS         float64
}

// New creates a Collector reading from h. Call Init to start observing.
func New(h host.Platform, logger *zap.Logger, opts Options) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Collector{
		host:       h,
		logger:     logger,
		now:        opts.Now,
		maxEntries: opts.MaxEntries,
		channels:   make(map[host.Channel]bool),
		fps:        initialFPS,
	}
}

// Init probes every channel, subscribes to the available ones, starts the
// frame loop and registers interaction listeners. Unavailable channels are
// skipped. Calling Init again while initialized is a no-op.
func (c *Collector) Init() {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = true
	c.lastFrameTime = c.host.Now()
	c.mu.Unlock()

	handlers := map[host.Channel]func([]host.Entry){
		host.ChannelLongTask:   c.onLongTasks,
		host.ChannelPaint:      c.onPaints,
		host.ChannelResource:   c.onResources,
		host.ChannelNavigation: c.onNavigation,
	}
	for _, ch := range host.Channels {
		switch st := c.host.Probe(ch).(type) {
		case host.Available:
			obs := st.Observe(handlers[ch])
			c.mu.Lock()
			c.observers = append(c.observers, obs)
			c.channels[ch] = true
			c.mu.Unlock()
		case host.Unavailable:
			c.logger.Debug("channel unavailable",
				zap.String("channel", string(ch)),
				zap.String("reason", st.Reason),
			)
			c.mu.Lock()
			c.channels[ch] = false
			c.mu.Unlock()
		}
	}

	removers := []func(){
		c.host.AddEventListener(host.EventClick, c.onClick),
		c.host.AddEventListener(host.EventScroll, c.onScroll),
		c.host.AddEventListener(host.EventInput, c.onInput),
	}
	c.mu.Lock()
	c.removers = removers
	c.mu.Unlock()

	c.scheduleFrame()
}

// Channels reports which channels were available at Init.
func (c *Collector) Channels() map[host.Channel]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[host.Channel]bool, len(c.channels))
	for k, v := range c.channels {
		out[k] = v
	}
	return out
}

func (c *Collector) appendBounded(buf []host.Entry, entries []host.Entry) []host.Entry {
	buf = append(buf, entries...)
	if over := len(buf) - c.maxEntries; over > 0 {
		buf = append(buf[:0:0], buf[over:]...)
	}
	return buf
}

func (c *Collector) onLongTasks(entries []host.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.longTasks = c.appendBounded(c.longTasks, entries)
}

func (c *Collector) onResources(entries []host.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = c.appendBounded(c.resources, entries)
}

func (c *Collector) onPaints(entries []host.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paintCount += len(entries)
	for _, e := range entries {
		switch e.Name {
		case host.PaintFirstContentful:
			c.fcp = e.StartTime
		case host.PaintLargestContentful:
			c.lcp = e.StartTime
		}
	}
}

func (c *Collector) onNavigation(entries []host.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(entries); n > 0 {
		c.navDuration = entries[n-1].Duration
	}
}

func (c *Collector) scheduleFrame() {
	cancel := c.host.RequestFrame(c.onFrame)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		cancel()
		return
	}
	c.cancelFrame = cancel
}

// onFrame counts frames and recomputes fps once per rolling second.
func (c *Collector) onFrame(ts float64) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.frames++
	if elapsed := ts - c.lastFrameTime; elapsed >= 1000 {
		c.fps = math.Round(float64(c.frames) * 1000 / elapsed)
		c.frames = 0
		c.lastFrameTime = ts
	}
	c.mu.Unlock()

	c.scheduleFrame()
}

func (c *Collector) onClick() {
	start := c.host.Now()
	c.host.RequestFrame(func(float64) {
		elapsed := c.host.Now() - start
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.initialized {
			c.clickResponse = elapsed
		}
	})
}

func (c *Collector) onInput() {
	start := c.host.Now()
	c.host.RequestFrame(func(float64) {
		elapsed := c.host.Now() - start
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.initialized {
			c.inputDelay = elapsed
		}
	})
}

func (c *Collector) onScroll() {
	now := c.host.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scrollCount == 0 && c.scrollWindowStart == 0 {
		c.scrollWindowStart = now
	}
	c.scrollCount++
	if elapsed := now - c.scrollWindowStart; elapsed >= 1000 {
		c.scrollFPS = math.Round(float64(c.scrollCount) * 1000 / elapsed)
		c.scrollCount = 0
		c.scrollWindowStart = now
	}
}

// Collect returns a snapshot of the current measurements tagged for typ.
func (c *Collector) Collect(typ models.EventType) models.PerformanceMetrics {
	c.mu.Lock()
	longTasks := append([]host.Entry(nil), c.longTasks...)
	resources := append([]host.Entry(nil), c.resources...)
	render := models.RenderMetrics{
		FPS:          c.fps,
		RepaintCount: c.paintCount,
	}
	paints := paintTimes{fcp: c.fcp, lcp: c.lcp, navDuration: c.navDuration}
	interaction := models.InteractionMetrics{
		ClickResponseTime: c.clickResponse,
		ScrollFPS:         c.scrollFPS,
		InputDelay:        c.inputDelay,
	}
	c.mu.Unlock()

	if render.FPS > 0 {
		render.FrameTime = 1000 / render.FPS
	}
	render.LongTaskCount = len(longTasks)
	for _, e := range longTasks {
		render.LongTaskDuration += e.Duration
	}

	m := models.PerformanceMetrics{
		Render:      render,
		Load:        c.loadMetrics(paints),
		Memory:      c.memoryMetrics(),
		Network:     networkMetrics(resources),
		Interaction: interaction,
		Timestamp:   c.now(),
		URL:         c.host.URL(),
		UserAgent:   c.host.UserAgent(),
	}
	c.logger.Debug("collected metrics", zap.String("type", string(typ)))
	return m
}

type paintTimes struct {
	fcp, lcp, navDuration float64
}

// loadMetrics prefers high-resolution navigation timing and falls back to
// legacy timing. Deltas are passed through unclamped.
func (c *Collector) loadMetrics(p paintTimes) models.LoadMetrics {
	lm := models.LoadMetrics{
		FirstContentfulPaint:   p.fcp,
		LargestContentfulPaint: p.lcp,
	}
	if nt, ok := c.host.NavigationTiming(); ok {
		lm.PageLoadTime = nt.LoadEventEnd - nt.StartTime
		lm.DNSTime = nt.DomainLookupEnd - nt.DomainLookupStart
		lm.TCPTime = nt.ConnectEnd - nt.ConnectStart
		if nt.SecureConnectionStart > 0 {
			lm.SSLTime = nt.ConnectEnd - nt.SecureConnectionStart
		}
		lm.TTFB = nt.ResponseStart - nt.RequestStart
		lm.DOMReadyTime = nt.DOMContentLoadedEventEnd - nt.StartTime
		lm.ResourceLoadTime = nt.LoadEventEnd - nt.DOMContentLoadedEventEnd
		return lm
	}
	if lt, ok := c.host.LegacyTiming(); ok {
		lm.PageLoadTime = float64(lt.LoadEventEnd - lt.NavigationStart)
		lm.DNSTime = float64(lt.DomainLookupEnd - lt.DomainLookupStart)
		lm.TCPTime = float64(lt.ConnectEnd - lt.ConnectStart)
		if lt.SecureConnectionStart > 0 {
			lm.SSLTime = float64(lt.ConnectEnd - lt.SecureConnectionStart)
		}
		lm.TTFB = float64(lt.ResponseStart - lt.RequestStart)
		lm.DOMReadyTime = float64(lt.DOMContentLoadedEventEnd - lt.NavigationStart)
		lm.ResourceLoadTime = float64(lt.LoadEventEnd - lt.DOMContentLoadedEventEnd)
		return lm
	}
	lm.PageLoadTime = p.navDuration
	return lm
}

func (c *Collector) memoryMetrics() models.MemoryMetrics {
	hs, ok := c.host.HeapStats()
	if !ok {
		return models.MemoryMetrics{}
	}
	mm := models.MemoryMetrics{
		UsedJSHeapSize:  round2(float64(hs.Used) / bytesPerMB),
		TotalJSHeapSize: round2(float64(hs.Total) / bytesPerMB),
		JSHeapSizeLimit: round2(float64(hs.Limit) / bytesPerMB),
	}
	if hs.Limit > 0 {
		mm.MemoryUsage = round2(float64(hs.Used) / float64(hs.Limit) * 100)
	}
	return mm
}

// networkMetrics aggregates resource entries. A zero duration marks a failed
// request; a zero transfer size with a decoded body marks a cache hit.
func networkMetrics(resources []host.Entry) models.NetworkMetrics {
	nm := models.NetworkMetrics{RequestCount: len(resources)}
	if nm.RequestCount == 0 {
		return nm
	}
	var totalDuration float64
	for _, e := range resources {
		if e.Duration > 0 {
			nm.SuccessCount++
		} else {
			nm.ErrorCount++
		}
		totalDuration += e.Duration
		nm.TotalTransferSize += e.TransferSize
		if e.TransferSize == 0 && e.DecodedBodySize > 0 {
			nm.CacheHitCount++
		}
	}
	nm.AvgRequestTime = totalDuration / float64(nm.RequestCount)
	nm.CacheHitRate = float64(nm.CacheHitCount) / float64(nm.RequestCount) * 100
	return nm
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Reset clears the accumulated long task, resource and paint buffers.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.longTasks = nil
	c.resources = nil
	c.paintCount = 0
}

// Destroy disconnects every observer, stops the frame loop and removes the
// interaction listeners. A destroyed Collector can be initialized again.
func (c *Collector) Destroy() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	observers := c.observers
	removers := c.removers
	cancelFrame := c.cancelFrame
	c.observers = nil
	c.removers = nil
	c.cancelFrame = nil
	c.longTasks = nil
	c.resources = nil
	c.paintCount = 0
	c.frames = 0
	c.mu.Unlock()

	for _, o := range observers {
		o.Disconnect()
	}
	for _, remove := range removers {
		remove()
	}
	if cancelFrame != nil {
		cancelFrame()
	}
}
