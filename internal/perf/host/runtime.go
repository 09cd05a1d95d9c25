package host

import (
	"io"
	"math"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// NavPhase names a navigation milestone recorded with MarkNavigation.
type NavPhase string

const (
	PhaseDomainLookupStart        NavPhase = "domain_lookup_start"
	PhaseDomainLookupEnd          NavPhase = "domain_lookup_end"
	PhaseConnectStart             NavPhase = "connect_start"
	PhaseSecureConnectionStart    NavPhase = "secure_connection_start"
	PhaseConnectEnd               NavPhase = "connect_end"
	PhaseRequestStart             NavPhase = "request_start"
	PhaseResponseStart            NavPhase = "response_start"
	PhaseDOMContentLoadedEventEnd NavPhase = "dom_content_loaded_event_end"
	PhaseLoadEventEnd             NavPhase = "load_event_end"
)

const (
	defaultFrameRate         = 60
	defaultLongTaskThreshold = 50 * time.Millisecond
)

// RuntimeOptions configures a Runtime.
type RuntimeOptions struct {
	URL       string
	UserAgent string
	// FrameRate is the frame scheduler rate in Hz. Zero means 60.
	FrameRate int
	// LongTaskThreshold is the minimum tracked duration reported on the
	// long task channel. Zero means 50ms.
	LongTaskThreshold time.Duration
	Logger            *zap.Logger
}

// Runtime is a Platform for an instrumented Go process. The application
// reports its own timings through Track, MarkPaint, MarkNavigation, Transport
// and Dispatch; heap statistics come from the Go runtime.
type Runtime struct {
	url           string
	userAgent     string
	origin        time.Time
	frameInterval time.Duration
	longTask      time.Duration
	logger        *zap.Logger

	mu          sync.Mutex
	observers   map[Channel][]*observer
	listeners   map[EventKind][]*eventListener
	marks       map[NavPhase]float64
	nextID      uint64
	memoryLimit func() uint64
}

// NewRuntime creates a Runtime whose time origin is the current instant.
func NewRuntime(opts RuntimeOptions) *Runtime {
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.LongTaskThreshold <= 0 {
		opts.LongTaskThreshold = defaultLongTaskThreshold
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Runtime{
		url:           opts.URL,
		userAgent:     opts.UserAgent,
		origin:        time.Now(),
		frameInterval: time.Second / time.Duration(opts.FrameRate),
		longTask:      opts.LongTaskThreshold,
		logger:        opts.Logger,
		observers:     make(map[Channel][]*observer),
		listeners:     make(map[EventKind][]*eventListener),
		marks:         make(map[NavPhase]float64),
		memoryLimit:   sync.OnceValue(systemMemory),
	}
}

var _ Platform = (*Runtime)(nil)

func (r *Runtime) URL() string       { return r.url }
func (r *Runtime) UserAgent() string { return r.userAgent }

// Now returns milliseconds since the runtime was created.
func (r *Runtime) Now() float64 {
	return r.since(time.Now())
}

func (r *Runtime) since(t time.Time) float64 {
	return float64(t.Sub(r.origin)) / float64(time.Millisecond)
}

// Probe reports every channel as available; the runtime produces all of them.
func (r *Runtime) Probe(ch Channel) ChannelStatus {
	switch ch {
	case ChannelLongTask, ChannelPaint, ChannelResource, ChannelNavigation:
		return Available{Observe: func(fn func([]Entry)) Observer {
			return r.observe(ch, fn)
		}}
	default:
		return Unavailable{Reason: "unknown channel " + string(ch)}
	}
}

type observer struct {
	r  *Runtime
	ch Channel
	id uint64
	fn func([]Entry)
}

func (o *observer) Disconnect() {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	list := o.r.observers[o.ch]
	for i, other := range list {
		if other.id == o.id {
			o.r.observers[o.ch] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (r *Runtime) observe(ch Channel, fn func([]Entry)) Observer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o := &observer{r: r, ch: ch, id: r.nextID, fn: fn}
	r.observers[ch] = append(r.observers[ch], o)
	return o
}

func (r *Runtime) emit(ch Channel, entries ...Entry) {
	r.mu.Lock()
	obs := make([]*observer, len(r.observers[ch]))
	copy(obs, r.observers[ch])
	r.mu.Unlock()

	for _, o := range obs {
		r.deliver(o, entries)
	}
}

func (r *Runtime) deliver(o *observer, entries []Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("observer panicked",
				zap.String("channel", string(o.ch)),
				zap.Any("panic", rec),
			)
		}
	}()
	batch := make([]Entry, len(entries))
	copy(batch, entries)
	o.fn(batch)
}

// Track starts timing a unit of work. Calling the returned func ends it;
// work that ran at least the long task threshold is reported on the long
// task channel.
func (r *Runtime) Track(name string) (done func()) {
	start := time.Now()
	var once sync.Once
	return func() {
		once.Do(func() {
			d := time.Since(start)
			if d < r.longTask {
				return
			}
			r.emit(ChannelLongTask, Entry{
				Name:      name,
				EntryType: ChannelLongTask,
				StartTime: r.since(start),
				Duration:  float64(d) / float64(time.Millisecond),
			})
		})
	}
}

// MarkPaint records a paint milestone such as PaintFirstContentful.
func (r *Runtime) MarkPaint(name string) {
	r.emit(ChannelPaint, Entry{Name: name, EntryType: ChannelPaint, StartTime: r.Now()})
}

// MarkNavigation records a navigation milestone at the current instant.
// Marking PhaseLoadEventEnd also emits a navigation entry.
func (r *Runtime) MarkNavigation(phase NavPhase) {
	now := r.Now()
	r.mu.Lock()
	r.marks[phase] = now
	r.mu.Unlock()

	if phase == PhaseLoadEventEnd {
		r.emit(ChannelNavigation, Entry{
			Name:      r.url,
			EntryType: ChannelNavigation,
			Duration:  now,
		})
	}
}

// NavigationTiming is available once any milestone has been marked.
func (r *Runtime) NavigationTiming() (NavigationTiming, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.marks) == 0 {
		return NavigationTiming{}, false
	}
	m := r.marks
	return NavigationTiming{
		DomainLookupStart:        m[PhaseDomainLookupStart],
		DomainLookupEnd:          m[PhaseDomainLookupEnd],
		ConnectStart:             m[PhaseConnectStart],
		SecureConnectionStart:    m[PhaseSecureConnectionStart],
		ConnectEnd:               m[PhaseConnectEnd],
		RequestStart:             m[PhaseRequestStart],
		ResponseStart:            m[PhaseResponseStart],
		DOMContentLoadedEventEnd: m[PhaseDOMContentLoadedEventEnd],
		LoadEventEnd:             m[PhaseLoadEventEnd],
	}, true
}

// LegacyTiming is not provided by the Go runtime.
func (r *Runtime) LegacyTiming() (LegacyTiming, bool) {
	return LegacyTiming{}, false
}

// HeapStats reads the Go heap. The limit is the soft memory limit when one
// is set, otherwise total system memory.
func (r *Runtime) HeapStats() (HeapStats, bool) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var limit uint64
	if l := debug.SetMemoryLimit(-1); l > 0 && l != math.MaxInt64 {
		limit = uint64(l)
	} else {
		limit = r.memoryLimit()
	}
	if limit == 0 {
		limit = ms.Sys
	}
	return HeapStats{Used: ms.HeapAlloc, Total: ms.HeapSys, Limit: limit}, true
}

func systemMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0
	}
	return vm.Total
}

// RequestFrame runs fn at the next frame boundary.
func (r *Runtime) RequestFrame(fn func(ts float64)) (cancel func()) {
	elapsed := time.Since(r.origin)
	delay := r.frameInterval - elapsed%r.frameInterval
	t := time.AfterFunc(delay, func() { fn(r.Now()) })
	return func() { t.Stop() }
}

type eventListener struct {
	id uint64
	fn func()
}

// AddEventListener registers fn for kind.
func (r *Runtime) AddEventListener(kind EventKind, fn func()) (remove func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners[kind] = append(r.listeners[kind], &eventListener{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.listeners[kind]
		for i, l := range list {
			if l.id == id {
				r.listeners[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers a user interaction event to registered listeners.
func (r *Runtime) Dispatch(kind EventKind) {
	r.mu.Lock()
	list := make([]*eventListener, len(r.listeners[kind]))
	copy(list, r.listeners[kind])
	r.mu.Unlock()

	for _, l := range list {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Warn("event listener panicked",
						zap.String("event", string(kind)),
						zap.Any("panic", rec),
					)
				}
			}()
			l.fn()
		}()
	}
}

// Transport wraps base so every request is reported on the resource
// channel once its body is drained or closed. A nil base means
// http.DefaultTransport.
func (r *Runtime) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &resourceTransport{base: base, r: r}
}

type resourceTransport struct {
	base http.RoundTripper
	r    *Runtime
}

func (t *resourceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	name := req.URL.String()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		// Failed requests carry no duration.
		t.r.emit(ChannelResource, Entry{
			Name:      name,
			EntryType: ChannelResource,
			StartTime: t.r.since(start),
		})
		return nil, err
	}
	resp.Body = &timedBody{
		ReadCloser: resp.Body,
		r:          t.r,
		name:       name,
		start:      start,
		cached:     fromCache(resp.Header),
	}
	return resp, nil
}

// fromCache recognizes responses served by a caching layer.
func fromCache(h http.Header) bool {
	return h.Get("X-From-Cache") == "1" || strings.EqualFold(h.Get("X-Cache"), "HIT")
}

type timedBody struct {
	io.ReadCloser
	r      *Runtime
	name   string
	start  time.Time
	cached bool
	n      int64
	once   sync.Once
}

func (b *timedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err == io.EOF {
		b.finish()
	}
	return n, err
}

func (b *timedBody) Close() error {
	err := b.ReadCloser.Close()
	b.finish()
	return err
}

func (b *timedBody) finish() {
	b.once.Do(func() {
		e := Entry{
			Name:            b.name,
			EntryType:       ChannelResource,
			StartTime:       b.r.since(b.start),
			Duration:        float64(time.Since(b.start)) / float64(time.Millisecond),
			TransferSize:    b.n,
			DecodedBodySize: b.n,
		}
		if b.cached {
			e.TransferSize = 0
		}
		b.r.emit(ChannelResource, e)
	})
}
