package testutil

import (
	"sync"

	"github.com/HerbHall/tracelens/internal/perf/host"
)

var _ host.Platform = (*FakeHost)(nil)

// FakeHost is a scriptable host.Platform. Time only moves when the test
// calls Advance, and frames only fire when the test calls Frame.
type FakeHost struct {
	mu          sync.Mutex
	url         string
	userAgent   string
	clock       *Clock
	unavailable map[host.Channel]bool
	observers   map[host.Channel][]*fakeObserver
	nav         *host.NavigationTiming
	legacy      *host.LegacyTiming
	heap        *host.HeapStats
	frames      []*fakeFrame
	listeners   map[host.EventKind][]*fakeListener
	nextID      int
}

// NewFakeHost returns a FakeHost with every channel available and no
// timing or heap data.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		url:         "app://test",
		userAgent:   "tracelens-test",
		clock:       NewClock(),
		unavailable: make(map[host.Channel]bool),
		observers:   make(map[host.Channel][]*fakeObserver),
		listeners:   make(map[host.EventKind][]*fakeListener),
	}
}

type fakeObserver struct {
	h  *FakeHost
	ch host.Channel
	fn func([]host.Entry)
}

func (o *fakeObserver) Disconnect() {
	o.h.mu.Lock()
	defer o.h.mu.Unlock()
	list := o.h.observers[o.ch]
	for i, other := range list {
		if other == o {
			o.h.observers[o.ch] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

type fakeFrame struct {
	fn        func(float64)
	cancelled bool
}

type fakeListener struct {
	id int
	fn func()
}

func (h *FakeHost) URL() string       { return h.url }
func (h *FakeHost) UserAgent() string { return h.userAgent }

// Clock returns the clock behind Now. Pass Clock().Now as a wall-time
// source to keep snapshot timestamps in step with host time.
func (h *FakeHost) Clock() *Clock { return h.clock }

// Now returns the scripted time in ms.
func (h *FakeHost) Now() float64 {
	return h.clock.Millis()
}

// Advance moves the scripted time forward by ms.
func (h *FakeHost) Advance(ms float64) {
	h.clock.AdvanceMillis(ms)
}

// Disable makes ch report Unavailable.
func (h *FakeHost) Disable(ch host.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unavailable[ch] = true
}

func (h *FakeHost) Probe(ch host.Channel) host.ChannelStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unavailable[ch] {
		return host.Unavailable{Reason: "disabled in test"}
	}
	return host.Available{Observe: func(fn func([]host.Entry)) host.Observer {
		h.mu.Lock()
		defer h.mu.Unlock()
		o := &fakeObserver{h: h, ch: ch, fn: fn}
		h.observers[ch] = append(h.observers[ch], o)
		return o
	}}
}

// Emit delivers entries to every observer of ch.
func (h *FakeHost) Emit(ch host.Channel, entries ...host.Entry) {
	h.mu.Lock()
	obs := make([]*fakeObserver, len(h.observers[ch]))
	copy(obs, h.observers[ch])
	h.mu.Unlock()
	for _, o := range obs {
		o.fn(entries)
	}
}

// Observers returns the number of live observers on ch.
func (h *FakeHost) Observers(ch host.Channel) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers[ch])
}

// SetNavigationTiming makes navigation timing available.
func (h *FakeHost) SetNavigationTiming(nt host.NavigationTiming) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nav = &nt
}

// SetLegacyTiming makes legacy timing available.
func (h *FakeHost) SetLegacyTiming(lt host.LegacyTiming) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.legacy = &lt
}

// SetHeapStats makes heap statistics available.
func (h *FakeHost) SetHeapStats(hs host.HeapStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heap = &hs
}

func (h *FakeHost) NavigationTiming() (host.NavigationTiming, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.nav == nil {
		return host.NavigationTiming{}, false
	}
	return *h.nav, true
}

func (h *FakeHost) LegacyTiming() (host.LegacyTiming, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.legacy == nil {
		return host.LegacyTiming{}, false
	}
	return *h.legacy, true
}

func (h *FakeHost) HeapStats() (host.HeapStats, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.heap == nil {
		return host.HeapStats{}, false
	}
	return *h.heap, true
}

func (h *FakeHost) RequestFrame(fn func(ts float64)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := &fakeFrame{fn: fn}
	h.frames = append(h.frames, f)
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		f.cancelled = true
	}
}

// Frame advances time by ms and runs every pending frame callback. Callbacks
// requested while running are deferred to the next Frame call.
func (h *FakeHost) Frame(ms float64) {
	ts := h.clock.AdvanceMillis(ms)
	h.mu.Lock()
	pending := h.frames
	h.frames = nil
	h.mu.Unlock()

	for _, f := range pending {
		h.mu.Lock()
		cancelled := f.cancelled
		h.mu.Unlock()
		if !cancelled {
			f.fn(ts)
		}
	}
}

// PendingFrames returns the number of scheduled, uncancelled frame callbacks.
func (h *FakeHost) PendingFrames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, f := range h.frames {
		if !f.cancelled {
			n++
		}
	}
	return n
}

func (h *FakeHost) AddEventListener(kind host.EventKind, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners[kind] = append(h.listeners[kind], &fakeListener{id: id, fn: fn})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.listeners[kind]
		for i, l := range list {
			if l.id == id {
				h.listeners[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Dispatch runs every listener for kind.
func (h *FakeHost) Dispatch(kind host.EventKind) {
	h.mu.Lock()
	list := make([]*fakeListener, len(h.listeners[kind]))
	copy(list, h.listeners[kind])
	h.mu.Unlock()
	for _, l := range list {
		l.fn()
	}
}

// Listeners returns the number of registered listeners for kind.
func (h *FakeHost) Listeners(kind host.EventKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[kind])
}
