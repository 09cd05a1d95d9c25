// Package host defines the upstream sources the performance collector reads
// from, and a Runtime implementation for Go client processes.
package host

// Channel names an observation channel.
type Channel string

const (
	ChannelLongTask   Channel = "longtask"
	ChannelPaint      Channel = "paint"
	ChannelResource   Channel = "resource"
	ChannelNavigation Channel = "navigation"
)

// Channels lists every channel the collector probes.
var Channels = []Channel{ChannelLongTask, ChannelPaint, ChannelResource, ChannelNavigation}

// Paint entry names.
const (
	PaintFirst             = "first-paint"
	PaintFirstContentful   = "first-contentful-paint"
	PaintLargestContentful = "largest-contentful-paint"
)

// Entry is a single observed timing record. Times are milliseconds relative
// to the platform's time origin.
type Entry struct {
	Name            string
	EntryType       Channel
	StartTime       float64
	Duration        float64
	TransferSize    int64
	DecodedBodySize int64
}

// Observer is a live subscription to a channel.
type Observer interface {
	Disconnect()
}

// ChannelStatus is the result of probing a channel. It is either Available
// or Unavailable.
type ChannelStatus interface {
	channelStatus()
}

// Available means the channel can be observed.
type Available struct {
	Observe func(fn func([]Entry)) Observer
}

// Unavailable means the platform does not support the channel.
type Unavailable struct {
	Reason string
}

func (Available) channelStatus()   {}
func (Unavailable) channelStatus() {}

// NavigationTiming holds high-resolution navigation milestones, in
// milliseconds relative to the time origin. Unreached milestones are zero.
type NavigationTiming struct {
	StartTime                float64
	DomainLookupStart        float64
	DomainLookupEnd          float64
	ConnectStart             float64
	SecureConnectionStart    float64
	ConnectEnd               float64
	RequestStart             float64
	ResponseStart            float64
	DOMContentLoadedEventEnd float64
	LoadEventEnd             float64
}

// LegacyTiming holds cumulative navigation milestones as Unix milliseconds.
// Unreached milestones are zero.
type LegacyTiming struct {
	NavigationStart          int64
	DomainLookupStart        int64
	DomainLookupEnd          int64
	ConnectStart             int64
	SecureConnectionStart    int64
	ConnectEnd               int64
	RequestStart             int64
	ResponseStart            int64
	DOMContentLoadedEventEnd int64
	LoadEventEnd             int64
}

// HeapStats reports heap usage in bytes.
type HeapStats struct {
	Used  uint64
	Total uint64
	Limit uint64
}

// EventKind names a user interaction event.
type EventKind string

const (
	EventClick  EventKind = "click"
	EventScroll EventKind = "scroll"
	EventInput  EventKind = "input"
)

// Platform is the set of upstream sources a collector reads from.
type Platform interface {
	// URL identifies the running application view.
	URL() string
	// UserAgent is the client identity string.
	UserAgent() string
	// Now returns milliseconds since the time origin.
	Now() float64
	// Probe reports whether a channel can be observed.
	Probe(ch Channel) ChannelStatus
	NavigationTiming() (NavigationTiming, bool)
	LegacyTiming() (LegacyTiming, bool)
	HeapStats() (HeapStats, bool)
	// RequestFrame schedules fn for the next frame. The returned func cancels it.
	RequestFrame(fn func(ts float64)) (cancel func())
	// AddEventListener registers fn for kind. The returned func removes it.
	AddEventListener(kind EventKind, fn func()) (remove func())
}
