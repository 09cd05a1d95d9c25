// Package logcapture intercepts diagnostic log output, keeps the most recent
// entries in a bounded buffer, and broadcasts retained entries to listeners.
//
// A Service is constructed once by the composition root and passed to
// consumers. It hooks in through the console facade (Start/Stop) and, for
// third-party zap output, through Core.
package logcapture

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HerbHall/tracelens/internal/console"
	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
)

// DefaultMaxLogs is the buffer capacity used when none is configured.
const DefaultMaxLogs = 1000

// Listener receives every retained entry and the clear sentinel.
type Listener func(models.LogEntry)

// ListenerID identifies a registered Listener.
type ListenerID uint64

// Options configures a Service.
type Options struct {
	MaxLogs       int
	AllowPatterns []string
	DenyPatterns  []string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default service options.
func DefaultOptions() Options {
	return Options{
		MaxLogs:       DefaultMaxLogs,
		AllowPatterns: DefaultAllowPatterns,
		DenyPatterns:  DefaultDenyPatterns,
	}
}

type filterEntry struct {
	id FilterID
	fn Filter
}

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Stats is a point-in-time view of the service counters.
type Stats struct {
	Retained  uint64                `json:"retained"`
	Evicted   uint64                `json:"evicted"`
	Dropped   map[DropReason]uint64 `json:"dropped"`
	Buffered  int                   `json:"buffered"`
	Capacity  int                   `json:"capacity"`
	Listeners int                   `json:"listeners"`
	Filters   int                   `json:"filters"`
	Started   bool                  `json:"started"`
}

// Service is the log interception service.
type Service struct {
	console *console.Console
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	started   bool
	originals console.Funcs
	buf       *ring[models.LogEntry]
	policy    keywordPolicy
	seq       uint64

	filters      []filterEntry
	nextFilterID FilterID

	listeners      []listenerEntry
	nextListenerID ListenerID

	retained uint64
	evicted  uint64
	dropped  map[DropReason]uint64
}

// New creates a Service bound to c. c may be nil when only the zap hook is
// used. The service does not intercept anything until Start is called.
func New(c *console.Console, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxLogs < 1 {
		opts.MaxLogs = DefaultMaxLogs
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		console: c,
		logger:  logger,
		now:     now,
		buf:     newRing[models.LogEntry](opts.MaxLogs),
		policy:  newKeywordPolicy(opts.AllowPatterns, opts.DenyPatterns),
		dropped: make(map[DropReason]uint64),
	}
}

// Start wraps the console entry points so every call is also captured. The
// original entry point always runs first. Calling Start again while started
// is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.console == nil {
		return
	}

	orig := s.console.Funcs()
	s.originals = s.console.Swap(console.Funcs{
		Log:   s.wrap(models.LogLevelLog, orig.Log),
		Info:  s.wrap(models.LogLevelInfo, orig.Info),
		Warn:  s.wrap(models.LogLevelWarn, orig.Warn),
		Error: s.wrap(models.LogLevelError, orig.Error),
		Debug: s.wrap(models.LogLevelDebug, orig.Debug),
	})
	s.started = true
	s.logger.Debug("log capture started")
}

// Stop restores the original console entry points. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.console.Swap(s.originals)
	s.started = false
	s.logger.Debug("log capture stopped")
}

// Started reports whether console interception is active.
func (s *Service) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Service) wrap(level models.LogLevel, orig console.Func) console.Func {
	return func(msg string, args ...any) {
		orig(msg, args...)
		s.addLog(level, msg, args)
	}
}

// AddManualLog submits an entry through the same pipeline as intercepted
// output, for sources that cannot be wrapped.
func (s *Service) AddManualLog(level models.LogLevel, message string, args ...any) {
	s.addLog(level, message, args)
}

func (s *Service) addLog(level models.LogLevel, msg string, args []any) {
	s.addEntry(level, formatMessage(msg, args), args, "")
}

func (s *Service) addEntry(level models.LogLevel, message string, args []any, stack string) {
	now := s.now()
	entry := models.LogEntry{
		Level:     level,
		Message:   message,
		Args:      make([]any, len(args)),
		Timestamp: now,
	}
	copy(entry.Args, args)
	if level == models.LogLevelError || level == models.LogLevelWarn {
		if stack == "" {
			stack = captureStack()
		}
		entry.Stack = stack
	}

	s.mu.Lock()
	filters := make([]filterEntry, len(s.filters))
	copy(filters, s.filters)
	policy := s.policy
	s.mu.Unlock()

	keep, reason := s.evaluate(entry, filters, policy)

	s.mu.Lock()
	if !keep {
		s.dropped[reason]++
		s.mu.Unlock()
		return
	}
	// The sequence number is assigned with the push so ID order matches
	// buffer order.
	s.seq++
	entry.ID = strconv.FormatInt(now.UnixMilli(), 10) + "-" + strconv.FormatUint(s.seq, 10)
	if s.buf.push(entry) {
		s.evicted++
	}
	s.retained++
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	s.notify(listeners, entry)
}

// evaluate applies the retention policy. Errors and warnings are always kept.
// Custom filters, when present, replace the keyword policy entirely.
func (s *Service) evaluate(e models.LogEntry, filters []filterEntry, policy keywordPolicy) (bool, DropReason) {
	if e.Level == models.LogLevelError || e.Level == models.LogLevelWarn {
		return true, ""
	}
	if len(filters) == 0 {
		return policy.evaluate(e)
	}
	for _, f := range filters {
		if s.runFilter(f.fn, e) {
			return true, ""
		}
	}
	return false, DropFiltered
}

func (s *Service) runFilter(fn Filter, e models.LogEntry) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.reportFault("log filter panicked", r)
			ok = false
		}
	}()
	return fn(e.Clone())
}

func (s *Service) snapshotListenersLocked() []listenerEntry {
	out := make([]listenerEntry, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// notify calls each listener in registration order. Listeners run outside
// the lock, so they may call back into the service.
func (s *Service) notify(listeners []listenerEntry, e models.LogEntry) {
	for _, l := range listeners {
		s.callListener(l.fn, e.Clone())
	}
}

func (s *Service) callListener(fn Listener, e models.LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.reportFault("log listener panicked", r)
		}
	}()
	fn(e)
}

// reportFault writes through the pre-interception error entry point so the
// report is never captured again.
func (s *Service) reportFault(msg string, r any) {
	s.mu.Lock()
	errFn := s.originals.Error
	started := s.started
	s.mu.Unlock()

	if !started || errFn == nil {
		if s.console == nil {
			s.logger.Error(msg, zap.String("panic", fmt.Sprint(r)))
			return
		}
		errFn = s.console.Funcs().Error
	}
	errFn("[logcapture] "+msg, fmt.Sprint(r))
}

// GetLogs returns a copy of the buffered entries, oldest first.
func (s *Service) GetLogs() []models.LogEntry {
	s.mu.Lock()
	entries := s.buf.slice()
	s.mu.Unlock()
	for i := range entries {
		entries[i] = entries[i].Clone()
	}
	return entries
}

// GetLogsByLevel returns a copy of the buffered entries at level, oldest first.
func (s *Service) GetLogsByLevel(level models.LogLevel) []models.LogEntry {
	all := s.GetLogs()
	out := make([]models.LogEntry, 0, len(all))
	for _, e := range all {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// ClearLogs empties the buffer and notifies listeners once with the clear sentinel.
func (s *Service) ClearLogs() {
	s.mu.Lock()
	s.buf.reset()
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	s.notify(listeners, models.ClearEntry())
}

// SetMaxLogs resizes the buffer, keeping the most recent n entries. Values
// below 1 are treated as 1.
func (s *Service) SetMaxLogs(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.resize(n)
}

// MaxLogs returns the buffer capacity.
func (s *Service) MaxLogs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.capacity
}

// SetPatterns replaces the allow and deny lists of the default policy.
func (s *Service) SetPatterns(allow, deny []string) {
	p := newKeywordPolicy(allow, deny)
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

// AddFilter registers a custom retention filter.
func (s *Service) AddFilter(f Filter) FilterID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFilterID++
	s.filters = append(s.filters, filterEntry{id: s.nextFilterID, fn: f})
	return s.nextFilterID
}

// RemoveFilter unregisters a filter. Unknown IDs are ignored.
func (s *Service) RemoveFilter(id FilterID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.filters {
		if f.id == id {
			s.filters = append(s.filters[:i:i], s.filters[i+1:]...)
			return
		}
	}
}

// ClearFilters removes every custom filter, restoring the default policy.
func (s *Service) ClearFilters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = nil
}

// AddListener registers fn for every retained entry and the clear sentinel.
func (s *Service) AddListener(fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListenerID++
	s.listeners = append(s.listeners, listenerEntry{id: s.nextListenerID, fn: fn})
	return s.nextListenerID
}

// RemoveListener unregisters a listener. Unknown IDs are ignored.
func (s *Service) RemoveListener(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := make(map[DropReason]uint64, len(s.dropped))
	for k, v := range s.dropped {
		dropped[k] = v
	}
	return Stats{
		Retained:  s.retained,
		Evicted:   s.evicted,
		Dropped:   dropped,
		Buffered:  s.buf.len(),
		Capacity:  s.buf.capacity,
		Listeners: len(s.listeners),
		Filters:   len(s.filters),
		Started:   s.started,
	}
}
