package testutil

import (
	"sync"

	"github.com/HerbHall/tracelens/pkg/models"
)

// Recorder is a thread-safe reporter that records every event it is handed.
type Recorder struct {
	name string

	mu     sync.Mutex
	events []models.PerformanceEvent
	closed bool
}

// NewRecorder returns a Recorder reporting under name.
func NewRecorder(name string) *Recorder {
	return &Recorder{name: name}
}

// Name returns the reporter name.
func (r *Recorder) Name() string { return r.name }

// Report records the event.
func (r *Recorder) Report(e models.PerformanceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []models.PerformanceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.PerformanceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Reset clears all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
