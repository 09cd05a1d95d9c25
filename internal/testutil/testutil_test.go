package testutil

import (
	"testing"
	"time"

	"github.com/HerbHall/tracelens/internal/perf/host"
	"github.com/HerbHall/tracelens/pkg/models"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestRecorder_RecordsEvents(t *testing.T) {
	r := NewRecorder("rec")
	r.Report(models.PerformanceEvent{Type: models.EventTypeRender})
	r.Report(models.PerformanceEvent{Type: models.EventTypeLoad})

	events := r.Events()
	if len(events) != 2 {
		t.Fatalf("Events len = %d, want 2", len(events))
	}
	if events[0].Type != models.EventTypeRender {
		t.Errorf("events[0].Type = %q, want render", events[0].Type)
	}
	if r.Name() != "rec" {
		t.Errorf("Name() = %q, want rec", r.Name())
	}
}

func TestRecorder_ResetAndClose(t *testing.T) {
	r := NewRecorder("rec")
	r.Report(models.PerformanceEvent{})
	r.Reset()
	if len(r.Events()) != 0 {
		t.Error("Events not empty after Reset")
	}
	_ = r.Close()
	if !r.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()

	c.Advance(5 * time.Minute)

	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("elapsed = %v, want 5m", got)
	}
}

func TestClock_Millis(t *testing.T) {
	c := NewClock()
	if got := c.Millis(); got != 0 {
		t.Fatalf("Millis() = %v at origin, want 0", got)
	}

	if got := c.AdvanceMillis(16); got != 16 {
		t.Errorf("AdvanceMillis(16) = %v, want 16", got)
	}
	c.Advance(time.Second)
	if got := c.Millis(); got != 1016 {
		t.Errorf("Millis() = %v, want 1016", got)
	}
	if got := c.Now().Sub(Epoch); got != 1016*time.Millisecond {
		t.Errorf("wall elapsed = %v, want 1.016s", got)
	}
}

func TestFakeHost_ClockDrivesNow(t *testing.T) {
	h := NewFakeHost()
	h.Advance(250)
	h.Frame(50)

	if got := h.Now(); got != 300 {
		t.Errorf("Now() = %v, want 300", got)
	}
	if got := h.Clock().Now().Sub(Epoch); got != 300*time.Millisecond {
		t.Errorf("wall elapsed = %v, want 300ms", got)
	}
}

func TestNewMetrics_Options(t *testing.T) {
	m := NewMetrics(WithFPS(24), WithURL("app://settings"))
	if m.Render.FPS != 24 {
		t.Errorf("FPS = %v, want 24", m.Render.FPS)
	}
	if m.URL != "app://settings" {
		t.Errorf("URL = %q, want app://settings", m.URL)
	}
	if m.Load.PageLoadTime != 1200 {
		t.Errorf("PageLoadTime = %v, want default 1200", m.Load.PageLoadTime)
	}
}

func TestFakeHost_Frames(t *testing.T) {
	h := NewFakeHost()
	var got []float64
	h.RequestFrame(func(ts float64) { got = append(got, ts) })
	cancel := h.RequestFrame(func(float64) { t.Error("cancelled frame ran") })
	cancel()

	if n := h.PendingFrames(); n != 1 {
		t.Fatalf("PendingFrames() = %d, want 1", n)
	}
	h.Frame(16)

	if len(got) != 1 || got[0] != 16 {
		t.Errorf("frame timestamps = %v, want [16]", got)
	}
	if n := h.PendingFrames(); n != 0 {
		t.Errorf("PendingFrames() = %d after Frame, want 0", n)
	}
}

func TestFakeHost_ProbeAndEmit(t *testing.T) {
	h := NewFakeHost()
	h.Disable(host.ChannelPaint)

	if _, ok := h.Probe(host.ChannelPaint).(host.Unavailable); !ok {
		t.Error("disabled channel reported available")
	}
	st, ok := h.Probe(host.ChannelLongTask).(host.Available)
	if !ok {
		t.Fatal("long task channel unavailable")
	}
	var n int
	obs := st.Observe(func(e []host.Entry) { n += len(e) })
	h.Emit(host.ChannelLongTask, host.Entry{Duration: 60}, host.Entry{Duration: 70})
	obs.Disconnect()
	h.Emit(host.ChannelLongTask, host.Entry{Duration: 80})

	if n != 2 {
		t.Errorf("observed = %d, want 2", n)
	}
}
