package host

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type entrySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *entrySink) add(batch []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, batch...)
}

func (s *entrySink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func observeChannel(t *testing.T, r *Runtime, ch Channel) (*entrySink, Observer) {
	t.Helper()
	st, ok := r.Probe(ch).(Available)
	if !ok {
		t.Fatalf("Probe(%s) not available", ch)
	}
	sink := &entrySink{}
	return sink, st.Observe(sink.add)
}

func TestRuntime_Probe(t *testing.T) {
	r := NewRuntime(RuntimeOptions{})
	for _, ch := range Channels {
		if _, ok := r.Probe(ch).(Available); !ok {
			t.Errorf("Probe(%s) = unavailable, want available", ch)
		}
	}
	st, ok := r.Probe("layout-shift").(Unavailable)
	if !ok {
		t.Fatal("Probe(layout-shift) = available, want unavailable")
	}
	if st.Reason == "" {
		t.Error("Unavailable.Reason is empty")
	}
}

func TestRuntime_Track(t *testing.T) {
	r := NewRuntime(RuntimeOptions{LongTaskThreshold: time.Nanosecond})
	sink, _ := observeChannel(t, r, ChannelLongTask)

	done := r.Track("render-report")
	time.Sleep(2 * time.Millisecond)
	done()
	done()

	got := sink.all()
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if got[0].Name != "render-report" || got[0].Duration <= 0 {
		t.Errorf("entry = %+v, want named entry with positive duration", got[0])
	}
}

func TestRuntime_TrackBelowThreshold(t *testing.T) {
	r := NewRuntime(RuntimeOptions{LongTaskThreshold: time.Hour})
	sink, _ := observeChannel(t, r, ChannelLongTask)

	r.Track("quick")()

	if got := len(sink.all()); got != 0 {
		t.Errorf("entries = %d, want 0", got)
	}
}

func TestRuntime_Disconnect(t *testing.T) {
	r := NewRuntime(RuntimeOptions{})
	sink, obs := observeChannel(t, r, ChannelPaint)

	r.MarkPaint(PaintFirst)
	obs.Disconnect()
	r.MarkPaint(PaintFirstContentful)

	got := sink.all()
	if len(got) != 1 || got[0].Name != PaintFirst {
		t.Errorf("entries = %+v, want only %s", got, PaintFirst)
	}
}

func TestRuntime_ObserverPanicIsolated(t *testing.T) {
	r := NewRuntime(RuntimeOptions{})
	st := r.Probe(ChannelPaint).(Available)
	st.Observe(func([]Entry) { panic("boom") })
	sink, _ := observeChannel(t, r, ChannelPaint)

	r.MarkPaint(PaintFirst)

	if got := len(sink.all()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestRuntime_NavigationTiming(t *testing.T) {
	r := NewRuntime(RuntimeOptions{URL: "app://main"})
	if _, ok := r.NavigationTiming(); ok {
		t.Fatal("NavigationTiming available before any mark")
	}
	sink, _ := observeChannel(t, r, ChannelNavigation)

	r.MarkNavigation(PhaseRequestStart)
	time.Sleep(time.Millisecond)
	r.MarkNavigation(PhaseResponseStart)
	r.MarkNavigation(PhaseLoadEventEnd)

	nt, ok := r.NavigationTiming()
	if !ok {
		t.Fatal("NavigationTiming unavailable after marks")
	}
	if nt.ResponseStart <= nt.RequestStart {
		t.Errorf("ResponseStart = %v, RequestStart = %v, want later response", nt.ResponseStart, nt.RequestStart)
	}
	if nt.LoadEventEnd < nt.ResponseStart {
		t.Errorf("LoadEventEnd = %v before ResponseStart = %v", nt.LoadEventEnd, nt.ResponseStart)
	}
	got := sink.all()
	if len(got) != 1 || got[0].Name != "app://main" {
		t.Errorf("navigation entries = %+v, want one for app://main", got)
	}
	if _, ok := r.LegacyTiming(); ok {
		t.Error("LegacyTiming available, want unavailable")
	}
}

func TestRuntime_HeapStats(t *testing.T) {
	r := NewRuntime(RuntimeOptions{})
	hs, ok := r.HeapStats()
	if !ok {
		t.Fatal("HeapStats unavailable")
	}
	if hs.Used == 0 || hs.Total < hs.Used || hs.Limit == 0 {
		t.Errorf("HeapStats = %+v, want used <= total and a limit", hs)
	}
}

func TestRuntime_RequestFrame(t *testing.T) {
	r := NewRuntime(RuntimeOptions{FrameRate: 200})

	fired := make(chan float64, 1)
	r.RequestFrame(func(ts float64) { fired <- ts })
	select {
	case ts := <-fired:
		if ts <= 0 {
			t.Errorf("frame ts = %v, want positive", ts)
		}
	case <-time.After(time.Second):
		t.Fatal("frame callback never fired")
	}

	cancelled := make(chan struct{}, 1)
	cancel := r.RequestFrame(func(float64) { cancelled <- struct{}{} })
	cancel()
	select {
	case <-cancelled:
		t.Error("cancelled frame callback fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRuntime_Dispatch(t *testing.T) {
	r := NewRuntime(RuntimeOptions{})
	var clicks, scrolls int
	removeClick := r.AddEventListener(EventClick, func() { clicks++ })
	r.AddEventListener(EventScroll, func() { scrolls++ })
	r.AddEventListener(EventScroll, func() { panic("listener bug") })

	r.Dispatch(EventClick)
	r.Dispatch(EventScroll)
	removeClick()
	r.Dispatch(EventClick)

	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
	if scrolls != 1 {
		t.Errorf("scrolls = %d, want 1", scrolls)
	}
}

func TestRuntime_Transport(t *testing.T) {
	const body = "hello, resource"
	tests := []struct {
		name         string
		header       http.Header
		wantTransfer int64
	}{
		{name: "network", wantTransfer: int64(len(body))},
		{name: "cached", header: http.Header{"X-Cache": {"HIT"}}, wantTransfer: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header()[k] = v
				}
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			r := NewRuntime(RuntimeOptions{})
			sink, _ := observeChannel(t, r, ChannelResource)
			client := &http.Client{Transport: r.Transport(nil)}

			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			_, _ = io.ReadAll(resp.Body)
			resp.Body.Close()

			got := sink.all()
			if len(got) != 1 {
				t.Fatalf("entries = %d, want 1", len(got))
			}
			e := got[0]
			if e.Duration <= 0 {
				t.Errorf("Duration = %v, want positive", e.Duration)
			}
			if e.TransferSize != tt.wantTransfer {
				t.Errorf("TransferSize = %d, want %d", e.TransferSize, tt.wantTransfer)
			}
			if e.DecodedBodySize != int64(len(body)) {
				t.Errorf("DecodedBodySize = %d, want %d", e.DecodedBodySize, len(body))
			}
		})
	}
}

func TestRuntime_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewRuntime(RuntimeOptions{})
	sink, _ := observeChannel(t, r, ChannelResource)
	client := &http.Client{Transport: r.Transport(nil)}

	if _, err := client.Get(url); err == nil {
		t.Fatal("GET to closed server succeeded")
	}
	got := sink.all()
	if len(got) != 1 || got[0].Duration != 0 {
		t.Errorf("entries = %+v, want one zero-duration entry", got)
	}
}
