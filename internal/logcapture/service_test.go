package logcapture

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/tracelens/internal/console"
	"github.com/HerbHall/tracelens/pkg/models"
	"go.uber.org/zap"
)

func newTestService(t *testing.T, maxLogs int) (*Service, *console.Console) {
	t.Helper()
	c := console.New(zap.NewNop())
	opts := DefaultOptions()
	opts.MaxLogs = maxLogs
	return New(c, zap.NewNop(), opts), c
}

func messages(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestBufferBound_MostRecentRetained(t *testing.T) {
	s, _ := newTestService(t, 5)
	for i := 0; i < 10; i++ {
		s.AddManualLog(models.LogLevelError, fmt.Sprintf("message %d", i))
	}

	got := messages(s.GetLogs())
	want := []string{"message 5", "message 6", "message 7", "message 8", "message 9"}
	if len(got) != len(want) {
		t.Fatalf("len(GetLogs()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetLogs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBufferBound_MinNM(t *testing.T) {
	tests := []struct {
		n, m int
	}{
		{n: 0, m: 3},
		{n: 2, m: 3},
		{n: 3, m: 3},
		{n: 7, m: 3},
		{n: 50, m: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,m=%d", tt.n, tt.m), func(t *testing.T) {
			s, _ := newTestService(t, tt.m)
			for i := 0; i < tt.n; i++ {
				s.AddManualLog(models.LogLevelWarn, fmt.Sprintf("w%d", i))
			}
			logs := s.GetLogs()
			want := min(tt.n, tt.m)
			if len(logs) != want {
				t.Fatalf("len = %d, want %d", len(logs), want)
			}
			for i, e := range logs {
				if exp := fmt.Sprintf("w%d", tt.n-want+i); e.Message != exp {
					t.Errorf("logs[%d] = %q, want %q", i, e.Message, exp)
				}
			}
		})
	}
}

func TestStart_Idempotent(t *testing.T) {
	s, c := newTestService(t, 10)
	s.Start()
	s.Start()
	defer s.Stop()

	c.Error("boom")

	if got := len(s.GetLogs()); got != 1 {
		t.Errorf("entries after one call with double Start = %d, want 1", got)
	}
}

func TestStart_OriginalRunsFirst(t *testing.T) {
	c := console.New(zap.NewNop())
	var order []string
	c.Swap(console.Funcs{Error: func(string, ...any) { order = append(order, "original") }})

	s := New(c, zap.NewNop(), DefaultOptions())
	s.AddListener(func(models.LogEntry) { order = append(order, "captured") })
	s.Start()
	defer s.Stop()

	c.Error("x")

	if len(order) != 2 || order[0] != "original" || order[1] != "captured" {
		t.Errorf("order = %v, want [original captured]", order)
	}
}

func TestStop_RestoresAndIsIdempotent(t *testing.T) {
	s, c := newTestService(t, 10)
	s.Start()
	s.Stop()
	s.Stop()

	c.Error("after stop")

	if got := len(s.GetLogs()); got != 0 {
		t.Errorf("entries after Stop = %d, want 0", got)
	}
	if s.Started() {
		t.Error("Started() = true after Stop")
	}
}

func TestStop_WithoutStart(t *testing.T) {
	s, c := newTestService(t, 10)
	s.Stop()
	// The console must still work.
	c.Info("fine")
}

func TestAlwaysRetainedLevels(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddFilter(func(models.LogEntry) bool { return false })

	s.AddManualLog(models.LogLevelError, "e")
	s.AddManualLog(models.LogLevelWarn, "w")
	s.AddManualLog(models.LogLevelInfo, "[monitor] i")

	got := s.GetLogs()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (error and warn only)", len(got))
	}
	if got[0].Level != models.LogLevelError || got[1].Level != models.LogLevelWarn {
		t.Errorf("levels = %v, %v", got[0].Level, got[1].Level)
	}
}

func TestDefaultPolicy(t *testing.T) {
	tests := []struct {
		name   string
		level  models.LogLevel
		msg    string
		keep   bool
		reason DropReason
	}{
		{name: "debug always dropped", level: models.LogLevelDebug, msg: "[monitor] tick", reason: DropDebug},
		{name: "info without keyword", level: models.LogLevelInfo, msg: "hello world", reason: DropUnmatched},
		{name: "log without keyword", level: models.LogLevelLog, msg: "rendered", reason: DropUnmatched},
		{name: "info with keyword", level: models.LogLevelInfo, msg: "[Performance] fps ok", keep: true},
		{name: "log with keyword", level: models.LogLevelLog, msg: "[api] GET /x", keep: true},
		{name: "noisy source", level: models.LogLevelInfo, msg: "[HMR] connected", reason: DropDenied},
		{name: "error always kept", level: models.LogLevelError, msg: "[HMR] failed", keep: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService(t, 10)
			s.AddManualLog(tt.level, tt.msg)

			kept := len(s.GetLogs()) == 1
			if kept != tt.keep {
				t.Fatalf("kept = %v, want %v", kept, tt.keep)
			}
			if !tt.keep {
				if got := s.Stats().Dropped[tt.reason]; got != 1 {
					t.Errorf("Dropped[%s] = %d, want 1", tt.reason, got)
				}
			}
		})
	}
}

func TestFilterOverride_AcceptAll(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddFilter(func(models.LogEntry) bool { return true })

	for _, lv := range models.LogLevels {
		s.AddManualLog(lv, "plain message")
	}
	if got := len(s.GetLogs()); got != len(models.LogLevels) {
		t.Errorf("len = %d, want %d (every level)", got, len(models.LogLevels))
	}
}

func TestFilters_LogicalOr(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddFilter(func(e models.LogEntry) bool { return strings.Contains(e.Message, "alpha") })
	s.AddFilter(func(e models.LogEntry) bool { return strings.Contains(e.Message, "beta") })

	s.AddManualLog(models.LogLevelInfo, "alpha")
	s.AddManualLog(models.LogLevelInfo, "beta")
	s.AddManualLog(models.LogLevelInfo, "gamma")

	got := messages(s.GetLogs())
	if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("messages = %v, want [alpha beta]", got)
	}
}

func TestRemoveAndClearFilters(t *testing.T) {
	s, _ := newTestService(t, 10)
	id := s.AddFilter(func(models.LogEntry) bool { return true })
	s.RemoveFilter(id)

	s.AddManualLog(models.LogLevelDebug, "dropped by default policy")
	if got := len(s.GetLogs()); got != 0 {
		t.Fatalf("len after RemoveFilter = %d, want 0", got)
	}

	s.AddFilter(func(models.LogEntry) bool { return true })
	s.AddFilter(func(models.LogEntry) bool { return true })
	s.ClearFilters()
	s.AddManualLog(models.LogLevelDebug, "still dropped")
	if got := len(s.GetLogs()); got != 0 {
		t.Errorf("len after ClearFilters = %d, want 0", got)
	}
	if got := s.Stats().Filters; got != 0 {
		t.Errorf("Filters = %d, want 0", got)
	}
}

func TestPanickingFilterRejects(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddFilter(func(models.LogEntry) bool { panic("bad filter") })
	s.AddFilter(func(e models.LogEntry) bool { return e.Message == "ok" })

	s.AddManualLog(models.LogLevelInfo, "ok")
	if got := len(s.GetLogs()); got != 1 {
		t.Errorf("len = %d, want 1", got)
	}
}

func TestClearLogs_SingleSentinel(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddManualLog(models.LogLevelError, "a")
	s.AddManualLog(models.LogLevelError, "b")

	var got []models.LogEntry
	s.AddListener(func(e models.LogEntry) { got = append(got, e) })
	s.ClearLogs()

	if n := len(s.GetLogs()); n != 0 {
		t.Errorf("len after ClearLogs = %d, want 0", n)
	}
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].ID != models.ClearEntryID {
		t.Errorf("notification ID = %q, want %q", got[0].ID, models.ClearEntryID)
	}
}

func TestGetLogs_ReturnsCopies(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddManualLog(models.LogLevelError, "original", "arg")

	logs := s.GetLogs()
	logs[0].Message = "mutated"
	logs[0].Args[0] = "mutated"
	_ = append(logs, models.LogEntry{Message: "extra"})

	again := s.GetLogs()
	if len(again) != 1 {
		t.Fatalf("len = %d, want 1", len(again))
	}
	if again[0].Message != "original arg" {
		t.Errorf("Message = %q, want %q", again[0].Message, "original arg")
	}
	if again[0].Args[0] != "arg" {
		t.Errorf("Args[0] = %v, want arg", again[0].Args[0])
	}
}

func TestGetLogsByLevel(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddManualLog(models.LogLevelError, "e1")
	s.AddManualLog(models.LogLevelWarn, "w1")
	s.AddManualLog(models.LogLevelError, "e2")

	got := messages(s.GetLogsByLevel(models.LogLevelError))
	if len(got) != 2 || got[0] != "e1" || got[1] != "e2" {
		t.Errorf("errors = %v, want [e1 e2]", got)
	}
	if n := len(s.GetLogsByLevel(models.LogLevelDebug)); n != 0 {
		t.Errorf("debug entries = %d, want 0", n)
	}
}

func TestSetMaxLogs_Truncates(t *testing.T) {
	s, _ := newTestService(t, 10)
	for i := 0; i < 6; i++ {
		s.AddManualLog(models.LogLevelError, fmt.Sprintf("m%d", i))
	}
	s.SetMaxLogs(2)

	got := messages(s.GetLogs())
	if len(got) != 2 || got[0] != "m4" || got[1] != "m5" {
		t.Errorf("after shrink = %v, want [m4 m5]", got)
	}

	s.AddManualLog(models.LogLevelError, "m6")
	got = messages(s.GetLogs())
	if len(got) != 2 || got[0] != "m5" || got[1] != "m6" {
		t.Errorf("after append = %v, want [m5 m6]", got)
	}

	s.SetMaxLogs(0)
	if s.MaxLogs() != 1 {
		t.Errorf("MaxLogs() = %d, want 1 after SetMaxLogs(0)", s.MaxLogs())
	}
}

func TestSetMaxLogs_Grow(t *testing.T) {
	s, _ := newTestService(t, 2)
	for i := 0; i < 3; i++ {
		s.AddManualLog(models.LogLevelError, fmt.Sprintf("m%d", i))
	}
	s.SetMaxLogs(4)
	for i := 3; i < 6; i++ {
		s.AddManualLog(models.LogLevelError, fmt.Sprintf("m%d", i))
	}
	got := messages(s.GetLogs())
	want := []string{"m2", "m3", "m4", "m5"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("logs = %v, want %v", got, want)
	}
}

func TestUniqueIDs_SameMillisecond(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.Now = func() time.Time { return fixed }
	s := New(nil, zap.NewNop(), opts)

	for i := 0; i < 100; i++ {
		s.AddManualLog(models.LogLevelError, "same ms")
	}
	seen := make(map[string]bool)
	for _, e := range s.GetLogs() {
		if seen[e.ID] {
			t.Fatalf("duplicate ID %q", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestStackOnlyForErrorAndWarn(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.AddFilter(func(models.LogEntry) bool { return true })
	for _, lv := range models.LogLevels {
		s.AddManualLog(lv, "x")
	}
	for _, e := range s.GetLogs() {
		hasStack := e.Stack != ""
		wantStack := e.Level == models.LogLevelError || e.Level == models.LogLevelWarn
		if hasStack != wantStack {
			t.Errorf("level %s: has stack = %v, want %v", e.Level, hasStack, wantStack)
		}
	}
}

func TestListenerPanic_OthersStillNotified(t *testing.T) {
	c := console.New(zap.NewNop())
	var faults []string
	c.Swap(console.Funcs{Error: func(msg string, _ ...any) { faults = append(faults, msg) }})

	s := New(c, zap.NewNop(), DefaultOptions())
	s.Start()
	defer s.Stop()

	var second int
	s.AddListener(func(models.LogEntry) { panic("listener broke") })
	s.AddListener(func(models.LogEntry) { second++ })

	s.AddManualLog(models.LogLevelError, "trigger")

	if second != 1 {
		t.Errorf("second listener calls = %d, want 1", second)
	}
	if len(faults) != 1 {
		t.Fatalf("faults reported through original = %d, want 1", len(faults))
	}
	// The fault report went through the original function, so it was not captured.
	if got := len(s.GetLogs()); got != 1 {
		t.Errorf("buffered entries = %d, want 1 (fault report must not be captured)", got)
	}
}

func TestListenerOrder(t *testing.T) {
	s, _ := newTestService(t, 10)
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		s.AddListener(func(models.LogEntry) { order = append(order, i) })
	}
	s.AddManualLog(models.LogLevelError, "x")

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestListener_ReentrantCalls(t *testing.T) {
	s, _ := newTestService(t, 10)
	var id ListenerID
	var calls int
	id = s.AddListener(func(e models.LogEntry) {
		calls++
		s.RemoveListener(id)
		s.AddManualLog(models.LogLevelWarn, "from listener")
		_ = s.GetLogs()
	})

	done := make(chan struct{})
	go func() {
		s.AddManualLog(models.LogLevelError, "outer")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant listener deadlocked")
	}

	if calls != 1 {
		t.Errorf("listener calls = %d, want 1", calls)
	}
	if got := len(s.GetLogs()); got != 2 {
		t.Errorf("entries = %d, want 2", got)
	}
}

func TestRemoveListener(t *testing.T) {
	s, _ := newTestService(t, 10)
	var calls int
	id := s.AddListener(func(models.LogEntry) { calls++ })
	s.AddManualLog(models.LogLevelError, "one")
	s.RemoveListener(id)
	s.RemoveListener(id)
	s.AddManualLog(models.LogLevelError, "two")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestConcurrentAdds(t *testing.T) {
	s, _ := newTestService(t, 50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.AddManualLog(models.LogLevelWarn, "concurrent")
			}
		}()
	}
	wg.Wait()

	if got := len(s.GetLogs()); got != 50 {
		t.Errorf("len = %d, want 50", got)
	}
	st := s.Stats()
	if st.Retained != 800 {
		t.Errorf("Retained = %d, want 800", st.Retained)
	}
	if st.Evicted != 750 {
		t.Errorf("Evicted = %d, want 750", st.Evicted)
	}
}

func TestConcurrentAdds_IDOrderMatchesBuffer(t *testing.T) {
	s, _ := newTestService(t, 500)
	s.AddFilter(func(models.LogEntry) bool {
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
		return true
	})

	var wg sync.WaitGroup
	for g := 0; g < 200; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddManualLog(models.LogLevelInfo, "concurrent")
		}()
	}
	wg.Wait()

	entries := s.GetLogs()
	if len(entries) != 200 {
		t.Fatalf("len = %d, want 200", len(entries))
	}
	prev := uint64(0)
	for i, e := range entries {
		seq, err := strconv.ParseUint(e.ID[strings.LastIndex(e.ID, "-")+1:], 10, 64)
		if err != nil {
			t.Fatalf("entry %d: bad ID %q", i, e.ID)
		}
		if seq <= prev {
			t.Fatalf("entry %d: sequence %d after %d, buffer order disagrees with IDs", i, seq, prev)
		}
		prev = seq
	}
}

func TestSetPatterns(t *testing.T) {
	s, _ := newTestService(t, 10)
	s.SetPatterns([]string{"checkout"}, nil)

	s.AddManualLog(models.LogLevelInfo, "Checkout complete")
	s.AddManualLog(models.LogLevelInfo, "[monitor] no longer allowed")

	got := messages(s.GetLogs())
	if len(got) != 1 || got[0] != "Checkout complete" {
		t.Errorf("messages = %v, want [Checkout complete]", got)
	}
}
