package logcapture

import (
	"strings"
	"testing"

	"github.com/HerbHall/tracelens/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_ExportsStats(t *testing.T) {
	s, _ := newTestService(t, 2)
	s.AddManualLog(models.LogLevelError, "a")
	s.AddManualLog(models.LogLevelError, "b")
	s.AddManualLog(models.LogLevelError, "c")
	s.AddManualLog(models.LogLevelDebug, "d")

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(s))

	expected := `
# HELP tracelens_logs_retained_total Log entries stored in the capture buffer.
# TYPE tracelens_logs_retained_total counter
tracelens_logs_retained_total 3
# HELP tracelens_logs_evicted_total Log entries evicted from the capture buffer on overflow.
# TYPE tracelens_logs_evicted_total counter
tracelens_logs_evicted_total 1
# HELP tracelens_logs_buffered Log entries currently buffered.
# TYPE tracelens_logs_buffered gauge
tracelens_logs_buffered 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"tracelens_logs_retained_total", "tracelens_logs_evicted_total", "tracelens_logs_buffered")
	if err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}

	if n := testutil.CollectAndCount(NewCollector(s), "tracelens_logs_dropped_total"); n != 4 {
		t.Errorf("dropped series = %d, want 4 (one per reason)", n)
	}
}
