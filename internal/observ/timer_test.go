package observ

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTimerReport(t *testing.T) {
	clock := time.Unix(0, 0)
	tm := NewTimer()
	tm.now = func() time.Time { return clock }

	load := tm.Begin("load")
	clock = clock.Add(2 * time.Millisecond)
	tm.End(load, "cache hit")
	run := tm.Begin("run")
	clock = clock.Add(500 * time.Microsecond)
	tm.End(run, "")
	tm.End(99, "ignored")

	want := Report{
		TotalMS: 2.5,
		Phases: []PhaseReport{
			{Name: "load", DurationMS: 2, Note: "cache hit"},
			{Name: "run", DurationMS: 0.5},
		},
	}
	if diff := cmp.Diff(want, tm.Report()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "// cache hit") || !strings.Contains(sum, "2.500 ms") {
		t.Errorf("summary:\n%s", sum)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Errorf("empty report = %+v", r)
	}
}
