package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	idx := tm.Begin("load")
	tm.End(idx, "2 files")
	tm.End(99, "ignored")
	tm.Count("instances", 3)
	tm.Count("instances", 2)
	tm.Count("bodies", 1)

	r := tm.Report()
	if len(r.Phases) != 1 || r.Phases[0].Note != "2 files" {
		t.Fatalf("unexpected phases: %+v", r.Phases)
	}
	if len(r.Counters) != 2 || r.Counters[0].Name != "bodies" || r.Counters[1].Value != 5 {
		t.Fatalf("unexpected counters: %+v", r.Counters)
	}
	sum := tm.Summary()
	for _, want := range []string{"load", "total", "instances"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary misses %q:\n%s", want, sum)
		}
	}
}
