package diag

import (
	"testing"

	"svelab/internal/source"
)

func TestBagLimitKeepsFatal(t *testing.T) {
	b := NewBag(2)
	sp := source.Span{File: 0, Start: 1, End: 2}
	for i := 0; i < 3; i++ {
		b.Add(NewError(ElabUnknownModule, sp, "x"))
	}
	if b.Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Len())
	}
	if !b.Add(New(SevFatal, ElabRecursiveInstantiation, sp, "loop")) {
		t.Fatalf("fatal diagnostic was dropped")
	}
	if !b.HasFatal() || !b.HasErrors() {
		t.Fatalf("expected fatal and error flags")
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(10)
	late := source.Span{File: 0, Start: 10, End: 12}
	early := source.Span{File: 0, Start: 2, End: 3}
	b.Add(New(SevWarning, PortUnconnected, late, "a"))
	b.Add(New(SevError, ElabUnknownModule, early, "b"))
	b.Add(New(SevError, ElabUnknownModule, early, "b"))
	b.Add(New(SevError, PortUnknown, late, "c"))

	b.Dedup()
	if b.Len() != 3 {
		t.Fatalf("dedup len = %d, want 3", b.Len())
	}
	b.Sort()
	items := b.Items()
	if items[0].Code != ElabUnknownModule {
		t.Fatalf("first = %v, want ElabUnknownModule", items[0].Code)
	}
	if items[1].Severity != SevError || items[2].Severity != SevWarning {
		t.Fatalf("same span must order errors before warnings: %+v", items)
	}
}

func TestBagMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(PortUnknown, source.NoSpan, "a"))
	other := NewBag(4)
	other.Add(NewError(PortUnknown, source.NoSpan, "b"))
	other.Add(NewError(PortUnknown, source.NoSpan, "c"))
	a.Merge(other)
	if a.Len() != 3 || a.Cap() != 3 {
		t.Fatalf("merge: len=%d cap=%d", a.Len(), a.Cap())
	}
	if a.Count(PortUnknown) != 3 {
		t.Fatalf("count = %d", a.Count(PortUnknown))
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	sp := source.Span{Start: 4, End: 8}
	r.Report(ElabUnknownModule, SevError, sp, "unknown module 'foo'", nil)
	r.Report(ElabUnknownModule, SevError, sp, "unknown module 'foo'", nil)
	r.Report(ElabUnknownModule, SevError, sp, "unknown module 'bar'", nil)
	if bag.Len() != 2 || r.Suppressed() != 1 {
		t.Fatalf("len = %d suppressed = %d, want 2 and 1", bag.Len(), r.Suppressed())
	}
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(10)
	b := ReportError(BagReporter{Bag: bag}, PortTooMany, source.NoSpan, "too many").
		WithNote(source.Span{Start: 1, End: 2}, "declared here")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("len = %d, want 1", bag.Len())
	}
	if got := len(bag.Items()[0].Notes); got != 1 {
		t.Fatalf("notes = %d, want 1", got)
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{SynBadExpression, "SYN2001"},
		{DefUnused, "DEF3005"},
		{IOLoadFileError, "IO4001"},
		{ElabUnknownModule, "ELB5001"},
		{PortUnknown, "PRT6001"},
		{ObsTimings, "OBS7001"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("%d.ID() = %q, want %q", tt.code, got, tt.want)
		}
	}
}
