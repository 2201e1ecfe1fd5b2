package ui

import (
	"strings"
	"testing"

	"svelab/internal/driver"
)

func TestProgressModelTracksTargets(t *testing.T) {
	m := NewProgressModel("elab", []string{"a.toml", "b.toml"}, nil).(*progressModel)
	m.applyEvent(driver.PhaseEvent{Target: "a.toml", Name: "elaborate", Status: driver.PhaseStart})
	m.applyEvent(driver.PhaseEvent{Target: "b.toml", Status: driver.PhaseFailed})
	m.applyEvent(driver.PhaseEvent{Target: "unknown", Status: driver.PhaseDone})

	if m.items[0].status != "elaborating" || m.items[1].status != "error" {
		t.Fatalf("items = %+v", m.items)
	}
	if got := m.percent(); got < 0.94 || got > 0.96 {
		t.Fatalf("percent = %v", got)
	}
	view := m.View()
	if !strings.Contains(view, "elab (elaborating)") || !strings.Contains(view, "b.toml") {
		t.Fatalf("view:\n%s", view)
	}

	m.Update(doneMsg{})
	if !strings.Contains(m.View(), "done: elab") {
		t.Fatal("done header missing")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a-very-long-name", 8, "a-ver..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
