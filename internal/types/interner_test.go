package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Logic == NoTypeID || b.Error == NoTypeID || b.Int == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	if !in.IsError(b.Error) || in.IsError(b.Logic) {
		t.Fatalf("error type classification broken")
	}
	if in.Width(b.Int) != 32 || in.Width(b.Byte) != 8 || in.Width(b.Logic) != 1 {
		t.Fatalf("unexpected builtin widths")
	}
	if b.Logic == b.Reg {
		t.Fatalf("logic and reg keep distinct identities")
	}
}

func TestInternerDeduplicates(t *testing.T) {
	in := NewInterner()
	a := in.Keyword("logic", nil, []Dim{{7, 0}})
	b := in.Keyword("logic", nil, []Dim{{7, 0}})
	c := in.Keyword("logic", nil, []Dim{{0, 7}})
	if a != b {
		t.Fatalf("identical descriptors must share a TypeID")
	}
	if a == c {
		t.Fatalf("[7:0] and [0:7] are different types")
	}
	if in.Width(c) != 8 {
		t.Fatalf("width([0:7]) = %d", in.Width(c))
	}
}

func TestKeywordSigningAndErrors(t *testing.T) {
	in := NewInterner()
	signed := true
	unsigned := false
	tests := []struct {
		id   TypeID
		want string
	}{
		{in.Keyword("logic", &signed, []Dim{{3, 0}}), "logic signed[3:0]"},
		{in.Keyword("int", &unsigned, nil), "int unsigned"},
		{in.Keyword("int", nil, nil), "int"},
		{in.Keyword("bit", nil, []Dim{{1, 0}, {3, 0}}), "bit[1:0][3:0]"},
		{in.Keyword("int", nil, []Dim{{3, 0}}), "<error>"},
		{in.Keyword("wire", nil, nil), "<error>"},
	}
	for _, tt := range tests {
		if got := in.String(tt.id); got != tt.want {
			t.Errorf("String = %q, want %q", got, tt.want)
		}
	}
	if w := in.Width(in.Keyword("bit", nil, []Dim{{1, 0}, {3, 0}})); w != 8 {
		t.Fatalf("width = %d, want 8", w)
	}
}

func TestIsVector(t *testing.T) {
	in := NewInterner()
	tests := []struct {
		id   TypeID
		want bool
	}{
		{in.Keyword("logic", nil, []Dim{{7, 0}}), true},
		{in.Keyword("int", nil, nil), true},
		{in.Keyword("logic", nil, nil), false},
		{in.Keyword("bit", nil, []Dim{{1, 0}, {3, 0}}), false},
		{in.Builtins().Error, false},
	}
	for _, tt := range tests {
		if got := in.IsVector(tt.id); got != tt.want {
			t.Errorf("IsVector(%s) = %v, want %v", in.String(tt.id), got, tt.want)
		}
	}
}
