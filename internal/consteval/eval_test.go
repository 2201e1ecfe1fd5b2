package consteval

import (
	"testing"

	"svelab/internal/diag"
	"svelab/internal/syntax"
)

type mapEnv struct {
	values   map[string]Value
	nonConst map[string]bool
	types    map[string]uint32
}

func (e mapEnv) LookupValue(name string) (Value, Lookup) {
	if e.nonConst[name] {
		return Poison(), NotConstant
	}
	if v, ok := e.values[name]; ok {
		return v, Constant
	}
	return Poison(), NotFound
}

func (e mapEnv) TypeWidth(name string) (uint32, bool) {
	w, ok := e.types[name]
	return w, ok
}

func evalString(t *testing.T, text string, env Env) (Value, *diag.Bag) {
	t.Helper()
	tree := syntax.NewTree()
	id, err := tree.ParseExpr(0, 0, text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	bag := diag.NewBag(16)
	return New(tree, diag.BagReporter{Bag: bag}).Eval(id, env), bag
}

func TestEvalConstants(t *testing.T) {
	env := mapEnv{
		values: map[string]Value{"W": Int(8), "DEPTH": Int(16), "NEG": Int(-3), "X": Sized(0xa5, 8, false)},
		types:  map[string]uint32{"T": 12},
	}
	tests := []struct {
		expr string
		want int64
	}{
		{"W - 1", 7},
		{"W * 2 + 1", 17},
		{"$clog2(DEPTH)", 4},
		{"$clog2(17)", 5},
		{"$clog2(1)", 0},
		{"$bits(T)", 12},
		{"$bits(logic [7:0])", 8},
		{"$bits(W)", 32},
		{"W > 4 ? 1 : 2", 1},
		{"NEG / 2", -1},
		{"NEG % 2", -1},
		{"2 ** 10", 1024},
		{"8'hff + 8'h1", 0},
		{"8'hff + 1", 256},
		{"1 << 4", 16},
		{"W == 8 && DEPTH != 0", 1},
		{"{4'h1, 4'h2}", 0x12},
		{"X[3:0]", 5},
		{"X[7]", 1},
		{"-NEG", 3},
		{"~4'b0101", 10},
		{"!W", 0},
	}
	for _, tt := range tests {
		v, bag := evalString(t, tt.expr, env)
		if bag.Len() != 0 {
			t.Errorf("%s: unexpected diagnostics: %v", tt.expr, bag.Items())
			continue
		}
		if v.IsPoison() || v.Int64() != tt.want {
			t.Errorf("%s = %#v, want %d", tt.expr, v, tt.want)
		}
	}
}

func TestEvalDiagnostics(t *testing.T) {
	env := mapEnv{
		values:   map[string]Value{"P": Poison(), "W": Int(4)},
		nonConst: map[string]bool{"clk": true},
		types:    map[string]uint32{"T": 8},
	}
	tests := []struct {
		expr string
		code diag.Code
		n    int
	}{
		{"missing + 1", diag.ElabUndeclaredIdentifier, 1},
		{"clk", diag.ElabParamNotConstant, 1},
		{"W / 0", diag.ElabConstEval, 1},
		{"T + 1", diag.ElabParamValueExpected, 1},
		{"req |-> ack", diag.ElabParamNotConstant, 1},
		{"(missing + 1) * (W / 0)", diag.ElabUndeclaredIdentifier, 1},
		// poison from an earlier failure is silent
		{"P + 1", 0, 0},
		{"(P * 2) / 0", 0, 0},
	}
	for _, tt := range tests {
		v, bag := evalString(t, tt.expr, env)
		if !v.IsPoison() {
			t.Errorf("%s: expected poison, got %#v", tt.expr, v)
		}
		if tt.n == 0 {
			if bag.Len() != 0 {
				t.Errorf("%s: expected silence, got %v", tt.expr, bag.Items())
			}
			continue
		}
		if bag.Count(tt.code) != tt.n {
			t.Errorf("%s: code %v count = %d, want %d (all: %v)", tt.expr, tt.code, bag.Count(tt.code), tt.n, bag.Items())
		}
	}
}

func TestValueEqualAndConvert(t *testing.T) {
	if Poison().Equal(Poison()) {
		t.Fatalf("poison must never be equal")
	}
	if !Int(255).Equal(Sized(255, 8, false)) {
		t.Fatalf("255 == 8'd255")
	}
	if Int(-1).Equal(Sized(15, 4, false)) {
		t.Fatalf("-1 != 4'd15")
	}
	if got := Int(20).Convert(4, false); got.Int64() != 4 || got.Width != 4 {
		t.Fatalf("Convert(4) = %#v", got)
	}
	if got := Sized(0xf, 4, true); got.Int64() != -1 {
		t.Fatalf("signed 4'hf = %d", got.Int64())
	}
	if !String("a").Equal(String("a")) || String("a").Equal(Int(0)) {
		t.Fatalf("string equality")
	}
}

func TestEvalStrings(t *testing.T) {
	v, bag := evalString(t, `"abc" == "abc"`, nil)
	if bag.Len() != 0 || v.Int64() != 1 {
		t.Fatalf("string compare = %#v, %v", v, bag.Items())
	}
	_, bag = evalString(t, `"abc" + 1`, nil)
	if bag.Count(diag.ElabConstEval) != 1 {
		t.Fatalf("expected one error for string arithmetic, got %v", bag.Items())
	}
}
