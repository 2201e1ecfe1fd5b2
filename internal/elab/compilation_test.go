package elab

import (
	"context"
	"errors"
	"testing"

	"svelab/internal/design"
	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/trace"
)

type fixture struct {
	fs   *source.FileSet
	bag  *diag.Bag
	load *design.Loader
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	fs := source.NewFileSet()
	bag := diag.NewBag(1000)
	l := design.NewLoader(fs, diag.BagReporter{Bag: bag})
	if err := l.AddSource("test.toml", []byte(src)); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 0 {
		t.Fatalf("design did not load cleanly:\n%s", diag.FormatGoldenDiagnostics(bag.Items(), fs, false))
	}
	return &fixture{fs: fs, bag: bag, load: l}
}

func (f *fixture) compile(t *testing.T, opts Options) *Compilation {
	t.Helper()
	c := NewCompilation(f.load.Tree(), opts, diag.BagReporter{Bag: f.bag})
	if err := c.Elaborate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c
}

func (f *fixture) dump() string {
	return diag.FormatGoldenDiagnostics(f.bag.Items(), f.fs, false)
}

// elaborate loads src and elaborates it with default options.
func elaborate(t *testing.T, src string) (*Compilation, *fixture) {
	t.Helper()
	f := newFixture(t, src)
	return f.compile(t, Options{}), f
}

func mustInstance(t *testing.T, c *Compilation, path string) *InstanceSymbol {
	t.Helper()
	sym := c.LookupPath(path)
	inst, ok := sym.(*InstanceSymbol)
	if !ok {
		t.Fatalf("LookupPath(%q) = %T, want *InstanceSymbol", path, sym)
	}
	return inst
}

const leafDesign = `
[[module]]
name = "top"
members = [
  { kind = "net", name = "a", type = "logic" },
  { kind = "inst", module = "leaf", name = "u", conns = [".a(a)"] },
]

[[module]]
name = "leaf"
ports = [ { name = "a", dir = "input", type = "logic" } ]
`

func TestDefaultInstantiationIsClean(t *testing.T) {
	c, f := elaborate(t, leafDesign)
	if f.bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics:\n%s", f.dump())
	}
	tops := c.Root().TopInstances
	if len(tops) != 1 || tops[0].Name() != "top" {
		t.Fatalf("tops = %v", tops)
	}
	u := mustInstance(t, c, "top.u")
	if u.Definition().Name != "leaf" || u.Body().Depth() != 2 {
		t.Fatalf("u: def %s depth %d", u.Definition().Name, u.Body().Depth())
	}
	if u.Body().State() != BodyElaborated {
		t.Fatalf("u body state = %s", u.Body().State())
	}
	if !c.Definition("leaf").IsInstantiated() {
		t.Fatal("leaf not marked instantiated")
	}
	if len(c.Validation()) != 0 {
		t.Fatalf("validation instances = %d", len(c.Validation()))
	}
}

func TestElaborateRunsOnce(t *testing.T) {
	f := newFixture(t, leafDesign)
	c := f.compile(t, Options{})
	n := c.SymbolCount()
	if err := c.Elaborate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.SymbolCount() != n || len(c.Root().TopInstances) != 1 {
		t.Fatalf("second Elaborate changed the design: %d -> %d symbols", n, c.SymbolCount())
	}
}

func TestElaborateCancelled(t *testing.T) {
	f := newFixture(t, leafDesign)
	c := NewCompilation(f.load.Tree(), Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Elaborate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(c.Root().TopInstances) != 0 {
		t.Fatal("cancelled elaboration created tops")
	}
}

func TestElaborateTraces(t *testing.T) {
	f := newFixture(t, leafDesign)
	c := NewCompilation(f.load.Tree(), Options{}, nil)
	ring := trace.NewRingTracer(256, trace.LevelDebug)
	if err := c.Elaborate(trace.WithTracer(context.Background(), ring)); err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, ev := range ring.Snapshot() {
		seen[ev.Name] = true
		if ev.Kind == trace.KindSpanEnd && ev.Name == "elaborate" && ev.Extra["repeats"] != "0" {
			t.Errorf("elaborate end extras = %v", ev.Extra)
		}
	}
	for _, name := range []string{"elaborate", "binds", "top", "top.u"} {
		if !seen[name] {
			t.Errorf("no trace event named %q", name)
		}
	}
}

func TestTopSelection(t *testing.T) {
	const src = `
[[module]]
name = "a"
members = [ { kind = "inst", module = "b", name = "ub" } ]

[[module]]
name = "b"

[[module]]
name = "p"
params = [ { name = "W" } ]

[[module]]
name = "ifc"
kind = "interface"
`
	tests := []struct {
		name  string
		opts  func(f *fixture) Options
		tops  []string
		codes map[diag.Code]int
	}{
		{
			name:  "automatic",
			opts:  func(*fixture) Options { return Options{} },
			tops:  []string{"a"},
			codes: map[diag.Code]int{diag.DefNotTopNoDefaults: 1},
		},
		{
			name: "global covers missing default",
			opts: func(f *fixture) Options {
				ov, err := BuildOverrides(f.load.Tree(), f.fs, []string{"W=4"})
				if err != nil {
					t.Fatal(err)
				}
				return Options{Overrides: ov}
			},
			tops: []string{"a", "p"},
		},
		{
			name:  "explicit",
			opts:  func(*fixture) Options { return Options{TopModules: []string{"b"}} },
			tops:  []string{"b"},
			codes: map[diag.Code]int{diag.DefUnused: 3},
		},
		{
			name:  "explicit unknown",
			opts:  func(*fixture) Options { return Options{TopModules: []string{"zz"}} },
			codes: map[diag.Code]int{diag.DefUnknownTop: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, src)
			c := f.compile(t, tt.opts(f))
			var got []string
			for _, inst := range c.Root().TopInstances {
				got = append(got, inst.Name())
			}
			if len(got) != len(tt.tops) {
				t.Fatalf("tops = %v, want %v", got, tt.tops)
			}
			for i := range got {
				if got[i] != tt.tops[i] {
					t.Fatalf("tops = %v, want %v", got, tt.tops)
				}
			}
			for code, n := range tt.codes {
				if f.bag.Count(code) != n {
					t.Errorf("%s count = %d, want %d\n%s", code, f.bag.Count(code), n, f.dump())
				}
			}
		})
	}
}

func TestNoTopModules(t *testing.T) {
	_, f := elaborate(t, `
[[module]]
name = "p"
params = [ { name = "W" } ]
`)
	if f.bag.Count(diag.DefNotTopNoDefaults) != 1 || f.bag.Count(diag.DefNoTopModules) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestUnreachedDefinitionsAreValidated(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "p"
params = [ { name = "W", type = "int" } ]
members = [
  { kind = "net", name = "x", type = "logic [W-1:0]" },
  { kind = "net", name = "y", type = "logic" },
]

[[module]]
name = "q"
params = [ { name = "D", default = "3" } ]
`)
	if f.bag.Count(diag.ElabParamNoValue) != 0 || f.bag.Count(diag.SynBadDataType) != 0 {
		t.Fatalf("degraded instance reported:\n%s", f.dump())
	}
	if len(c.Validation()) != 1 {
		t.Fatalf("validation = %d, want 1 (q is a top)", len(c.Validation()))
	}
	inst := c.Validation()[0]
	body := inst.Body()
	if !body.IsUninstantiated() || body.Definition().Name != "p" {
		t.Fatalf("validation instance = %s uninstantiated=%v", body.Definition().Name, body.IsUninstantiated())
	}
	w := body.Param("W")
	if !w.IsPoisoned(c.Types()) || w.Source != ParamFromInvalid {
		t.Fatalf("W = %v from %s", w.Value, w.Source)
	}
	x, ok := body.Find("x").(*NetSymbol)
	if !ok || !c.Types().IsError(x.Type) {
		t.Fatalf("x = %+v", body.Find("x"))
	}
	y, ok := body.Find("y").(*NetSymbol)
	if !ok || c.Types().IsError(y.Type) {
		t.Fatalf("y degraded: %+v", body.Find("y"))
	}
	if c.Definition("p").IsInstantiated() {
		t.Fatal("validation marked p instantiated")
	}
	if inst.HierarchicalPath() != "p" {
		t.Fatalf("path = %q", inst.HierarchicalPath())
	}
}

func TestDuplicateDefinition(t *testing.T) {
	f := newFixture(t, `
[[module]]
name = "m"

[[module]]
name = "m"
kind = "interface"
`)
	c := NewCompilation(f.load.Tree(), Options{}, diag.BagReporter{Bag: f.bag})
	if f.bag.Count(diag.DefDuplicate) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	if c.Definition("m").Kind != DefModule {
		t.Fatal("first definition must win")
	}
	if len(c.Definitions()) != 2 {
		t.Fatalf("definitions = %d", len(c.Definitions()))
	}
}

func TestNestedDefinitions(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "outer"
members = [ { kind = "inst", module = "inner", name = "i0" } ]
nested = [ { name = "inner", members = [ { kind = "net", name = "n", type = "logic" } ] } ]

[[module]]
name = "other"
members = [ { kind = "inst", module = "inner", name = "bad" } ]
`)
	i0 := mustInstance(t, c, "outer.i0")
	if got := i0.Definition().HierarchicalPath(); got != "outer.inner" {
		t.Fatalf("definition path = %q", got)
	}
	if c.Definition("inner") != nil {
		t.Fatal("nested definition leaked into the unit")
	}
	if f.bag.Count(diag.ElabUnknownModule) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestSelfInstantiationIsFatal(t *testing.T) {
	f := newFixture(t, `
[[module]]
name = "rec"
members = [ { kind = "inst", module = "rec", name = "r" } ]
`)
	c := f.compile(t, Options{TopModules: []string{"rec"}})
	if f.bag.Count(diag.ElabRecursiveInstantiation) != 1 || f.bag.Len() != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	if !f.bag.HasFatal() {
		t.Fatal("recursion must be fatal")
	}
	r := mustInstance(t, c, "rec.r")
	if !r.Body().IsBlocked() || len(r.Body().Members()) != 0 {
		t.Fatal("recursive body must be blocked and empty")
	}
	if c.Root().TopInstances[0].Body().IsBlocked() {
		t.Fatal("top must not be blocked")
	}
}

func TestDepthLimit(t *testing.T) {
	f := newFixture(t, `
[[module]]
name = "deep"
params = [ { name = "N", default = "0" } ]
members = [ { kind = "inst", module = "deep", params = [".N(N + 1)"], name = "d" } ]
`)
	c := f.compile(t, Options{TopModules: []string{"deep"}, MaxInstanceDepth: 4})
	if f.bag.Count(diag.ElabMaxDepth) != 1 || f.bag.Len() != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	last := mustInstance(t, c, "deep.d.d.d.d")
	if !last.Body().IsBlocked() || last.Body().Depth() != 5 {
		t.Fatalf("depth %d blocked %v", last.Body().Depth(), last.Body().IsBlocked())
	}
	if got := last.Body().Param("N").Value.Int64(); got != 4 {
		t.Fatalf("N = %d, want 4", got)
	}
	if mustInstance(t, c, "deep.d.d.d").Body().IsBlocked() {
		t.Fatal("depth 4 must still elaborate")
	}
}

func TestReentrantElaborationIsFatal(t *testing.T) {
	f := newFixture(t, leafDesign)
	c := NewCompilation(f.load.Tree(), Options{}, diag.BagReporter{Bag: f.bag})
	inst := CreateDefault(c, c.Definition("leaf"), nil)
	inst.Body().state = BodyElaborating
	if got := inst.Body().Members(); len(got) != 0 {
		t.Fatalf("members during elaboration = %d", len(got))
	}
	if f.bag.Count(diag.ElabReentrantElaboration) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestUnknownModuleReportsOnce(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "inst", module = "nosuch", params = ["8", "W"], instances = [{ name = "u1", conns = ["a", ".b(c)"] }, { name = "u2", conns = ["req |-> ack"] }] },
]
`)
	if f.bag.Len() != 1 || f.bag.Count(diag.ElabUnknownModule) != 1 {
		t.Fatalf("want exactly one diagnostic:\n%s", f.dump())
	}
	u1, ok := c.LookupPath("top.u1").(*UnknownModuleSymbol)
	if !ok {
		t.Fatalf("u1 = %T", c.LookupPath("top.u1"))
	}
	if u1.ModuleName != "nosuch" || u1.ParamValues[0].Int64() != 8 || !u1.ParamValues[1].IsPoison() {
		t.Fatalf("u1 = %+v", u1)
	}
	names := u1.PortNames()
	if len(names) != 2 || names[0] != "" || names[1] != "b" {
		t.Fatalf("port names = %q", names)
	}
	if u1.IsChecker() {
		t.Fatal("u1 has no property actuals")
	}
	u2 := c.LookupPath("top.u2").(*UnknownModuleSymbol)
	if !u2.IsChecker() {
		t.Fatal("u2 should look like a checker")
	}
	// implicit nets for the bare identifiers
	top := c.Root().TopInstances[0].Body()
	for _, n := range []string{"a", "c"} {
		if net, ok := top.Find(n).(*NetSymbol); !ok || !net.Implicit {
			t.Errorf("no implicit net %q", n)
		}
	}
}

func TestInstanceArrays(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "inst", module = "leaf", name = "u", dims = ["[3:0]"] },
  { kind = "inst", module = "leaf", name = "v", dims = ["[1:3]"] },
  { kind = "inst", module = "leaf", name = "m", dims = ["[0:1]", "[2]"] },
]

[[module]]
name = "leaf"
`)
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	u, ok := c.LookupPath("top.u").(*InstanceArraySymbol)
	if !ok {
		t.Fatalf("u = %T", c.LookupPath("top.u"))
	}
	if len(u.Elements) != 4 || u.Range.String() != "[3:0]" {
		t.Fatalf("u: %d elements, range %s", len(u.Elements), u.Range)
	}
	for i, e := range u.Elements {
		inst := e.(*InstanceSymbol)
		if len(inst.ArrayPath) != 1 || inst.ArrayPath[0] != int32(i) {
			t.Errorf("u element %d has coordinates %v", i, inst.ArrayPath)
		}
	}
	v2 := mustInstance(t, c, "top.v[2]")
	if v2.HierarchicalPath() != "top.v[2]" || v2.ArrayName() != "v" {
		t.Fatalf("v[2]: path %q array %q", v2.HierarchicalPath(), v2.ArrayName())
	}
	if c.LookupPath("top.v[0]") != nil || c.LookupPath("top.v[4]") != nil {
		t.Fatal("out-of-range element resolved")
	}
	m10 := mustInstance(t, c, "top.m[1][0]")
	if m10.HierarchicalPath() != "top.m[1][0]" {
		t.Fatalf("m[1][0] path = %q", m10.HierarchicalPath())
	}
	dims := m10.ArrayDimensions()
	if len(dims) != 2 || dims[0].String() != "[0:1]" || dims[1].String() != "[0:1]" {
		t.Fatalf("dims = %v", dims)
	}
	if got := len(c.Instances(c.Definition("leaf"))); got != 11 {
		t.Fatalf("leaf instances = %d, want 11", got)
	}
}

func TestBadArrayDimension(t *testing.T) {
	_, f := elaborate(t, `
[[module]]
name = "top"
members = [ { kind = "inst", module = "leaf", name = "u", dims = ["[0]"] } ]

[[module]]
name = "leaf"
`)
	if f.bag.Count(diag.ElabBadArrayDim) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestHierarchicalLookup(t *testing.T) {
	c, _ := elaborate(t, `
[[module]]
name = "top"
members = [ { kind = "inst", module = "mid", name = "sub", dims = ["[0:3]"] } ]

[[module]]
name = "mid"
members = [
  { kind = "inst", module = "leaf", name = "leaf" },
  { kind = "if", cond = "1", label = "g", then = [ { kind = "inst", module = "leaf", name = "x" } ] },
]

[[module]]
name = "leaf"
`)
	leaf := mustInstance(t, c, "top.sub[2].leaf")
	if got := leaf.HierarchicalPath(); got != "top.sub[2].leaf" {
		t.Fatalf("path = %q", got)
	}
	if got := mustInstance(t, c, "top.sub[0].g.x").HierarchicalPath(); got != "top.sub[0].g.x" {
		t.Fatalf("generate path = %q", got)
	}
	for _, bad := range []string{"", "top..sub", "top.sub[", "top.sub[x]", "nope", "top.sub.leaf"} {
		if sym := c.LookupPath(bad); sym != nil {
			t.Errorf("LookupPath(%q) = %s", bad, sym.Name())
		}
	}
}

func TestBodiesAreNeverShared(t *testing.T) {
	c, _ := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "inst", module = "leaf", params = [".W(4)"], instances = [ { name = "a" }, { name = "b" } ] },
  { kind = "inst", module = "leaf", params = [".W(8)"], name = "c" },
  { kind = "inst", module = "leaf", params = [".W(2 + 2)"], name = "d" },
]

[[module]]
name = "leaf"
params = [ { name = "W", default = "1" } ]
`)
	a := mustInstance(t, c, "top.a").Body()
	b := mustInstance(t, c, "top.b").Body()
	cc := mustInstance(t, c, "top.c").Body()
	d := mustInstance(t, c, "top.d").Body()
	if a == b || a == d {
		t.Fatal("instances share a body")
	}
	if !a.HasSameType(b) || !a.HasSameType(d) || a.HasSameType(cc) {
		t.Fatal("HasSameType mismatch")
	}
	if a.TypeClass() != b.TypeClass() || a.TypeClass() != d.TypeClass() || a.TypeClass() == cc.TypeClass() {
		t.Fatal("type classes mismatch")
	}
	if a.TypeClass().Len() != 3 || a.TypeClass().Definition().Name != "leaf" {
		t.Fatalf("class of a has %d bodies", a.TypeClass().Len())
	}
	// top, leaf W=4, leaf W=8
	if c.BodyClassCount() != 3 {
		t.Fatalf("classes = %d, want 3", c.BodyClassCount())
	}
}

func TestHasSameType(t *testing.T) {
	f := newFixture(t, `
[[module]]
name = "leaf"
params = [
  { name = "W", default = "4" },
  { name = "T", kind = "type", default = "logic" },
]

[[module]]
name = "other"
params = [ { name = "W", default = "4" } ]
`)
	c := NewCompilation(f.load.Tree(), Options{}, nil)
	leaf, other := c.Definition("leaf"), c.Definition("other")
	x := BodyFromDefaults(c, leaf, false, nil)
	y := BodyFromDefaults(c, leaf, false, nil)
	if !x.HasSameType(y) || x.TypeClass() != y.TypeClass() {
		t.Fatal("equal defaults must match")
	}
	if x.HasSameType(BodyFromDefaults(c, other, false, nil)) {
		t.Fatal("different definitions matched")
	}
	if x.HasSameType(nil) {
		t.Fatal("nil matched")
	}
	p := CreateInvalid(c, leaf).Body()
	q := CreateInvalid(c, leaf).Body()
	if p.HasSameType(q) {
		t.Fatal("poisoned parameters must never compare equal")
	}
	if p.TypeClass() != nil || BodyFromDefaults(c, leaf, true, nil).TypeClass() != nil {
		t.Fatal("uninstantiated bodies joined a type class")
	}
	// leaf and other
	if c.BodyClassCount() != 2 {
		t.Fatalf("classes = %d, want 2", c.BodyClassCount())
	}
}

func TestParameterOverrides(t *testing.T) {
	const src = `
[[module]]
name = "top"
params = [ { name = "TOPW", default = "1" } ]
members = [
  { kind = "inst", module = "leaf", params = [".W(2)"], name = "u" },
  { kind = "inst", module = "leaf", name = "arr", dims = ["[0:2]"] },
]

[[module]]
name = "leaf"
params = [
  { name = "W", default = "1" },
  { name = "L", default = "7", local = true },
]
`
	f := newFixture(t, src)
	ov, err := BuildOverrides(f.load.Tree(), f.fs, []string{
		"top.u.W=16",
		"top.arr[1].W=5",
		"top.arr.W=9",
		"TOPW=3",
		"top.u.NOPE=1",
	})
	if err != nil {
		t.Fatal(err)
	}
	c := f.compile(t, Options{Overrides: ov})
	check := func(path, param string, want int64, src ParamSource) {
		t.Helper()
		p := mustInstance(t, c, path).Body().Param(param)
		if p.Value.Int64() != want || p.Source != src {
			t.Errorf("%s.%s = %s from %s, want %d from %s", path, param, p.Value, p.Source, want, src)
		}
	}
	check("top", "TOPW", 3, ParamFromOverride)
	check("top.u", "W", 16, ParamFromOverride)
	check("top.u", "L", 7, ParamFromDefault)
	check("top.arr[1]", "W", 5, ParamFromOverride)
	check("top.arr[0]", "W", 9, ParamFromOverride)
	if f.bag.Count(diag.ElabParamOverrideUnknown) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestParameterAssignmentErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
		code   diag.Code
	}{
		{"unknown name", `".Q(1)"`, diag.ElabParamUnknownName},
		{"local", `".L(1)"`, diag.ElabParamOverrideLocal},
		{"too many", `"1", "2", "3"`, diag.ElabParamTooMany},
		{"mixed", `"1", ".T(int)"`, diag.ElabParamMixedAssign},
		{"duplicate", `".W(1)", ".W(2)"`, diag.ElabParamDuplicate},
		{"type for value", `".W(logic)"`, diag.ElabParamValueExpected},
		{"value for type", `".T(3)"`, diag.ElabParamTypeExpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := elaborate(t, `
[[module]]
name = "top"
members = [ { kind = "inst", module = "leaf", params = [`+tt.params+`], name = "u" } ]

[[module]]
name = "leaf"
params = [
  { name = "W", default = "1" },
  { name = "T", kind = "type", default = "logic" },
]
members = [ { kind = "param", name = "L", default = "0", local = true } ]
`)
			if f.bag.Count(tt.code) != 1 {
				t.Fatalf("want one %s:\n%s", tt.code, f.dump())
			}
		})
	}
}

func TestMissingParameterValue(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "top"
members = [ { kind = "inst", module = "leaf", name = "u" } ]

[[module]]
name = "leaf"
params = [ { name = "W" } ]
`)
	if f.bag.Count(diag.ElabParamNoValue) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	w := mustInstance(t, c, "top.u").Body().Param("W")
	if w.Source != ParamFromNothing || !w.IsPoisoned(c.Types()) {
		t.Fatalf("W = %s from %s", w.Value, w.Source)
	}
}
