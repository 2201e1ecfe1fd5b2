package design

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
	"svelab/internal/testkit"
)

const counterTOML = `
[directives]
timescale = "1ns/1ps"

[[module]]
name = "top"
members = [
  { kind = "net", names = ["clk", "q"], type = "logic [7:0]" },
  { kind = "inst", module = "counter", params = [".W(8)"], name = "u0", conns = [".clk", ".q(q)", ".*"] },
  { kind = "inst", module = "and", name = "g1", conns = ["q", "clk", "clk"] },
]

[[module]]
name = "counter"
params = [ { name = "W", type = "int", default = "4" } ]
ports = [
  { name = "clk", dir = "input", type = "logic" },
  { name = "q", dir = "output", type = "logic [W-1:0]" },
]
`

func newLoader(t *testing.T) (*Loader, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(100)
	return NewLoader(source.NewFileSet(), diag.BagReporter{Bag: bag}), bag
}

func TestLoadTOML(t *testing.T) {
	l, bag := newLoader(t)
	if err := l.AddSource("design.toml", []byte(counterTOML)); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 0 {
		t.Fatalf("unexpected diagnostics: %+v", bag.Items())
	}
	tree := l.Tree()
	if len(tree.Decls) != 2 {
		t.Fatalf("decls = %d, want 2", len(tree.Decls))
	}
	top, counter := tree.Decls[0], tree.Decls[1]
	if top.Name != "top" || counter.Name != "counter" {
		t.Fatalf("names = %q, %q", top.Name, counter.Name)
	}
	if top.Directives.Timescale == nil || top.Directives.Timescale.String() != "1ns/1ps" {
		t.Fatalf("timescale = %v", top.Directives.Timescale)
	}
	if counter.PortStyle != syntax.PortsAnsi || len(counter.AnsiPorts) != 2 {
		t.Fatalf("ports = %d style %d", len(counter.AnsiPorts), counter.PortStyle)
	}
	if counter.AnsiPorts[1].Dir != syntax.DirOutput {
		t.Fatalf("q direction = %v", counter.AnsiPorts[1].Dir)
	}
	if !counter.ParamPortList || len(counter.ParamPorts) != 1 {
		t.Fatalf("params = %d", len(counter.ParamPorts))
	}
	if got := tree.Render(counter.ParamPorts[0].Value.Default); got != "4" {
		t.Fatalf("W default = %q", got)
	}

	if len(top.Members) != 3 {
		t.Fatalf("top members = %d", len(top.Members))
	}
	inst, ok := top.Members[1].(*syntax.HierInstantiation)
	if !ok {
		t.Fatalf("member 1 is %T", top.Members[1])
	}
	if inst.Type != "counter" || len(inst.Instances) != 1 || inst.Instances[0].Name != "u0" {
		t.Fatalf("instantiation = %+v", inst)
	}
	pa := inst.Params.Items[0]
	if pa.Name != "W" || tree.Render(pa.Expr) != "8" {
		t.Fatalf("param assign = %+v", pa)
	}
	conns := inst.Instances[0].Conns
	wantKinds := []syntax.ConnKind{syntax.ConnNamed, syntax.ConnNamed, syntax.ConnWildcard}
	for i, k := range wantKinds {
		if conns[i].Kind != k {
			t.Errorf("conn %d kind = %d, want %d", i, conns[i].Kind, k)
		}
	}
	if conns[0].Name != "clk" || tree.Render(conns[0].Expr) != "clk" {
		t.Errorf("implicit named conn = %+v", conns[0])
	}
	if _, ok := top.Members[2].(*syntax.PrimitiveInstantiation); !ok {
		t.Fatalf("gate lowered to %T", top.Members[2])
	}
}

func TestLoadOrdinalsIncrease(t *testing.T) {
	l, _ := newLoader(t)
	if err := l.AddSource("design.toml", []byte(counterTOML)); err != nil {
		t.Fatal(err)
	}
	var last uint32
	for _, d := range l.Tree().Decls {
		if d.Ordinal <= last {
			t.Fatalf("%s ordinal %d after %d", d.Name, d.Ordinal, last)
		}
		last = d.Ordinal
		for _, m := range d.Members {
			if m.Ordinal() <= d.Ordinal {
				t.Fatalf("member ordinal %d not after its module %d", m.Ordinal(), d.Ordinal)
			}
		}
	}
}

func TestLoadSpansPointAtText(t *testing.T) {
	l, _ := newLoader(t)
	if err := l.AddSource("design.toml", []byte(counterTOML)); err != nil {
		t.Fatal(err)
	}
	inst := l.Tree().Decls[0].Members[1].(*syntax.HierInstantiation)
	sp := inst.Instances[0].NameSpan
	if got := counterTOML[sp.Start:sp.End]; got != "u0" {
		t.Fatalf("name span covers %q", got)
	}
	w := inst.Params.Items[0].Expr
	x := l.Tree().Exprs.Get(w)
	if got := counterTOML[x.Span.Start:x.Span.End]; got != "8" {
		t.Fatalf("param expr span covers %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	const src = `
module:
  - name: leaf
    kind: interface
    port_names: [a]
    members:
      - {kind: port, dir: input, type: logic, name: a}
      - {kind: modport, names: [mp]}
bind:
  - target: leaf
    module: checker_m
    name: chk
`
	l, bag := newLoader(t)
	if err := l.AddSource("d.yaml", []byte(src)); err != nil {
		t.Fatal(err)
	}
	if bag.Len() != 0 {
		t.Fatalf("diagnostics: %+v", bag.Items())
	}
	tree := l.Tree()
	if tree.Decls[0].Keyword != syntax.KwInterface || tree.Decls[0].PortStyle != syntax.PortsNonAnsi {
		t.Fatalf("leaf = %+v", tree.Decls[0])
	}
	if len(tree.Binds) != 1 || tree.Binds[0].Target != "leaf" || tree.Binds[0].Inst.Type != "checker_m" {
		t.Fatalf("binds = %+v", tree.Binds)
	}
}

func TestLoadDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code diag.Code
	}{
		{"bad expr", `[[module]]
name = "m"
members = [ { kind = "net", name = "x", init = "1 +" } ]`, diag.SynBadExpression},
		{"bad type", `[[module]]
name = "m"
params = [ { name = "P", type = "logic [", default = "1" } ]`, diag.SynBadDataType},
		{"unknown member", `[[module]]
name = "m"
members = [ { kind = "always" } ]`, diag.SynUnknownMember},
		{"missing name", `[[module]]
kind = "module"`, diag.SynMissingName},
		{"bad time", `[[module]]
name = "m"
timeunit = "3 parsecs"`, diag.SynBadTimeLiteral},
		{"bad kind", `[[module]]
name = "m"
kind = "class"`, diag.SynBadDeclKind},
		{"unknown key", `[[module]]
name = "m"
colour = "red"`, diag.SynUnknownMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, bag := newLoader(t)
			if err := l.AddSource("x.toml", []byte(tt.src)); err != nil {
				t.Fatal(err)
			}
			if bag.Count(tt.code) != 1 {
				t.Fatalf("want one %s, got %+v", tt.code, bag.Items())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, _, err := Parse("a.toml", []byte("[[module")); err == nil {
		t.Fatal("expected TOML error")
	}
	if _, _, err := Parse("a.yaml", []byte("module: [ {nope: 1} ]")); err == nil {
		t.Fatal("expected YAML unknown field error")
	}
	if _, _, err := Parse("a.sv", nil); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("err = %v, want ErrUnknownFormat", err)
	}
	if f, _, err := Parse("empty.yaml", nil); err != nil || len(f.Modules) != 0 {
		t.Fatalf("empty yaml: %v %+v", err, f)
	}
}

func TestLoadFilesKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"b", "a", "c"} {
		p := filepath.Join(dir, name+".toml")
		body := "[[module]]\nname = \"" + name + "\"\n"
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	l, _ := newLoader(t)
	if err := l.LoadFiles(context.Background(), paths); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range l.Tree().Decls {
		got = append(got, d.Name)
	}
	if len(got) != 3 || got[0] != "b" || got[1] != "a" || got[2] != "c" {
		t.Fatalf("order = %v", got)
	}
	if err := l.LoadFiles(context.Background(), []string{filepath.Join(dir, "missing.toml")}); err == nil {
		t.Fatal("expected read error")
	}
}

func TestLoadTreeInvariants(t *testing.T) {
	fs := source.NewFileSet()
	bag := diag.NewBag(100)
	l := NewLoader(fs, diag.BagReporter{Bag: bag})
	if err := l.AddSource("design.toml", []byte(counterTOML)); err != nil {
		t.Fatal(err)
	}
	nested := `
[[module]]
name = "outer"
members = [ { kind = "inst", module = "inner", name = "i0" } ]
nested = [ { name = "inner", members = [ { kind = "net", name = "n", type = "logic" } ] } ]
`
	if err := l.AddSource("nested.toml", []byte(nested)); err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckTreeInvariants(l.Tree(), fs); err != nil {
		t.Fatal(err)
	}
	if err := testkit.CheckTreeInvariants(l.Tree(), source.NewFileSet()); err == nil {
		t.Fatal("spans resolved against an empty file set")
	}
}
