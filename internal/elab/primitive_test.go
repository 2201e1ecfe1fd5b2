package elab

import (
	"testing"

	"svelab/internal/diag"
)

func primDesign(members string) string {
	return `
[[module]]
name = "top"
members = [
  { kind = "net", names = ["y", "a", "b"], type = "logic" },
` + members + `
]

[[module]]
name = "mux"
kind = "primitive"
port_names = ["y", "a", "b"]
`
}

func TestPrimitiveInstances(t *testing.T) {
	c, f := elaborate(t, primDesign(`
  { kind = "inst", module = "and", name = "g1", conns = ["y", "a", "b"] },
  { kind = "gate", gate = "or", conns = ["y", "a", "b"] },
  { kind = "inst", module = "mux", name = "m1", params = ["3"], conns = ["y", "a", "b"] },
  { kind = "gate", gate = "buf", name = "bb", dims = ["0:1"], conns = ["y", "a"] },
`))
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	top := c.Root().TopInstances[0].Body()

	g1, ok := top.Find("g1").(*PrimitiveInstanceSymbol)
	if !ok {
		t.Fatalf("g1 = %T", top.Find("g1"))
	}
	if g1.PrimKind != PrimGate || g1.PrimitiveType != "and" || len(g1.Actuals) != 3 {
		t.Fatalf("g1 = %+v", g1)
	}

	var anon *PrimitiveInstanceSymbol
	for _, m := range top.Members() {
		if p, ok := m.(*PrimitiveInstanceSymbol); ok && p.Name() == "" {
			anon = p
		}
	}
	if anon == nil || anon.PrimitiveType != "or" {
		t.Fatalf("anonymous gate = %+v", anon)
	}

	m1 := top.Find("m1").(*PrimitiveInstanceSymbol)
	if m1.PrimKind != PrimUser || m1.UserDef != c.Definition("mux") {
		t.Fatalf("m1 = %+v", m1)
	}
	if got := c.Tree().Render(m1.Delay); got != "3" {
		t.Fatalf("m1 delay = %q", got)
	}

	arr, ok := top.Find("bb").(*InstanceArraySymbol)
	if !ok || len(arr.Elements) != 2 {
		t.Fatalf("bb = %T", top.Find("bb"))
	}
	el, ok := c.LookupPath("top.bb[1]").(*PrimitiveInstanceSymbol)
	if !ok || el.PrimKind != PrimBuffer {
		t.Fatalf("top.bb[1] = %T", c.LookupPath("top.bb[1]"))
	}
	if len(c.Instances(c.Definition("mux"))) != 0 {
		t.Fatal("user primitives are not module instances")
	}
}

func TestPrimitiveErrors(t *testing.T) {
	tests := []struct {
		name   string
		member string
		code   diag.Code
	}{
		{"buffer arity", `{ kind = "gate", gate = "buf", name = "b0", conns = ["y"] }`, diag.PortPrimitiveArity},
		{"gate arity", `{ kind = "gate", gate = "and", name = "a0", conns = ["y"] }`, diag.PortPrimitiveArity},
		{"tristate arity", `{ kind = "gate", gate = "bufif1", name = "t0", conns = ["y", "a"] }`, diag.PortPrimitiveArity},
		{"pull arity", `{ kind = "gate", gate = "pullup", name = "p0", conns = ["y", "a"] }`, diag.PortPrimitiveArity},
		{"named", `{ kind = "gate", gate = "and", name = "a1", conns = [".o(y)", ".i(a)"] }`, diag.PortPrimitiveNamed},
		{"udp arity", `{ kind = "inst", module = "mux", name = "m0", conns = ["y", "a"] }`, diag.PortPrimitiveArity},
		{"udp params", `{ kind = "inst", module = "mux", name = "m0", params = [".D(3)"], conns = ["y", "a", "b"] }`, diag.ElabParamTooMany},
		{"unknown gate", `{ kind = "gate", gate = "mystery", name = "x0", conns = ["y", "a"] }`, diag.ElabUnknownModule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := elaborate(t, primDesign(tt.member+","))
			if f.bag.Count(tt.code) != 1 {
				t.Fatalf("want one %s:\n%s", tt.code, f.dump())
			}
		})
	}
}

func TestPrimitiveNamedReportedOncePerStatement(t *testing.T) {
	_, f := elaborate(t, primDesign(`
  { kind = "gate", gate = "and", instances = [{ name = "a0", conns = [".o(y)", ".i(a)"] }, { name = "a1", conns = [".o(y)", ".i(b)"] }] },
`))
	if f.bag.Count(diag.PortPrimitiveNamed) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}
