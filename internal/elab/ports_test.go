package elab

import (
	"testing"

	"svelab/internal/diag"
	"svelab/internal/syntax"
)

func portDesign(topMembers string) string {
	return `
[[module]]
name = "top"
members = [
  { kind = "net", names = ["w", "z"], type = "logic" },
  { kind = "net", name = "bus", type = "logic [3:0]" },
` + topMembers + `
]

[[module]]
name = "leaf"
ports = [
  { name = "a", dir = "input", type = "logic" },
  { name = "y", dir = "output", type = "logic" },
]
`
}

func TestPortConnectionErrors(t *testing.T) {
	tests := []struct {
		name  string
		conns string
		code  diag.Code
	}{
		{"too many", `"w", "z", "w"`, diag.PortTooMany},
		{"unknown", `".a(w)", ".y(z)", ".q(w)"`, diag.PortUnknown},
		{"mixed", `"w", ".y(z)"`, diag.PortMixedConnections},
		{"duplicate", `".a(w)", ".a(z)", ".y(z)"`, diag.PortDuplicateConnection},
		{"output not lvalue", `".a(w)", ".y(1)"`, diag.PortOutputNotLValue},
		{"unconnected input", `".y(z)"`, diag.PortUnconnected},
		{"width", `".a(bus)", ".y(z)"`, diag.PortWidthMismatch},
		{"wildcard miss", `".y(z)", ".*"`, diag.PortWildcardUnresolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := elaborate(t, portDesign(`{ kind = "inst", module = "leaf", name = "u", conns = [`+tt.conns+`] },`))
			if f.bag.Count(tt.code) != 1 {
				t.Fatalf("want one %s:\n%s", tt.code, f.dump())
			}
		})
	}
}

func TestSelectWidthsAgainstPorts(t *testing.T) {
	_, f := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "net", name = "bus", type = "logic [3:0]" },
  { kind = "net", name = "grid", type = "logic [1:0][3:0]" },
  { kind = "inst", module = "nib", name = "u", conns = [".n(grid[1])"] },
  { kind = "inst", module = "nib", name = "v", conns = [".n(bus[2])"] },
  { kind = "inst", module = "nib", name = "w", conns = [".n(bus[3:0])"] },
]

[[module]]
name = "nib"
ports = [ { name = "n", dir = "input", type = "logic [3:0]" } ]
`)
	// grid[1] is a whole row, bus[2] a single bit
	if f.bag.Count(diag.PortWidthMismatch) != 1 || f.bag.Len() != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestPortConnectionsResolve(t *testing.T) {
	c, f := elaborate(t, portDesign(`
  { kind = "net", name = "a", type = "logic" },
  { kind = "inst", module = "leaf", name = "u", conns = [".y(z)", ".*"] },
  { kind = "inst", module = "leaf", name = "v", conns = ["w", "z"] },
  { kind = "inst", module = "leaf", name = "e", conns = [".a()", ".y()"] },
`))
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	u := mustInstance(t, c, "top.u")
	conns := u.PortConnections()
	if len(conns) != 2 {
		t.Fatalf("conns = %d", len(conns))
	}
	if !conns[0].Implicit || conns[1].Implicit {
		t.Fatalf("wildcard flags: a=%v y=%v", conns[0].Implicit, conns[1].Implicit)
	}
	if got := c.Tree().Render(conns[1].Expr); got != "z" {
		t.Fatalf("y actual = %q", got)
	}
	if pc := u.PortConnection(u.Body().FindPort("y")); pc != conns[1] {
		t.Fatal("PortConnection lookup mismatch")
	}
	v := mustInstance(t, c, "top.v")
	if got := c.Tree().Render(v.PortConnections()[0].Expr); got != "w" {
		t.Fatalf("ordered actual = %q", got)
	}
	e := mustInstance(t, c, "top.e")
	for _, pc := range e.PortConnections() {
		if !pc.IsUnconnected() || !pc.Explicit {
			t.Errorf("%s: unconnected=%v explicit=%v", pc.Port.Name(), pc.IsUnconnected(), pc.Explicit)
		}
	}
}

func TestNonAnsiPorts(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "net", names = ["p", "q"], type = "logic" },
  { kind = "inst", module = "old", name = "o", conns = ["p", "q"] },
]

[[module]]
name = "old"
port_names = ["a", "b", "c"]
members = [
  { kind = "port", dir = "input", type = "logic", names = ["a"] },
  { kind = "port", dir = "output", type = "logic", names = ["b", "x"] },
]
`)
	if f.bag.Count(diag.PortNonAnsiMissingDecl) != 1 || f.bag.Count(diag.PortNonAnsiNotInHeader) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	body := mustInstance(t, c, "top.o").Body()
	ports := body.PortList()
	if len(ports) != 3 {
		t.Fatalf("ports = %d", len(ports))
	}
	if b := ports[1].(*PortSymbol); b.Direction != syntax.DirOutput {
		t.Fatalf("b direction = %s", b.Direction)
	}
}

func TestNonAnsiPortTakesBodyNetType(t *testing.T) {
	c, f := elaborate(t, `
[[module]]
name = "top"
members = [
  { kind = "net", name = "p", type = "logic [7:0]" },
  { kind = "inst", module = "old", name = "o", conns = ["p"] },
]

[[module]]
name = "old"
port_names = ["a"]
members = [
  { kind = "port", dir = "input", names = ["a"] },
  { kind = "net", name = "a", type = "logic [7:0]" },
]
`)
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	body := mustInstance(t, c, "top.o").Body()
	a, ok := body.FindPort("a").(*PortSymbol)
	if !ok {
		t.Fatal("port a not found")
	}
	if w := c.Types().Width(a.Type); w != 8 {
		t.Fatalf("port a width = %d, want 8", w)
	}
	for _, m := range body.Members() {
		if _, isNet := m.(*NetSymbol); isNet && m.Name() == "a" {
			t.Fatal("body net a was declared next to port a")
		}
	}
}

func TestNonAnsiPortTypeConflict(t *testing.T) {
	_, f := elaborate(t, `
[[module]]
name = "old"
port_names = ["a", "b"]
members = [
  { kind = "port", dir = "input", type = "logic [3:0]", names = ["a"] },
  { kind = "port", dir = "output", type = "[1:0]", names = ["b"] },
  { kind = "net", name = "a", type = "logic [7:0]" },
  { kind = "var", name = "b", type = "bit [1:0]" },
]
`)
	if f.bag.Count(diag.PortNonAnsiTypeConflict) != 1 || f.bag.Count(diag.ElabDuplicateMember) != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

func TestAnsiPortDeclarationInBody(t *testing.T) {
	_, f := elaborate(t, `
[[module]]
name = "m"
ports = [ { name = "a", dir = "input", type = "logic" } ]
members = [ { kind = "port", dir = "input", names = ["b"] } ]
`)
	if f.bag.Count(diag.PortDeclInAnsiModule) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}

const ifaceDesign = `
[[module]]
name = "bus_if"
kind = "interface"
members = [
  { kind = "net", name = "data", type = "logic [7:0]" },
  { kind = "modport", names = ["host", "dev"] },
]

[[module]]
name = "other_if"
kind = "interface"

[[module]]
name = "dev"
ports = [ { name = "b", interface = "bus_if", modport = "dev" } ]
`

func TestInterfacePorts(t *testing.T) {
	tests := []struct {
		name    string
		members string
		code    diag.Code
	}{
		{"instance", `{ kind = "inst", module = "dev", name = "d", conns = [".b(bi)"] },`, 0},
		{"modport", `{ kind = "inst", module = "dev", name = "d", conns = [".b(bi.dev)"] },`, 0},
		{"wildcard", `{ kind = "inst", module = "bus_if", name = "b" },
  { kind = "inst", module = "dev", name = "d", conns = [".*"] },`, 0},
		{"unconnected", `{ kind = "inst", module = "dev", name = "d" },`, diag.PortInterfaceUnconnected},
		{"wrong interface", `{ kind = "inst", module = "dev", name = "d", conns = [".b(oi)"] },`, diag.PortInterfaceMismatch},
		{"modport conflict", `{ kind = "inst", module = "dev", name = "d", conns = [".b(bi.host)"] },`, diag.PortInterfaceMismatch},
		{"unknown modport", `{ kind = "inst", module = "dev", name = "d", conns = [".b(bi.nope)"] },`, diag.ElabUnknownModport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := ifaceDesign + `
[[module]]
name = "top"
members = [
  { kind = "inst", module = "bus_if", name = "bi" },
  { kind = "inst", module = "other_if", name = "oi" },
  ` + tt.members + `
]
`
			c, f := elaborate(t, src)
			if tt.code == 0 {
				if f.bag.Len() != 0 {
					t.Fatalf("diagnostics:\n%s", f.dump())
				}
				pc := mustInstance(t, c, "top.d").PortConnections()[0]
				if _, ok := pc.Iface.(*InstanceSymbol); !ok || pc.Modport != "dev" {
					t.Fatalf("iface = %v modport %q", pc.Iface, pc.Modport)
				}
				return
			}
			if f.bag.Count(tt.code) != 1 {
				t.Fatalf("want one %s:\n%s", tt.code, f.dump())
			}
		})
	}
}

func TestVirtualInterface(t *testing.T) {
	c, f := elaborate(t, ifaceDesign+`
[[module]]
name = "top"
members = [
  { kind = "inst", module = "bus_if", name = "bi" },
  { kind = "inst", module = "dev", name = "d", conns = [".b(bi)"] },
  { kind = "virtual", interface = "bus_if", modport = "host", name = "vif" },
  { kind = "virtual", interface = "dev", name = "bad" },
]
`)
	if f.bag.Count(diag.ElabNotAnInterface) != 1 || f.bag.Len() != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	top := c.Root().TopInstances[0].Body()
	vif := top.Find("vif").(*VariableSymbol)
	if vif.Virtual == nil || !vif.Virtual.IsVirtual() || vif.Modport != "host" {
		t.Fatalf("vif = %+v", vif)
	}
	if got := len(c.Instances(c.Definition("bus_if"))); got != 1 {
		t.Fatalf("virtual instance registered: %d bus_if instances", got)
	}
	if top.Find("bad").(*VariableSymbol).Virtual != nil {
		t.Fatal("non-interface produced a virtual instance")
	}
	if vif.Virtual.Body().TypeClass() != nil {
		t.Fatal("virtual instance body joined a type class")
	}
	// top, bi, d; the virtual and validation bodies are not counted
	if c.BodyClassCount() != 3 {
		t.Fatalf("classes = %d, want 3", c.BodyClassCount())
	}
}

func TestImplicitNets(t *testing.T) {
	c, f := elaborate(t, portDesign(`
  { kind = "inst", module = "leaf", name = "u", conns = ["n1", "n2"] },
  { kind = "assign", lhs = "n3", rhs = "n1" },
`))
	if f.bag.Len() != 0 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
	top := c.Root().TopInstances[0].Body()
	for _, name := range []string{"n1", "n2", "n3"} {
		net, ok := top.Find(name).(*NetSymbol)
		if !ok || !net.Implicit || net.NetType != "wire" {
			t.Errorf("%s = %+v", name, top.Find(name))
		}
	}
}

func TestDefaultNetTypeNone(t *testing.T) {
	_, f := elaborate(t, `
[directives]
default_nettype = "none"

[[module]]
name = "top"
members = [ { kind = "inst", module = "leaf", name = "u", conns = ["n1"] } ]

[[module]]
name = "leaf"
ports = [ { name = "a", dir = "input", type = "logic" } ]
`)
	if f.bag.Count(diag.ElabImplicitNetNone) != 1 {
		t.Fatalf("diagnostics:\n%s", f.dump())
	}
}
