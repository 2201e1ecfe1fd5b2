package elab

import (
	"fmt"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// PrimitiveKind groups primitives by their port shape.
type PrimitiveKind uint8

const (
	// PrimGate: one output followed by one or more inputs.
	PrimGate PrimitiveKind = iota
	// PrimBuffer: one or more outputs followed by one input.
	PrimBuffer
	// PrimTristate: output, input, enable.
	PrimTristate
	// PrimPull: a single output.
	PrimPull
	// PrimUser is a user-defined primitive with a fixed port count.
	PrimUser
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimGate:
		return "gate"
	case PrimBuffer:
		return "buffer"
	case PrimTristate:
		return "tristate"
	case PrimPull:
		return "pull"
	case PrimUser:
		return "udp"
	}
	panic(fmt.Sprintf("elab: impossible primitive kind %d", uint8(k)))
}

var builtinPrimitives = map[string]PrimitiveKind{
	"and": PrimGate, "nand": PrimGate, "or": PrimGate,
	"nor": PrimGate, "xor": PrimGate, "xnor": PrimGate,
	"buf": PrimBuffer, "not": PrimBuffer,
	"bufif0": PrimTristate, "bufif1": PrimTristate,
	"notif0": PrimTristate, "notif1": PrimTristate,
	"pullup": PrimPull, "pulldown": PrimPull,
}

// IsBuiltinPrimitive reports whether name is a built-in gate type.
func IsBuiltinPrimitive(name string) bool {
	_, ok := builtinPrimitives[name]
	return ok
}

// PrimitiveInstanceSymbol is an instance of a built-in gate or a
// user-defined primitive. Actuals are positional.
type PrimitiveInstanceSymbol struct {
	symbolBase
	PrimitiveType string
	PrimKind      PrimitiveKind
	// UserDef is set for user-defined primitives.
	UserDef   *Definition
	Delay     syntax.ExprID
	Actuals   []syntax.ExprID
	ArrayPath []int32
}

func (p *PrimitiveInstanceSymbol) arrayPath() []int32 { return p.ArrayPath }

// primitiveSite gathers what every declarator of one statement shares.
type primitiveSite struct {
	typeName string
	kind     PrimitiveKind
	userDef  *Definition
	delay    syntax.ExprID
	ord      uint32
	scope    *Scope
	loc      LookupLocation
}

// PrimitivesFromSyntax creates the instances of a built-in gate statement
// plus any implicit nets among its actuals.
func PrimitivesFromSyntax(c *Compilation, scope *Scope, stmt *syntax.PrimitiveInstantiation, ctx InstanceContext) ([]Symbol, []*NetSymbol) {
	loc := ctx.location(stmt.Ordinal())
	nets := c.implicitNets(scope, loc, stmt.Ordinal(), stmt.Instances, ctx.netType())
	kind, ok := builtinPrimitives[stmt.Gate]
	if !ok {
		diag.ReportError(c.reporter, diag.ElabUnknownModule, stmt.GateSpan,
			fmt.Sprintf("unknown primitive '%s'", stmt.Gate)).Emit()
		return nil, nets
	}
	site := primitiveSite{
		typeName: stmt.Gate,
		kind:     kind,
		delay:    stmt.Delay,
		ord:      stmt.Ordinal(),
		scope:    scope,
		loc:      loc,
	}
	return c.buildPrimitives(site, stmt.Instances), nets
}

// userPrimitives instantiates a user-defined primitive. A single ordered
// #(...) entry is its delay.
func (c *Compilation) userPrimitives(def *Definition, stmt *syntax.HierInstantiation, scope *Scope, loc LookupLocation, uninstantiated bool) []Symbol {
	site := primitiveSite{
		typeName: def.Name,
		kind:     PrimUser,
		userDef:  def,
		ord:      stmt.Ordinal(),
		scope:    scope,
		loc:      loc,
	}
	if stmt.Params != nil && len(stmt.Params.Items) > 0 {
		first := stmt.Params.Items[0]
		if len(stmt.Params.Items) > 1 || first.Name != "" || first.Type != nil {
			diag.ReportError(c.reporter, diag.ElabParamTooMany, stmt.Params.Span,
				fmt.Sprintf("primitive '%s' takes a delay, not parameters", def.Name)).Emit()
		} else {
			site.delay = first.Expr
		}
	}
	if !uninstantiated {
		def.NoteInstantiated()
	}
	return c.buildPrimitives(site, stmt.Instances)
}

func (c *Compilation) buildPrimitives(site primitiveSite, insts []*syntax.HierInstance) []Symbol {
	if site.delay.IsValid() {
		env := &scopeEnv{scope: site.scope, loc: site.loc, types: c.types}
		c.checkRefs(site.delay, env)
	}
	namedReported := false
	results := make([]Symbol, 0, len(insts))
	for _, hi := range insts {
		actuals := make([]syntax.ExprID, 0, len(hi.Conns))
		for _, pc := range hi.Conns {
			if pc.Kind != syntax.ConnOrdered && !namedReported {
				diag.ReportError(c.reporter, diag.PortPrimitiveNamed, pc.Span,
					fmt.Sprintf("connections to primitive '%s' must be positional", site.typeName)).Emit()
				namedReported = true
			}
			if pc.Kind == syntax.ConnWildcard {
				continue
			}
			actuals = append(actuals, pc.Expr)
		}
		c.checkPrimitiveArity(site, hi, len(actuals))

		leaf := func(coords []int32) Symbol {
			p := &PrimitiveInstanceSymbol{
				symbolBase:    newBase(SymPrimitiveInstance, hi.Name, hi.NameSpan, site.ord),
				PrimitiveType: site.typeName,
				PrimKind:      site.kind,
				UserDef:       site.userDef,
				Delay:         site.delay,
				Actuals:       actuals,
				ArrayPath:     coords,
			}
			c.alloc(p)
			return p
		}
		if len(hi.Dims) == 0 {
			results = append(results, leaf(nil))
			continue
		}
		env := &scopeEnv{scope: site.scope, loc: site.loc, types: c.types}
		ranges := c.evalDims(hi.Dims, env)
		results = append(results, c.expandArray(hi.Name, hi.NameSpan, site.ord, ranges, nil, leaf))
	}
	return results
}

func (c *Compilation) checkPrimitiveArity(site primitiveSite, hi *syntax.HierInstance, n int) {
	var ok bool
	var want string
	switch site.kind {
	case PrimGate:
		ok, want = n >= 2, "an output and at least one input"
	case PrimBuffer:
		ok, want = n >= 2, "at least one output and an input"
	case PrimTristate:
		ok, want = n == 3, "exactly 3 connections"
	case PrimPull:
		ok, want = n == 1, "exactly 1 connection"
	case PrimUser:
		ports := len(site.userDef.PortNames())
		ok, want = n == ports, fmt.Sprintf("exactly %d connections", ports)
	}
	if ok {
		return
	}
	sp := hi.NameSpan
	if sp == (source.Span{}) {
		sp = hi.Span
	}
	diag.ReportError(c.reporter, diag.PortPrimitiveArity, sp,
		fmt.Sprintf("primitive '%s' needs %s, got %d", site.typeName, want, n)).Emit()
}
