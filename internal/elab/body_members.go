package elab

import (
	"fmt"

	"svelab/internal/diag"
	"svelab/internal/syntax"
)

// memberElaborator populates one scope (a body or a generate block) from
// member syntax.
type memberElaborator struct {
	body      *InstanceBody
	scope     *Scope
	owner     Symbol
	overrides *ParamOverrideNode
	// topLevel is set for the body scope, whose parameters already exist.
	topLevel bool
	genIndex int
}

func (e *memberElaborator) env(ord uint32) *scopeEnv {
	return &scopeEnv{scope: e.scope, loc: Before(ord), types: e.body.comp.types}
}

func (e *memberElaborator) add(sym Symbol) {
	sym.base().parent = e.owner.ID()
	prev := e.scope.insert(sym)
	if prev == nil {
		return
	}
	if _, ok := sym.(*ModportSymbol); ok {
		// already reported with the definition
		return
	}
	diag.ReportError(e.body.comp.reporter, diag.ElabDuplicateMember, sym.Span(),
		fmt.Sprintf("redefinition of '%s'", sym.Name())).
		WithNote(prev.Span(), "previous definition here").Emit()
}

func (e *memberElaborator) context() InstanceContext {
	return InstanceContext{
		Body:           e.body,
		Overrides:      e.overrides,
		Uninstantiated: e.body.uninstantiated,
	}
}

func (e *memberElaborator) members(ms []syntax.Member) {
	for _, m := range ms {
		e.member(m)
	}
}

func (e *memberElaborator) member(m syntax.Member) {
	c := e.body.comp
	switch n := m.(type) {
	case *syntax.ParamMember:
		if !e.topLevel {
			e.blockParam(n)
		}
	case *syntax.PortDecl:
		// consumed by buildPorts
	case *syntax.NetDecl:
		env := e.env(n.Ordinal())
		ty := c.resolveType(n.Type, env)
		netType := n.NetType
		if netType == "" {
			netType = "wire"
		}
		for _, d := range n.Declarators {
			if e.body.portDecls[d] {
				c.checkRefs(d.Init, env)
				continue
			}
			net := &NetSymbol{
				symbolBase: newBase(SymNet, d.Name, d.Span, n.Ordinal()),
				NetType:    netType,
				Type:       ty,
				Init:       d.Init,
			}
			c.alloc(net)
			e.add(net)
			c.checkRefs(d.Init, env)
		}
	case *syntax.VarDecl:
		env := e.env(n.Ordinal())
		ty := c.resolveType(n.Type, env)
		for _, d := range n.Declarators {
			if e.body.portDecls[d] {
				c.checkRefs(d.Init, env)
				continue
			}
			v := &VariableSymbol{
				symbolBase: newBase(SymVariable, d.Name, d.Span, n.Ordinal()),
				Type:       ty,
				Init:       d.Init,
			}
			c.alloc(v)
			e.add(v)
			c.checkRefs(d.Init, env)
		}
	case *syntax.ContinuousAssign:
		e.continuousAssign(n)
	case *syntax.HierInstantiation:
		results, nets := InstancesFromSyntax(c, e.scope, n, e.context())
		for _, net := range nets {
			e.add(net)
		}
		for _, sym := range results {
			e.add(sym)
		}
	case *syntax.PrimitiveInstantiation:
		results, nets := PrimitivesFromSyntax(c, e.scope, n, e.context())
		for _, net := range nets {
			e.add(net)
		}
		for _, sym := range results {
			e.add(sym)
		}
	case *syntax.BindDirective:
		// applied by the compilation once the hierarchy exists
	case *syntax.GenerateIf:
		e.generateIf(n)
	case *syntax.ModportDecl:
		if e.body.def.Kind != DefInterface {
			return
		}
		for _, name := range n.Names {
			mp := &ModportSymbol{symbolBase: newBase(SymModport, name.Text, name.Span, n.Ordinal())}
			c.alloc(mp)
			e.add(mp)
		}
	case *syntax.VirtualInterfaceVar:
		e.virtualVar(n)
	default:
		panic(fmt.Sprintf("elab: unexpected member %T", m))
	}
}

// blockParam declares a parameter local to a generate block.
func (e *memberElaborator) blockParam(n *syntax.ParamMember) {
	c := e.body.comp
	d := n.Decl
	p := newParameterSymbol(ParamDecl{
		Kind:    d.Kind,
		Name:    d.Name,
		Span:    d.NameSpan,
		Ordinal: d.Ordinal,
		IsLocal: true,
		Value:   d.Value,
		Type:    d.Type,
	})
	c.alloc(p)
	env := e.env(d.Ordinal)
	p.Source = ParamFromDefault
	switch {
	case !p.Decl.HasDefault():
		diag.ReportError(c.reporter, diag.ElabParamNoValue, d.NameSpan,
			fmt.Sprintf("local parameter '%s' has no value", d.Name)).Emit()
		p.Source = ParamFromNothing
		p.poison(c.types)
	case p.IsTypeParam():
		p.Type = c.resolveType(d.Type.Default, env)
	default:
		p.Init = d.Value.Default
		p.Value = c.eval.Eval(d.Value.Default, env)
		c.convertToDeclared(p, env)
	}
	e.add(p)
}

func (e *memberElaborator) continuousAssign(n *syntax.ContinuousAssign) {
	c := e.body.comp
	env := e.env(n.Ordinal())
	// An undeclared bare identifier on the left declares an implicit net.
	if name, ok := c.tree.Exprs.IsBareIdent(n.LHS); ok && env.lookup(name) == nil {
		sp := c.tree.Exprs.Get(n.LHS).Span
		if net := c.newImplicitNet(name, sp, n.Ordinal(), e.body.defaultNetType()); net != nil {
			e.add(net)
		}
	} else {
		c.checkRefs(n.LHS, env)
	}
	c.checkRefs(n.RHS, env)
	ca := &ContinuousAssignSymbol{
		symbolBase: newBase(SymContinuousAssign, "", n.Span(), n.Ordinal()),
		LHS:        n.LHS,
		RHS:        n.RHS,
	}
	c.alloc(ca)
	e.add(ca)
}

// generateIf instantiates the taken branch as a named block. A condition
// that depends on a poisoned parameter selects nothing.
func (e *memberElaborator) generateIf(g *syntax.GenerateIf) {
	c := e.body.comp
	e.genIndex++
	cond := c.eval.Eval(g.Cond, e.env(g.Ordinal()))
	if cond.IsPoison() {
		return
	}
	members, label := g.Then, g.Label
	if !cond.Bool() {
		if len(g.Else) == 0 && g.ElseLabel == "" {
			return
		}
		members, label = g.Else, g.ElseLabel
	}
	name := label
	if name == "" {
		name = fmt.Sprintf("genblk%d", e.genIndex)
	}
	blk := &GenerateBlockSymbol{symbolBase: newBase(SymGenerateBlock, name, g.Span(), g.Ordinal())}
	c.alloc(blk)
	e.add(blk)
	blk.scope = newScope(blk, e.scope)
	sub := &memberElaborator{
		body:      e.body,
		scope:     blk.scope,
		owner:     blk,
		overrides: e.overrides.Child(name),
	}
	sub.members(members)
}

func (e *memberElaborator) virtualVar(n *syntax.VirtualInterfaceVar) {
	c := e.body.comp
	def := c.findDefinition(n.Interface, e.body.def)
	var iface *InstanceSymbol
	switch {
	case def == nil:
		diag.ReportError(c.reporter, diag.ElabUnknownInterface, n.IfaceSpan,
			fmt.Sprintf("unknown interface '%s'", n.Interface)).Emit()
	case def.Kind != DefInterface:
		diag.ReportError(c.reporter, diag.ElabNotAnInterface, n.IfaceSpan,
			fmt.Sprintf("'%s' is %s, not an interface", def.Name, def.ArticleKindString())).
			WithNote(def.NameSpan, "declared here").Emit()
	default:
		if n.Modport != "" && !def.HasModport(n.Modport) {
			diag.ReportError(c.reporter, diag.ElabUnknownModport, n.IfaceSpan,
				fmt.Sprintf("interface '%s' has no modport named '%s'", def.Name, n.Modport)).Emit()
		}
		iface = CreateVirtual(c, e.scope, After(n.Ordinal()), def, n.Params, n.IfaceSpan)
	}
	for _, name := range n.Names {
		v := &VariableSymbol{
			symbolBase: newBase(SymVariable, name.Text, name.Span, n.Ordinal()),
			Virtual:    iface,
			Modport:    n.Modport,
		}
		c.alloc(v)
		e.add(v)
	}
}

// checkRefs reports identifiers of id that resolve to nothing at env.
func (c *Compilation) checkRefs(id syntax.ExprID, env *scopeEnv) {
	if !id.IsValid() {
		return
	}
	c.tree.Exprs.Walk(id, func(_ syntax.ExprID, x *syntax.Expr) {
		if x.Kind != syntax.ExprIdent || syntax.IsTypeKeyword(x.Name) {
			return
		}
		if env.lookup(x.Name) == nil {
			diag.ReportError(c.reporter, diag.ElabUndeclaredIdentifier, x.Span,
				fmt.Sprintf("use of undeclared identifier '%s'", x.Name)).Emit()
		}
	})
}
