package elab

import (
	"fmt"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// InstanceContext describes where an instantiation statement sits.
type InstanceContext struct {
	// Body is the enclosing body, nil for binds at the root.
	Body *InstanceBody
	// Overrides is the override node of the enclosing scope.
	Overrides      *ParamOverrideNode
	Uninstantiated bool
	// AnyLocation resolves actuals and parameter assignments with
	// LocationMax; bind directives use it.
	AnyLocation bool
}

func (ctx InstanceContext) definition() *Definition {
	if ctx.Body == nil {
		return nil
	}
	return ctx.Body.def
}

func (ctx InstanceContext) depth() int {
	if ctx.Body == nil {
		return 0
	}
	return ctx.Body.depth
}

func (ctx InstanceContext) location(ord uint32) LookupLocation {
	if ctx.AnyLocation {
		return LocationMax
	}
	return After(ord)
}

func (ctx InstanceContext) netType() string {
	if ctx.Body == nil {
		return "wire"
	}
	return ctx.Body.defaultNetType()
}

func (b *InstanceBody) defaultNetType() string { return b.def.DefaultNetType }

// instanceSite is the syntax and scope an instance was created from.
type instanceSite struct {
	scope  *Scope
	loc    LookupLocation
	decl   *syntax.HierInstance
	stmt   *syntax.HierInstantiation
	anyLoc bool
}

// InstanceSymbol is one instance of a module, interface or program.
type InstanceSymbol struct {
	symbolBase
	comp *Compilation
	body *InstanceBody
	// ArrayPath holds element coordinates, outer to inner.
	ArrayPath []int32
	site      instanceSite
	virtual   bool

	connsResolved bool
	conns         []*PortConnection
}

func (i *InstanceSymbol) Body() *InstanceBody          { return i.body }
func (i *InstanceSymbol) Definition() *Definition      { return i.body.def }
func (i *InstanceSymbol) IsModule() bool               { return i.body.def.Kind == DefModule }
func (i *InstanceSymbol) IsInterface() bool            { return i.body.def.Kind == DefInterface }
func (i *InstanceSymbol) IsVirtual() bool              { return i.virtual }
func (i *InstanceSymbol) Syntax() *syntax.HierInstance { return i.site.decl }
func (i *InstanceSymbol) arrayPath() []int32           { return i.ArrayPath }

// HierarchicalPath renders the dotted path from the root, e.g.
// top.sub[2].leaf.
func (i *InstanceSymbol) HierarchicalPath() string {
	return i.comp.HierarchicalPath(i)
}

// ArrayName returns the name of the outermost enclosing array, or the
// instance name itself.
func (i *InstanceSymbol) ArrayName() string {
	name := i.Name()
	for p := i.comp.Symbol(i.parent); p != nil; p = i.comp.Symbol(p.Parent()) {
		arr, ok := p.(*InstanceArraySymbol)
		if !ok {
			break
		}
		name = arr.Name()
	}
	return name
}

// ArrayDimensions lists the ranges of all enclosing arrays, outer to inner.
func (i *InstanceSymbol) ArrayDimensions() []ConstantRange {
	var dims []ConstantRange
	for p := i.comp.Symbol(i.parent); p != nil; p = i.comp.Symbol(p.Parent()) {
		arr, ok := p.(*InstanceArraySymbol)
		if !ok {
			break
		}
		dims = append(dims, arr.Range)
	}
	for l, r := 0, len(dims)-1; l < r; l, r = l+1, r-1 {
		dims[l], dims[r] = dims[r], dims[l]
	}
	return dims
}

// InstancesFromSyntax creates one symbol per declarator of stmt. Implicit
// nets discovered among the port actuals are returned separately; the
// caller declares them before the instances.
func InstancesFromSyntax(c *Compilation, scope *Scope, stmt *syntax.HierInstantiation, ctx InstanceContext) ([]Symbol, []*NetSymbol) {
	if ctx.Overrides == nil {
		ctx.Overrides = emptyOverrides
	}
	loc := ctx.location(stmt.Ordinal())
	nets := c.implicitNets(scope, loc, stmt.Ordinal(), stmt.Instances, ctx.netType())

	def := c.findDefinition(stmt.Type, ctx.definition())
	if def == nil {
		diag.ReportError(c.reporter, diag.ElabUnknownModule, stmt.TypeSpan,
			fmt.Sprintf("unknown module '%s'", stmt.Type)).Emit()
		results := make([]Symbol, 0, len(stmt.Instances))
		for _, hi := range stmt.Instances {
			results = append(results, newUnknownModule(c, stmt, hi, scope, loc))
		}
		return results, nets
	}
	if def.Kind == DefPrimitive {
		return c.userPrimitives(def, stmt, scope, loc, ctx.Uninstantiated), nets
	}

	builder := NewParamBuilder(c, scope, loc, def, stmt.Params, stmt.TypeSpan)
	results := make([]Symbol, 0, len(stmt.Instances))
	for _, hi := range stmt.Instances {
		site := instanceSite{scope: scope, loc: loc, decl: hi, stmt: stmt, anyLoc: ctx.AnyLocation}
		if len(hi.Dims) == 0 {
			inst := c.newInstance(def, builder, ctx, site, hi.Name, hi.NameSpan, nil, ctx.Overrides.Child(hi.Name))
			results = append(results, inst)
			continue
		}
		results = append(results, c.newInstanceArray(def, builder, ctx, site))
	}
	if !ctx.Uninstantiated {
		def.NoteInstantiated()
	}
	return results, nets
}

func (c *Compilation) newInstance(def *Definition, builder *ParamBuilder, ctx InstanceContext, site instanceSite,
	name string, span source.Span, coords []int32, node *ParamOverrideNode) *InstanceSymbol {
	builder.SetOverrides(node)
	body := BodyFromBuilder(c, def, site.loc, builder, ctx.Uninstantiated)
	body.parentBody = ctx.Body
	body.depth = ctx.depth() + 1
	ord := uint32(0)
	if site.stmt != nil {
		ord = site.stmt.Ordinal()
	}
	inst := &InstanceSymbol{
		symbolBase: newBase(SymInstance, name, span, ord),
		comp:       c,
		body:       body,
		ArrayPath:  coords,
		site:       site,
	}
	c.alloc(inst)
	body.setParentInstance(inst)
	c.guardRecursion(body, span)
	c.registerInstance(inst)
	return inst
}

// guardRecursion blocks body when it repeats an ancestor specialisation or
// sits too deep in the hierarchy.
func (c *Compilation) guardRecursion(body *InstanceBody, span source.Span) {
	for anc := body.parentBody; anc != nil; anc = anc.parentBody {
		if anc.def != body.def || !anc.HasSameType(body) {
			continue
		}
		b := diag.ReportFatal(c.reporter, diag.ElabRecursiveInstantiation, span,
			fmt.Sprintf("infinitely recursive instantiation of %s '%s'", body.def.KindString(), body.def.Name))
		if inst, ok := c.Symbol(anc.parentInstance).(*InstanceSymbol); ok {
			b.WithNote(inst.Span(), "identical instance here")
		}
		b.Emit()
		body.blocked = true
		return
	}
	if body.depth > c.opts.MaxInstanceDepth {
		diag.ReportFatal(c.reporter, diag.ElabMaxDepth, span,
			fmt.Sprintf("instance depth exceeds the limit of %d", c.opts.MaxInstanceDepth)).Emit()
		body.blocked = true
	}
}

// implicitNets declares nets for bare identifier actuals that resolve to
// nothing at loc.
func (c *Compilation) implicitNets(scope *Scope, loc LookupLocation, ord uint32, insts []*syntax.HierInstance, netType string) []*NetSymbol {
	var out []*NetSymbol
	seen := make(map[string]bool)
	for _, hi := range insts {
		for _, pc := range hi.Conns {
			name, ok := c.tree.Exprs.IsBareIdent(pc.Expr)
			if !ok || seen[name] {
				continue
			}
			seen[name] = true
			if scope != nil && scope.lookup(name, loc) != nil {
				continue
			}
			if net := c.newImplicitNet(name, c.tree.Exprs.Get(pc.Expr).Span, ord, netType); net != nil {
				out = append(out, net)
			}
		}
	}
	return out
}

func (c *Compilation) newImplicitNet(name string, span source.Span, ord uint32, netType string) *NetSymbol {
	if netType == "none" {
		diag.ReportError(c.reporter, diag.ElabImplicitNetNone, span,
			fmt.Sprintf("implicit declaration of '%s' is not allowed with `default_nettype none", name)).Emit()
		return nil
	}
	if ord > 0 {
		ord--
	}
	net := &NetSymbol{
		symbolBase: newBase(SymNet, name, span, ord),
		NetType:    netType,
		Type:       c.types.Builtins().Logic,
		Implicit:   true,
	}
	c.alloc(net)
	return net
}

// CreateDefault builds a top-level instance whose parameters come from
// their defaults and the override node.
func CreateDefault(c *Compilation, def *Definition, overrides *ParamOverrideNode) *InstanceSymbol {
	builder := NewParamBuilder(c, nil, LocationMax, def, nil, def.NameSpan)
	inst := c.newInstance(def, builder, InstanceContext{}, instanceSite{loc: LocationMax}, def.Name, def.NameSpan, nil, overrides)
	def.NoteInstantiated()
	return inst
}

// CreateInvalid builds an instance whose parameters are all poisoned
// without diagnostics, so only members that depend on them degrade.
func CreateInvalid(c *Compilation, def *Definition) *InstanceSymbol {
	builder := NewParamBuilder(c, nil, LocationMax, def, nil, def.NameSpan)
	builder.SetForceInvalid(true)
	return c.newInstance(def, builder, InstanceContext{Uninstantiated: true}, instanceSite{loc: LocationMax},
		def.Name, def.NameSpan, nil, emptyOverrides)
}

// CreateUninstantiated builds an instance of a definition that is
// referenced but never reached, for checking its contents.
func CreateUninstantiated(c *Compilation, def *Definition) *InstanceSymbol {
	builder := NewParamBuilder(c, nil, LocationMax, def, nil, def.NameSpan)
	return c.newInstance(def, builder, InstanceContext{Uninstantiated: true}, instanceSite{loc: LocationMax},
		def.Name, def.NameSpan, nil, emptyOverrides)
}

// CreateVirtual builds the placeholder instance behind a virtual interface
// type. It is not added to any scope and does not count as instantiation.
func CreateVirtual(c *Compilation, scope *Scope, loc LookupLocation, def *Definition, params *syntax.ParamAssignList, span source.Span) *InstanceSymbol {
	builder := NewParamBuilder(c, scope, loc, def, params, span)
	builder.SetOverrides(emptyOverrides)
	body := BodyFromBuilder(c, def, loc, builder, true)
	inst := &InstanceSymbol{
		symbolBase: newBase(SymInstance, def.Name, span, 0),
		comp:       c,
		body:       body,
		site:       instanceSite{scope: scope, loc: loc},
		virtual:    true,
	}
	c.alloc(inst)
	if scope != nil {
		inst.parent = scope.owner.ID()
	}
	body.setParentInstance(inst)
	return inst
}
