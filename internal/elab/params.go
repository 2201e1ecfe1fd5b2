package elab

import (
	"fmt"

	"svelab/internal/consteval"
	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
	"svelab/internal/types"
)

// ParamSource records where a parameter got its value.
type ParamSource uint8

const (
	ParamFromDefault ParamSource = iota
	ParamFromAssignment
	ParamFromOverride
	// ParamFromInvalid marks a parameter poisoned on purpose.
	ParamFromInvalid
	ParamFromNothing
)

func (s ParamSource) String() string {
	switch s {
	case ParamFromDefault:
		return "default"
	case ParamFromAssignment:
		return "assignment"
	case ParamFromOverride:
		return "override"
	case ParamFromInvalid:
		return "invalid"
	}
	return "missing"
}

// ParameterSymbol is a resolved parameter of an instance body or generate
// block. Value parameters carry Value (and DeclaredType when the declaration
// names one); type parameters carry Type.
type ParameterSymbol struct {
	symbolBase
	Decl         ParamDecl
	Value        consteval.Value
	Type         types.TypeID
	DeclaredType types.TypeID
	Source       ParamSource
	// Init is the expression the value came from, NoExpr for types and
	// poisoned parameters.
	Init syntax.ExprID
}

func newParameterSymbol(decl ParamDecl) *ParameterSymbol {
	return &ParameterSymbol{
		symbolBase: newBase(SymParameter, decl.Name, decl.Span, decl.Ordinal),
		Decl:       decl,
	}
}

func (p *ParameterSymbol) IsTypeParam() bool { return p.Decl.IsTypeParam() }
func (p *ParameterSymbol) IsLocal() bool     { return p.Decl.IsLocal }
func (p *ParameterSymbol) IsPort() bool      { return p.Decl.IsPort }

// IsPoisoned reports a parameter whose resolution failed.
func (p *ParameterSymbol) IsPoisoned(in *types.Interner) bool {
	if p.IsTypeParam() {
		return in.IsError(p.Type)
	}
	return p.Value.IsPoison()
}

func (p *ParameterSymbol) poison(in *types.Interner) {
	p.Value = consteval.Poison()
	p.Init = syntax.NoExpr
	if p.IsTypeParam() {
		p.Type = in.Builtins().Error
	}
}

// sameValue is the pairwise parameter equality used by HasSameType.
func (p *ParameterSymbol) sameValue(o *ParameterSymbol, in *types.Interner) bool {
	if p.IsTypeParam() != o.IsTypeParam() {
		return false
	}
	if p.IsTypeParam() {
		return p.Type == o.Type && !in.IsError(p.Type)
	}
	return p.Value.Equal(o.Value)
}

// ValueString renders the resolved value or type.
func (p *ParameterSymbol) ValueString(in *types.Interner) string {
	if p.IsTypeParam() {
		return in.String(p.Type)
	}
	return p.Value.String()
}

// ParamBuilder resolves the parameters of one instantiation statement. The
// assignment list is checked once; every instance created from the
// statement then resolves its own values against its override node.
type ParamBuilder struct {
	comp  *Compilation
	def   *Definition
	scope *Scope
	loc   LookupLocation
	list  *syntax.ParamAssignList
	site  source.Span

	overrides    *ParamOverrideNode
	forceInvalid bool

	validated bool
	byParam   map[string]*syntax.ParamAssign
}

// NewParamBuilder prepares resolution of def's parameters for an
// instantiation at scope/loc. scope is nil for top-level instances.
func NewParamBuilder(c *Compilation, scope *Scope, loc LookupLocation, def *Definition, list *syntax.ParamAssignList, site source.Span) *ParamBuilder {
	return &ParamBuilder{
		comp:      c,
		def:       def,
		scope:     scope,
		loc:       loc,
		list:      list,
		site:      site,
		overrides: emptyOverrides,
	}
}

func (b *ParamBuilder) SetOverrides(n *ParamOverrideNode) {
	if n == nil {
		n = emptyOverrides
	}
	b.overrides = n
}

// SetForceInvalid makes every parameter poisoned without diagnostics.
func (b *ParamBuilder) SetForceInvalid(v bool) { b.forceInvalid = v }

// overridable lists the parameters an ordered assignment list maps onto.
func (d *Definition) overridable() []*ParamDecl {
	var out []*ParamDecl
	for i := range d.Params {
		p := &d.Params[i]
		if p.IsLocal {
			continue
		}
		if d.Syntax.ParamPortList && !p.IsPort {
			continue
		}
		out = append(out, p)
	}
	return out
}

// validate maps assignments onto parameters, reporting list-level problems.
func (b *ParamBuilder) validate() {
	if b.validated {
		return
	}
	b.validated = true
	b.byParam = make(map[string]*syntax.ParamAssign)
	if b.list == nil || len(b.list.Items) == 0 || b.forceInvalid {
		return
	}
	r := b.comp.reporter

	var ordered, named int
	for _, it := range b.list.Items {
		if it.Name == "" {
			ordered++
		} else {
			named++
		}
	}
	if ordered > 0 && named > 0 {
		diag.ReportError(r, diag.ElabParamMixedAssign, b.list.Span,
			"mixing ordered and named parameter assignments is not allowed").Emit()
	}

	assignable := b.def.overridable()
	next := 0
	for _, it := range b.list.Items {
		if it.Name == "" {
			if named > 0 {
				continue
			}
			if next == len(assignable) {
				diag.ReportError(r, diag.ElabParamTooMany, it.Span,
					fmt.Sprintf("too many parameter assignments given for %s '%s' (%d expected, %d provided)",
						b.def.KindString(), b.def.Name, len(assignable), ordered)).
					WithNote(b.def.NameSpan, "declared here").Emit()
			}
			if next < len(assignable) {
				b.byParam[assignable[next].Name] = it
			}
			next++
			continue
		}
		decl, ok := b.def.Param(it.Name)
		if !ok {
			diag.ReportError(r, diag.ElabParamUnknownName, it.NameSpan,
				fmt.Sprintf("%s '%s' has no parameter named '%s'", b.def.KindString(), b.def.Name, it.Name)).
				WithNote(b.def.NameSpan, "declared here").Emit()
			continue
		}
		if decl.IsLocal {
			diag.ReportError(r, diag.ElabParamOverrideLocal, it.NameSpan,
				fmt.Sprintf("cannot assign local parameter '%s'", it.Name)).
				WithNote(decl.Span, "declared here").Emit()
			continue
		}
		if prev, dup := b.byParam[it.Name]; dup {
			diag.ReportError(r, diag.ElabParamDuplicate, it.NameSpan,
				fmt.Sprintf("duplicate assignment to parameter '%s'", it.Name)).
				WithNote(prev.Span, "previous assignment here").Emit()
			continue
		}
		b.byParam[it.Name] = it
	}
}

// createParams resolves every declared parameter into body's scope.
func (b *ParamBuilder) createParams(body *InstanceBody) {
	b.validate()
	c := b.comp
	b.reportUnknownOverrides()
	for i := range b.def.Params {
		p := newParameterSymbol(b.def.Params[i])
		c.alloc(p)
		p.setParent(body)
		b.resolve(p, body)
		body.scope.insert(p)
		body.params = append(body.params, p)
	}
}

func (b *ParamBuilder) reportUnknownOverrides() {
	if b.forceInvalid {
		return
	}
	for _, name := range b.overrides.Params() {
		v, _ := b.overrides.Value(name)
		if v.Global {
			continue
		}
		if _, ok := b.def.Param(name); !ok {
			diag.ReportWarning(b.comp.reporter, diag.ElabParamOverrideUnknown, v.Span,
				fmt.Sprintf("override names no parameter '%s' of %s '%s'", name, b.def.KindString(), b.def.Name)).Emit()
		}
	}
}

func (b *ParamBuilder) resolve(p *ParameterSymbol, body *InstanceBody) {
	c := b.comp
	decl := &p.Decl
	if b.forceInvalid {
		p.poison(c.types)
		p.Source = ParamFromInvalid
		return
	}
	bodyEnv := &scopeEnv{scope: body.scope, loc: Before(decl.Ordinal), types: c.types}

	if ov, ok := b.overrides.Value(decl.Name); ok {
		if !decl.IsLocal {
			b.applyOverride(p, ov)
			c.convertToDeclared(p, bodyEnv)
			return
		}
		if !ov.Global {
			diag.ReportError(c.reporter, diag.ElabParamOverrideLocal, ov.Span,
				fmt.Sprintf("cannot override local parameter '%s'", decl.Name)).
				WithNote(decl.Span, "declared here").Emit()
		}
	}
	if a := b.byParam[decl.Name]; a != nil && !decl.IsLocal {
		b.applyAssignment(p, a)
		c.convertToDeclared(p, bodyEnv)
		return
	}
	if decl.HasDefault() {
		p.Source = ParamFromDefault
		if decl.IsTypeParam() {
			p.Type = c.resolveType(decl.Type.Default, bodyEnv)
		} else {
			p.Init = decl.Value.Default
			p.Value = c.eval.Eval(decl.Value.Default, bodyEnv)
			c.convertToDeclared(p, bodyEnv)
		}
		return
	}
	diag.ReportError(c.reporter, diag.ElabParamNoValue, b.site,
		fmt.Sprintf("parameter '%s' of %s '%s' has no value", decl.Name, b.def.KindString(), b.def.Name)).
		WithNote(decl.Span, "declared here").Emit()
	p.Source = ParamFromNothing
	p.poison(c.types)
}

func (b *ParamBuilder) applyOverride(p *ParameterSymbol, ov OverrideValue) {
	c := b.comp
	p.Source = ParamFromOverride
	if p.IsTypeParam() {
		if ov.Type == nil {
			diag.ReportError(c.reporter, diag.ElabParamTypeExpected, ov.Span,
				fmt.Sprintf("expected a type for parameter '%s'", p.Name())).Emit()
			p.poison(c.types)
			return
		}
		p.Type = c.resolveType(ov.Type, &scopeEnv{types: c.types})
		return
	}
	if ov.Type != nil {
		diag.ReportError(c.reporter, diag.ElabParamValueExpected, ov.Span,
			fmt.Sprintf("expected a value for parameter '%s', found a type", p.Name())).Emit()
		p.poison(c.types)
		return
	}
	p.Init = ov.Expr
	p.Value = c.eval.Eval(ov.Expr, consteval.EmptyEnv{})
}

func (b *ParamBuilder) applyAssignment(p *ParameterSymbol, a *syntax.ParamAssign) {
	c := b.comp
	p.Source = ParamFromAssignment
	siteEnv := &scopeEnv{scope: b.scope, loc: b.loc, types: c.types}
	if p.IsTypeParam() {
		if a.Type != nil {
			p.Type = c.resolveType(a.Type, siteEnv)
			return
		}
		if name, ok := c.tree.Exprs.IsBareIdent(a.Expr); ok {
			if tp, ok := siteEnv.lookup(name).(*ParameterSymbol); ok && tp.IsTypeParam() {
				p.Type = tp.Type
				return
			}
		}
		diag.ReportError(c.reporter, diag.ElabParamTypeExpected, a.Span,
			fmt.Sprintf("expected a type for parameter '%s'", p.Name())).Emit()
		p.poison(c.types)
		return
	}
	if a.Type != nil {
		diag.ReportError(c.reporter, diag.ElabParamValueExpected, a.Span,
			fmt.Sprintf("expected a value for parameter '%s', found a type", p.Name())).Emit()
		p.poison(c.types)
		return
	}
	p.Init = a.Expr
	p.Value = c.eval.Eval(a.Expr, siteEnv)
}

// convertToDeclared applies the declared type of a value parameter.
func (c *Compilation) convertToDeclared(p *ParameterSymbol, env *scopeEnv) {
	if p.IsTypeParam() || p.Decl.Value == nil || p.Decl.Value.Type == nil {
		return
	}
	p.DeclaredType = c.resolveType(p.Decl.Value.Type, env)
	if p.Value.IsPoison() {
		return
	}
	t, ok := c.types.Lookup(p.DeclaredType)
	if !ok || t.Kind == types.KindError {
		p.Value = consteval.Poison()
		return
	}
	switch t.Kind {
	case types.KindIntegral:
		if p.Value.Kind == consteval.KindString {
			return
		}
		p.Value = p.Value.Convert(t.Width, t.Signed)
	case types.KindReal:
		p.Value = p.Value.ToReal()
	}
}
