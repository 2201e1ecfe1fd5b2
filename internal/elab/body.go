package elab

import (
	"fmt"

	"svelab/internal/diag"
	"svelab/internal/syntax"
	"svelab/internal/types"
)

// BodyState tracks lazy member population of an instance body.
type BodyState uint8

const (
	BodyUnelaborated BodyState = iota
	BodyElaborating
	BodyElaborated
)

func (s BodyState) String() string {
	switch s {
	case BodyUnelaborated:
		return "unelaborated"
	case BodyElaborating:
		return "elaborating"
	}
	return "elaborated"
}

// InstanceBody is a definition specialised by one resolved parameter set.
// Parameters exist from construction; every other member is built by the
// first query that needs it.
type InstanceBody struct {
	symbolBase
	comp      *Compilation
	def       *Definition
	params    []*ParameterSymbol
	overrides *ParamOverrideNode
	scope     *Scope

	parentInstance SymbolID
	parentBody     *InstanceBody
	depth          int

	uninstantiated bool
	// blocked bodies never populate members (runaway recursion).
	blocked bool
	state   BodyState

	ports       []Symbol
	portsByName map[string]Symbol
	// body net and variable declarators folded into non-ANSI ports
	portDecls map[*syntax.Declarator]bool

	class *TypeClass
}

func newBody(c *Compilation, def *Definition, overrides *ParamOverrideNode, uninstantiated bool) *InstanceBody {
	if overrides == nil {
		overrides = emptyOverrides
	}
	b := &InstanceBody{
		symbolBase:     newBase(SymInstanceBody, def.Name, def.Span, 0),
		comp:           c,
		def:            def,
		overrides:      overrides,
		uninstantiated: uninstantiated,
		portsByName:    make(map[string]Symbol),
	}
	c.alloc(b)
	b.scope = newScope(b, nil)
	return b
}

// BodyFromDefaults builds a body whose parameters all come from their
// defaults, still honouring overrides.
func BodyFromDefaults(c *Compilation, def *Definition, isUninstantiated bool, overrides *ParamOverrideNode) *InstanceBody {
	builder := NewParamBuilder(c, nil, LocationMax, def, nil, def.NameSpan)
	builder.SetOverrides(overrides)
	return BodyFromBuilder(c, def, LocationMax, builder, isUninstantiated)
}

// BodyFromBuilder builds a body with parameters resolved by builder at the
// instantiation location loc.
func BodyFromBuilder(c *Compilation, def *Definition, loc LookupLocation, builder *ParamBuilder, isUninstantiated bool) *InstanceBody {
	builder.loc = loc
	body := newBody(c, def, builder.overrides, isUninstantiated)
	builder.createParams(body)
	if !isUninstantiated {
		c.registerBody(body)
	}
	return body
}

func (b *InstanceBody) Definition() *Definition          { return b.def }
func (b *InstanceBody) Parameters() []*ParameterSymbol   { return b.params }
func (b *InstanceBody) OverrideNode() *ParamOverrideNode { return b.overrides }
func (b *InstanceBody) ParentInstance() SymbolID         { return b.parentInstance }
func (b *InstanceBody) IsUninstantiated() bool           { return b.uninstantiated }
func (b *InstanceBody) IsBlocked() bool                  { return b.blocked }
func (b *InstanceBody) State() BodyState                 { return b.state }
func (b *InstanceBody) Depth() int                       { return b.depth }

// TypeClass is nil for uninstantiated bodies (validation, virtual and
// invalid instances); they are not monomorphized units.
func (b *InstanceBody) TypeClass() *TypeClass { return b.class }
func (b *InstanceBody) setParentInstance(inst *InstanceSymbol) {
	b.parentInstance = inst.ID()
	b.parent = inst.ID()
}

// Param returns the resolved parameter by name without populating members.
func (b *InstanceBody) Param(name string) *ParameterSymbol {
	for _, p := range b.params {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Members forces population and returns members in declaration order.
func (b *InstanceBody) Members() []Symbol {
	b.ensureElaborated()
	return b.scope.memberList()
}

// Find forces population and returns the direct member called name.
func (b *InstanceBody) Find(name string) Symbol {
	if p := b.Param(name); p != nil {
		return p
	}
	b.ensureElaborated()
	return b.scope.find(name)
}

// Lookup resolves name as seen from inside the body at loc.
func (b *InstanceBody) Lookup(name string, loc LookupLocation) Symbol {
	b.ensureElaborated()
	return b.scope.lookup(name, loc)
}

// PortList forces population and returns ports in header order.
func (b *InstanceBody) PortList() []Symbol {
	b.ensureElaborated()
	return b.ports
}

// FindPort forces population and returns the port called name.
func (b *InstanceBody) FindPort(name string) Symbol {
	b.ensureElaborated()
	return b.portsByName[name]
}

// HasSameType reports whether both bodies specialise the same definition
// with pairwise equal parameters.
func (b *InstanceBody) HasSameType(other *InstanceBody) bool {
	if other == nil || b.def != other.def || len(b.params) != len(other.params) {
		return false
	}
	in := b.comp.types
	for i, p := range b.params {
		if !p.sameValue(other.params[i], in) {
			return false
		}
	}
	return true
}

func (b *InstanceBody) hasPoisonedParams(in *types.Interner) bool {
	for _, p := range b.params {
		if p.IsPoisoned(in) {
			return true
		}
	}
	return false
}

func (b *InstanceBody) ensureElaborated() {
	switch b.state {
	case BodyElaborated:
		return
	case BodyElaborating:
		diag.ReportFatal(b.comp.reporter, diag.ElabReentrantElaboration, b.def.NameSpan,
			fmt.Sprintf("elaboration of %s '%s' re-entered while in progress", b.def.KindString(), b.def.Name)).Emit()
		return
	}
	if b.blocked {
		b.state = BodyElaborated
		return
	}
	b.state = BodyElaborating
	b.buildPorts()
	e := &memberElaborator{
		body:      b,
		scope:     b.scope,
		owner:     b,
		overrides: b.overrides,
		topLevel:  true,
	}
	e.members(b.def.Syntax.Members)
	b.state = BodyElaborated
}
