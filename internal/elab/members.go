package elab

import (
	"svelab/internal/syntax"
	"svelab/internal/types"
)

// RootSymbol is the top of the elaborated hierarchy.
type RootSymbol struct {
	symbolBase
	scope        *Scope
	TopInstances []*InstanceSymbol
}

func (r *RootSymbol) Members() []Symbol { return r.scope.memberList() }

// NetSymbol is a declared or implicit net.
type NetSymbol struct {
	symbolBase
	NetType  string
	Type     types.TypeID
	Init     syntax.ExprID
	Implicit bool
}

// VariableSymbol is a variable; virtual interface variables carry the
// placeholder instance they refer to.
type VariableSymbol struct {
	symbolBase
	Type    types.TypeID
	Init    syntax.ExprID
	Virtual *InstanceSymbol
	Modport string
}

type ContinuousAssignSymbol struct {
	symbolBase
	LHS, RHS syntax.ExprID
}

// GenerateBlockSymbol is the taken branch of a conditional generate.
type GenerateBlockSymbol struct {
	symbolBase
	scope *Scope
}

func (g *GenerateBlockSymbol) Members() []Symbol { return g.scope.memberList() }

func (g *GenerateBlockSymbol) Find(name string) Symbol { return g.scope.find(name) }

type ModportSymbol struct {
	symbolBase
}
