package elab

import (
	"svelab/internal/consteval"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// UnknownConnection is a best-effort port actual of an unknown module.
type UnknownConnection struct {
	Name     string // empty for ordered connections
	Expr     syntax.ExprID
	Wildcard bool
	Span     source.Span
}

// UnknownModuleSymbol stands in for an instance whose definition could
// not be found. The lookup failure is reported once per statement; the
// symbol itself never reports.
type UnknownModuleSymbol struct {
	symbolBase
	comp        *Compilation
	ModuleName  string
	ParamValues []consteval.Value
	ParamExprs  []syntax.ExprID
	decl        *syntax.HierInstance

	connsDone bool
	conns     []UnknownConnection
	names     []string

	checkerDone bool
	isChecker   bool
}

func newUnknownModule(c *Compilation, stmt *syntax.HierInstantiation, hi *syntax.HierInstance, scope *Scope, loc LookupLocation) *UnknownModuleSymbol {
	u := &UnknownModuleSymbol{
		symbolBase: newBase(SymUnknownModule, hi.Name, hi.NameSpan, stmt.Ordinal()),
		comp:       c,
		ModuleName: stmt.Type,
		decl:       hi,
	}
	c.alloc(u)
	if stmt.Params != nil {
		silent := c.eval.Silent()
		env := &scopeEnv{scope: scope, loc: loc, types: c.types}
		for _, it := range stmt.Params.Items {
			if !it.Expr.IsValid() {
				u.ParamValues = append(u.ParamValues, consteval.Poison())
				u.ParamExprs = append(u.ParamExprs, syntax.NoExpr)
				continue
			}
			u.ParamValues = append(u.ParamValues, silent.Eval(it.Expr, env))
			u.ParamExprs = append(u.ParamExprs, it.Expr)
		}
	}
	return u
}

func (u *UnknownModuleSymbol) resolveConns() {
	if u.connsDone {
		return
	}
	u.connsDone = true
	for _, pc := range u.decl.Conns {
		u.conns = append(u.conns, UnknownConnection{
			Name:     pc.Name,
			Expr:     pc.Expr,
			Wildcard: pc.Kind == syntax.ConnWildcard,
			Span:     pc.Span,
		})
		u.names = append(u.names, pc.Name)
	}
}

// PortConnections returns the actuals as written.
func (u *UnknownModuleSymbol) PortConnections() []UnknownConnection {
	u.resolveConns()
	return u.conns
}

// PortNames parallels PortConnections; ordered connections have "".
func (u *UnknownModuleSymbol) PortNames() []string {
	u.resolveConns()
	return u.names
}

// IsChecker guesses that the unknown name is a checker when an actual
// uses property or sequence operators.
func (u *UnknownModuleSymbol) IsChecker() bool {
	if u.checkerDone {
		return u.isChecker
	}
	u.checkerDone = true
	for _, pc := range u.PortConnections() {
		if pc.Expr.IsValid() && u.comp.tree.Exprs.UsesPropertyOps(pc.Expr) {
			u.isChecker = true
			break
		}
	}
	return u.isChecker
}
