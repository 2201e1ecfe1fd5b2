package elab

import "svelab/internal/syntax"

// ExprRef is an expression together with the symbol that owns it.
type ExprRef struct {
	Expr  syntax.ExprID
	Owner SymbolID
}

// VisitExprs calls fn once for every expression owned by the instance and,
// transitively, by the instances below it: port actuals, parameter
// initializers, net and variable initializers and continuous assigns.
// Bodies are forced on the way.
func (i *InstanceSymbol) VisitExprs(fn func(ExprRef)) {
	visitExprs(i, fn)
}

func visitExprs(sym Symbol, fn func(ExprRef)) {
	emit := func(id syntax.ExprID, owner Symbol) {
		if id.IsValid() {
			fn(ExprRef{Expr: id, Owner: owner.ID()})
		}
	}
	switch s := sym.(type) {
	case *InstanceSymbol:
		if hi := s.site.decl; hi != nil {
			for _, pc := range hi.Conns {
				emit(pc.Expr, s)
			}
		}
		if s.virtual {
			return
		}
		for _, m := range s.body.Members() {
			visitExprs(m, fn)
		}
	case *InstanceArraySymbol:
		for _, e := range s.Elements {
			visitExprs(e, fn)
		}
	case *GenerateBlockSymbol:
		for _, m := range s.Members() {
			visitExprs(m, fn)
		}
	case *ParameterSymbol:
		emit(s.Init, s)
	case *NetSymbol:
		emit(s.Init, s)
	case *VariableSymbol:
		emit(s.Init, s)
	case *ContinuousAssignSymbol:
		emit(s.LHS, s)
		emit(s.RHS, s)
	case *UnknownModuleSymbol:
		for _, e := range s.ParamExprs {
			emit(e, s)
		}
		for _, pc := range s.PortConnections() {
			emit(pc.Expr, s)
		}
	case *PrimitiveInstanceSymbol:
		emit(s.Delay, s)
		for _, a := range s.Actuals {
			emit(a, s)
		}
	}
}
