package elab

import (
	"fmt"
	"strconv"

	"svelab/internal/diag"
	"svelab/internal/syntax"
	"svelab/internal/trace"
)

// applyBinds runs unit-level directives and then the ones declared inside
// definitions, once per instance of the declaring definition. Targets are
// taken from the instances that existed before the first bind ran.
func (c *Compilation) applyBinds(tracer trace.Tracer, parent uint64) int {
	snapshot := make(map[*Definition][]*InstanceSymbol, len(c.instancesByDef))
	for def, list := range c.instancesByDef {
		snapshot[def] = append([]*InstanceSymbol(nil), list...)
	}
	created := 0
	for _, b := range c.tree.Binds {
		created += len(c.bindFrom(nil, b, snapshot, tracer, parent))
	}
	for _, def := range c.defs {
		if len(def.Binds) == 0 {
			continue
		}
		for _, inst := range snapshot[def] {
			for _, b := range def.Binds {
				created += len(c.bindFrom(inst.body, b, snapshot, tracer, parent))
			}
		}
	}
	return created
}

// BindFromDirective applies bind as seen from the body it was declared in,
// or from the compilation unit when from is nil. It returns the created
// symbols; targets come from the instances registered so far.
func BindFromDirective(c *Compilation, from *InstanceBody, bind *syntax.BindDirective) []Symbol {
	return c.bindFrom(from, bind, c.instancesByDef, trace.Nop, 0)
}

func (c *Compilation) bindFrom(from *InstanceBody, bind *syntax.BindDirective, byDef map[*Definition][]*InstanceSymbol, tracer trace.Tracer, parent uint64) []Symbol {
	if bind.Inst == nil {
		return nil
	}
	var fromDef *Definition
	var fromScope *Scope
	if from != nil {
		fromDef = from.def
		fromScope = from.scope
	}
	targets := c.bindTargets(fromDef, fromScope, bind, byDef)

	var out []Symbol
	for _, inst := range targets {
		body := inst.body
		if body.blocked {
			continue
		}
		body.ensureElaborated()
		e := &memberElaborator{
			body:      body,
			scope:     body.scope,
			owner:     body,
			overrides: body.overrides,
			topLevel:  true,
		}
		ctx := InstanceContext{
			Body:           body,
			Overrides:      body.overrides,
			Uninstantiated: body.uninstantiated,
			AnyLocation:    true,
		}
		syms, nets := InstancesFromSyntax(c, body.scope, bind.Inst, ctx)
		for _, n := range nets {
			e.add(n)
		}
		for _, s := range syms {
			e.add(s)
			out = append(out, s)
		}
		trace.Point(tracer, trace.ScopeInstance, "bind", inst.HierarchicalPath()+" <- "+strconv.Itoa(len(syms)), parent)
		for _, s := range syms {
			c.visit(s, tracer, parent)
		}
	}
	return out
}

func (c *Compilation) bindTargets(fromDef *Definition, fromScope *Scope, bind *syntax.BindDirective, byDef map[*Definition][]*InstanceSymbol) []*InstanceSymbol {
	if len(bind.TargetInstances) > 0 {
		def := c.findDefinition(bind.Target, fromDef)
		if def == nil {
			diag.ReportError(c.reporter, diag.ElabBindTargetNotFound, bind.TargetSpan,
				fmt.Sprintf("bind target definition '%s' not found", bind.Target)).Emit()
			return nil
		}
		var out []*InstanceSymbol
		for _, name := range bind.TargetInstances {
			sym := c.lookupPathFrom(fromScope, name.Text)
			if sym == nil {
				diag.ReportError(c.reporter, diag.ElabBindTargetNotFound, name.Span,
					fmt.Sprintf("bind target instance '%s' not found", name.Text)).Emit()
				continue
			}
			inst, ok := sym.(*InstanceSymbol)
			if !ok || inst.body.def != def {
				diag.ReportError(c.reporter, diag.ElabBindTargetInvalid, name.Span,
					fmt.Sprintf("'%s' is not an instance of '%s'", name.Text, def.Name)).Emit()
				continue
			}
			out = append(out, inst)
		}
		return out
	}

	if def := c.findDefinition(bind.Target, fromDef); def != nil {
		return byDef[def]
	}
	sym := c.lookupPathFrom(fromScope, bind.Target)
	if sym == nil {
		diag.ReportError(c.reporter, diag.ElabBindTargetNotFound, bind.TargetSpan,
			fmt.Sprintf("bind target '%s' not found", bind.Target)).Emit()
		return nil
	}
	inst, ok := sym.(*InstanceSymbol)
	if !ok || inst.virtual {
		diag.ReportError(c.reporter, diag.ElabBindTargetInvalid, bind.TargetSpan,
			fmt.Sprintf("bind target '%s' is a %s, not an instance", bind.Target, sym.Kind())).Emit()
		return nil
	}
	return []*InstanceSymbol{inst}
}
