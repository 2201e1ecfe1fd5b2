package elab

import (
	"fmt"
	"slices"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// maxArrayElements bounds a single instance array dimension.
const maxArrayElements = 1 << 20

// InstanceArraySymbol is one dimension of an instance array. Elements are
// instances, primitive instances, or nested arrays for the next dimension.
type InstanceArraySymbol struct {
	symbolBase
	comp     *Compilation
	Range    ConstantRange
	Elements []Symbol
	// path holds the coordinates of enclosing dimensions.
	path []int32
}

func (a *InstanceArraySymbol) arrayPath() []int32 { return a.path }
func (a *InstanceArraySymbol) Members() []Symbol  { return a.Elements }

func (a *InstanceArraySymbol) HierarchicalPath() string {
	return a.comp.HierarchicalPath(a)
}

// ElementAt returns the element with the given index, nil when out of range.
func (a *InstanceArraySymbol) ElementAt(index int32) Symbol {
	if !a.Range.Contains(index) || len(a.Elements) == 0 {
		return nil
	}
	i := int(index) - int(a.Range.Lower())
	if i >= len(a.Elements) {
		return nil
	}
	return a.Elements[i]
}

// evalDims folds every unpacked dimension of a declarator. A bad dimension
// is reported once and replaced by [0:0].
func (c *Compilation) evalDims(dims []syntax.Range, env *scopeEnv) []ConstantRange {
	out := make([]ConstantRange, 0, len(dims))
	for _, d := range dims {
		r, problem := c.evalRange(d, env, false)
		if problem == rangeOK && r.Width() > maxArrayElements {
			problem = rangeOverflow
		}
		switch problem {
		case rangeNotPositive:
			diag.ReportError(c.reporter, diag.ElabBadArrayDim, d.Span,
				"instance array dimension must be a positive constant").Emit()
		case rangeOverflow:
			diag.ReportError(c.reporter, diag.ElabBadArrayDim, d.Span,
				fmt.Sprintf("instance array dimension exceeds %d elements", maxArrayElements)).Emit()
		}
		if problem != rangeOK {
			r = ConstantRange{}
		}
		out = append(out, r)
	}
	return out
}

// expandArray builds one array level per range. Element i of a dimension
// gets coordinate Lower()+i; leaf creates the innermost elements.
func (c *Compilation) expandArray(name string, span source.Span, ord uint32, ranges []ConstantRange, prefix []int32, leaf func(coords []int32) Symbol) *InstanceArraySymbol {
	r := ranges[0]
	arr := &InstanceArraySymbol{
		symbolBase: newBase(SymInstanceArray, name, span, ord),
		comp:       c,
		Range:      r,
		path:       prefix,
	}
	c.alloc(arr)
	w := r.Width()
	arr.Elements = make([]Symbol, 0, w)
	for i := uint32(0); i < w; i++ {
		coords := append(slices.Clone(prefix), r.Lower()+int32(i)) // #nosec G115 -- w <= maxArrayElements
		var elem Symbol
		if len(ranges) > 1 {
			elem = c.expandArray(name, span, ord, ranges[1:], coords, leaf)
		} else {
			elem = leaf(coords)
		}
		elem.base().parent = arr.ID()
		arr.Elements = append(arr.Elements, elem)
	}
	return arr
}

func (c *Compilation) newInstanceArray(def *Definition, builder *ParamBuilder, ctx InstanceContext, site instanceSite) *InstanceArraySymbol {
	hi := site.decl
	env := &scopeEnv{scope: site.scope, loc: site.loc, types: c.types}
	ranges := c.evalDims(hi.Dims, env)
	return c.expandArray(hi.Name, hi.NameSpan, site.stmt.Ordinal(), ranges, nil, func(coords []int32) Symbol {
		node := ctx.Overrides.ElementChild(hi.Name, coords)
		return c.newInstance(def, builder, ctx, site, hi.Name, hi.NameSpan, coords, node)
	})
}
