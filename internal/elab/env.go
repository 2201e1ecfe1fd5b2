package elab

import (
	"fmt"
	"math"

	"svelab/internal/consteval"
	"svelab/internal/diag"
	"svelab/internal/syntax"
	"svelab/internal/types"
)

// scopeEnv adapts a scope and lookup location to the constant evaluator.
type scopeEnv struct {
	scope *Scope
	loc   LookupLocation
	types *types.Interner
}

func (e *scopeEnv) lookup(name string) Symbol {
	if e == nil || e.scope == nil {
		return nil
	}
	return e.scope.lookup(name, e.loc)
}

func (e *scopeEnv) LookupValue(name string) (consteval.Value, consteval.Lookup) {
	switch s := e.lookup(name).(type) {
	case nil:
		return consteval.Poison(), consteval.NotFound
	case *ParameterSymbol:
		if s.IsTypeParam() {
			return consteval.Poison(), consteval.NotFound
		}
		return s.Value, consteval.Constant
	default:
		return consteval.Poison(), consteval.NotConstant
	}
}

func (e *scopeEnv) TypeWidth(name string) (uint32, bool) {
	p, ok := e.lookup(name).(*ParameterSymbol)
	if !ok || !p.IsTypeParam() {
		return 0, false
	}
	return e.types.Width(p.Type), true
}

// ConstantRange is an evaluated [Left:Right] dimension.
type ConstantRange struct {
	Left, Right int32
}

func (r ConstantRange) Lower() int32 { return min(r.Left, r.Right) }
func (r ConstantRange) Upper() int32 { return max(r.Left, r.Right) }

// Width is the number of elements covered by r.
func (r ConstantRange) Width() uint32 {
	return uint32(int64(r.Upper())-int64(r.Lower())) + 1 // #nosec G115 -- bounded by int32 span
}

// IsLittleEndian reports the [hi:lo] direction.
func (r ConstantRange) IsLittleEndian() bool { return r.Left >= r.Right }

// Contains reports whether index lies inside r.
func (r ConstantRange) Contains(index int32) bool {
	return index >= r.Lower() && index <= r.Upper()
}

func (r ConstantRange) String() string { return fmt.Sprintf("[%d:%d]", r.Left, r.Right) }

// rangeProblem describes why a dimension could not be used.
type rangeProblem uint8

const (
	rangeOK rangeProblem = iota
	// rangeSilent: evaluation failed and has already been reported, or
	// depends on a poisoned value.
	rangeSilent
	rangeNotPositive
	rangeOverflow
)

// evalRange folds r. The [N] form means [N-1:0] for packed dimensions and
// [0:N-1] for unpacked ones.
func (c *Compilation) evalRange(r syntax.Range, env consteval.Env, packed bool) (ConstantRange, rangeProblem) {
	left, ok := c.eval.EvalInt(r.Left, env)
	if !ok {
		return ConstantRange{}, rangeSilent
	}
	if r.Single {
		if left <= 0 {
			return ConstantRange{}, rangeNotPositive
		}
		if left > math.MaxInt32 {
			return ConstantRange{}, rangeOverflow
		}
		n := int32(left) // #nosec G115 -- checked above
		if packed {
			return ConstantRange{Left: n - 1, Right: 0}, rangeOK
		}
		return ConstantRange{Left: 0, Right: n - 1}, rangeOK
	}
	right, ok := c.eval.EvalInt(r.Right, env)
	if !ok {
		return ConstantRange{}, rangeSilent
	}
	if left < math.MinInt32 || left > math.MaxInt32 || right < math.MinInt32 || right > math.MaxInt32 {
		return ConstantRange{}, rangeOverflow
	}
	return ConstantRange{Left: int32(left), Right: int32(right)}, rangeOK // #nosec G115 -- checked above
}

// resolveType resolves dt in env. A nil type is the implicit logic scalar.
// Failures yield the error type; only failures not caused by an already
// poisoned value are reported.
func (c *Compilation) resolveType(dt *syntax.DataType, env *scopeEnv) types.TypeID {
	b := c.types.Builtins()
	if dt == nil {
		return b.Logic
	}
	if dt.Named != "" {
		sym := env.lookup(dt.Named)
		p, ok := sym.(*ParameterSymbol)
		switch {
		case sym == nil:
			diag.ReportError(c.reporter, diag.ElabUndeclaredIdentifier, dt.Span,
				fmt.Sprintf("unknown type '%s'", dt.Named)).Emit()
			return b.Error
		case !ok || !p.IsTypeParam():
			diag.ReportError(c.reporter, diag.SynBadDataType, dt.Span,
				fmt.Sprintf("'%s' is not a type", dt.Named)).Emit()
			return b.Error
		case len(dt.Packed) > 0:
			diag.ReportError(c.reporter, diag.SynBadDataType, dt.Span,
				fmt.Sprintf("packed dimensions on type parameter '%s' are not supported", dt.Named)).Emit()
			return b.Error
		}
		return p.Type
	}

	kw := dt.Keyword
	if kw == "" {
		kw = "logic"
	}
	var signed *bool
	switch dt.Signing {
	case syntax.SignSigned:
		v := true
		signed = &v
	case syntax.SignUnsigned:
		v := false
		signed = &v
	}
	if len(dt.Packed) > 0 && !types.IsVectorKeyword(kw) {
		diag.ReportError(c.reporter, diag.SynBadDataType, dt.Span,
			fmt.Sprintf("packed dimensions are not allowed on '%s'", kw)).Emit()
		return b.Error
	}
	dims := make([]types.Dim, 0, len(dt.Packed))
	for _, r := range dt.Packed {
		cr, problem := c.evalRange(r, env, true)
		switch problem {
		case rangeSilent:
			return b.Error
		case rangeNotPositive, rangeOverflow:
			diag.ReportError(c.reporter, diag.SynBadDataType, r.Span,
				"packed dimension must be a positive constant").Emit()
			return b.Error
		}
		dims = append(dims, types.Dim{Left: cr.Left, Right: cr.Right})
	}
	id := c.types.Keyword(kw, signed, dims)
	if id == b.Error {
		diag.ReportError(c.reporter, diag.SynBadDataType, dt.Span,
			fmt.Sprintf("unknown data type '%s'", kw)).Emit()
	}
	return id
}
