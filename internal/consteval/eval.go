package consteval

import (
	"fmt"
	"math"
	"math/bits"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// Lookup classifies the result of a name lookup.
type Lookup uint8

const (
	NotFound Lookup = iota
	Constant
	NotConstant
)

// Env resolves the names an expression refers to.
type Env interface {
	// LookupValue returns the constant bound to name.
	LookupValue(name string) (Value, Lookup)
	// TypeWidth returns the bit width of a named type, ok=false if name
	// is not a type. A poisoned type reports width 0 and ok=true.
	TypeWidth(name string) (uint32, bool)
}

// EmptyEnv resolves nothing.
type EmptyEnv struct{}

func (EmptyEnv) LookupValue(string) (Value, Lookup) { return Poison(), NotFound }
func (EmptyEnv) TypeWidth(string) (uint32, bool)    { return 0, false }

// Evaluator folds constant expressions of one syntax tree.
type Evaluator struct {
	tree     *syntax.Tree
	reporter diag.Reporter
}

func New(tree *syntax.Tree, reporter diag.Reporter) *Evaluator {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	return &Evaluator{tree: tree, reporter: reporter}
}

// Silent returns an evaluator over the same tree that reports nothing.
func (ev *Evaluator) Silent() *Evaluator {
	return &Evaluator{tree: ev.tree, reporter: diag.NopReporter{}}
}

func (ev *Evaluator) Tree() *syntax.Tree { return ev.tree }

func (ev *Evaluator) report(code diag.Code, sp source.Span, format string, args ...any) {
	ev.reporter.Report(code, diag.SevError, sp, fmt.Sprintf(format, args...), nil)
}

// Eval folds id. Failures are reported once at the failing node; the
// result is poison and every enclosing operation stays silent.
func (ev *Evaluator) Eval(id syntax.ExprID, env Env) Value {
	if env == nil {
		env = EmptyEnv{}
	}
	x := ev.tree.Exprs.Get(id)
	if x == nil {
		return Poison()
	}
	switch x.Kind {
	case syntax.ExprIntLit:
		return Sized(x.Lit.Bits, x.Lit.Width, x.Lit.Signed)
	case syntax.ExprRealLit:
		return Real(x.Lit.Real)
	case syntax.ExprStringLit:
		return String(x.Lit.Str)
	case syntax.ExprIdent:
		return ev.evalIdent(x, env)
	case syntax.ExprUnary:
		return ev.evalUnary(x, ev.Eval(x.Ops[0], env))
	case syntax.ExprBinary:
		l := ev.Eval(x.Ops[0], env)
		r := ev.Eval(x.Ops[1], env)
		return ev.evalBinary(x, l, r)
	case syntax.ExprTernary:
		c := ev.Eval(x.Ops[0], env)
		if c.IsPoison() {
			return Poison()
		}
		if c.Bool() {
			return ev.Eval(x.Ops[1], env)
		}
		return ev.Eval(x.Ops[2], env)
	case syntax.ExprSysCall:
		return ev.evalSysCall(x, env)
	case syntax.ExprIndex:
		return ev.evalIndex(x, env)
	case syntax.ExprConcat:
		return ev.evalConcat(x, env)
	case syntax.ExprProperty:
		ev.report(diag.ElabParamNotConstant, x.Span, "property expression is not a constant")
		return Poison()
	case syntax.ExprMember:
		ev.report(diag.ElabParamNotConstant, x.Span, "hierarchical reference '.%s' is not a constant", x.Name)
		return Poison()
	}
	return Poison()
}

// EvalInt evaluates id and requires an integral result.
func (ev *Evaluator) EvalInt(id syntax.ExprID, env Env) (int64, bool) {
	v := ev.Eval(id, env)
	switch v.Kind {
	case KindInt:
		return v.Int64(), true
	case KindReal:
		return v.Int64(), true
	case KindString:
		if x := ev.tree.Exprs.Get(id); x != nil {
			ev.report(diag.ElabConstEval, x.Span, "expected an integral constant, found string")
		}
	}
	return 0, false
}

func (ev *Evaluator) evalIdent(x *syntax.Expr, env Env) Value {
	v, res := env.LookupValue(x.Name)
	switch res {
	case Constant:
		return v
	case NotConstant:
		ev.report(diag.ElabParamNotConstant, x.Span, "'%s' is not a constant", x.Name)
	default:
		if _, isType := env.TypeWidth(x.Name); isType {
			ev.report(diag.ElabParamValueExpected, x.Span, "'%s' is a type, expected a value", x.Name)
		} else {
			ev.report(diag.ElabUndeclaredIdentifier, x.Span, "use of undeclared identifier '%s'", x.Name)
		}
	}
	return Poison()
}

func (ev *Evaluator) evalUnary(x *syntax.Expr, v Value) Value {
	if v.IsPoison() {
		return v
	}
	if v.Kind == KindString {
		ev.report(diag.ElabConstEval, x.Span, "invalid operand of type string to unary '%s'", x.Op)
		return Poison()
	}
	switch x.Op {
	case syntax.OpPlus:
		return v
	case syntax.OpNeg:
		if v.Kind == KindReal {
			return Real(-v.Real)
		}
		return Sized(uint64(-v.Int64()), v.Width, v.Signed) // #nosec G115 -- wraparound intended
	case syntax.OpLogNot:
		return boolValue(!v.Bool())
	case syntax.OpBitNot:
		if v.Kind == KindReal {
			ev.report(diag.ElabConstEval, x.Span, "invalid operand of type real to '~'")
			return Poison()
		}
		return Sized(^v.Bits, v.Width, v.Signed)
	}
	return Poison()
}

func boolValue(b bool) Value {
	if b {
		return Sized(1, 1, false)
	}
	return Sized(0, 1, false)
}

func (ev *Evaluator) evalBinary(x *syntax.Expr, l, r Value) Value {
	if l.IsPoison() || r.IsPoison() {
		return Poison()
	}
	if l.Kind == KindString || r.Kind == KindString {
		if l.Kind == r.Kind && (x.Op == syntax.OpEq || x.Op == syntax.OpNe) {
			return boolValue((l.Str == r.Str) == (x.Op == syntax.OpEq))
		}
		ev.report(diag.ElabConstEval, x.Span, "invalid operands of type string to '%s'", x.Op)
		return Poison()
	}

	switch x.Op {
	case syntax.OpLogAnd:
		return boolValue(l.Bool() && r.Bool())
	case syntax.OpLogOr:
		return boolValue(l.Bool() || r.Bool())
	}

	if l.Kind == KindReal || r.Kind == KindReal {
		return ev.evalReal(x, l.Float(), r.Float())
	}

	width := max(l.Width, r.Width)
	signed := l.Signed && r.Signed
	a, b := l.Int64(), r.Int64()
	ua, ub := uint64(a)&mask(width), uint64(b)&mask(width) // #nosec G115
	less := func() bool {
		if signed {
			return a < b
		}
		return ua < ub
	}

	switch x.Op {
	case syntax.OpAdd:
		return Sized(uint64(a+b), width, signed) // #nosec G115
	case syntax.OpSub:
		return Sized(uint64(a-b), width, signed) // #nosec G115
	case syntax.OpMul:
		return Sized(uint64(a*b), width, signed) // #nosec G115
	case syntax.OpDiv, syntax.OpMod:
		if b == 0 {
			ev.report(diag.ElabConstEval, x.Span, "division by zero in constant expression")
			return Poison()
		}
		if !signed {
			if x.Op == syntax.OpDiv {
				return Sized(ua/ub, width, false)
			}
			return Sized(ua%ub, width, false)
		}
		if x.Op == syntax.OpDiv {
			return Sized(uint64(a/b), width, true) // #nosec G115
		}
		return Sized(uint64(a%b), width, true) // #nosec G115
	case syntax.OpPow:
		if b < 0 {
			ev.report(diag.ElabConstEval, x.Span, "negative exponent in constant expression")
			return Poison()
		}
		res := int64(1)
		for i := int64(0); i < b && i < 64; i++ {
			res *= a
		}
		return Sized(uint64(res), l.Width, l.Signed) // #nosec G115
	case syntax.OpShl:
		if b < 0 || b >= 64 {
			return Sized(0, l.Width, l.Signed)
		}
		return Sized(l.Bits<<uint(b), l.Width, l.Signed)
	case syntax.OpShr:
		if b < 0 || b >= 64 {
			return Sized(0, l.Width, l.Signed)
		}
		return Sized(l.Bits>>uint(b), l.Width, l.Signed)
	case syntax.OpLt:
		return boolValue(less())
	case syntax.OpGe:
		return boolValue(!less())
	case syntax.OpGt:
		return boolValue(a != b && !less())
	case syntax.OpLe:
		return boolValue(a == b || less())
	case syntax.OpEq:
		return boolValue(ua == ub)
	case syntax.OpNe:
		return boolValue(ua != ub)
	case syntax.OpBitAnd:
		return Sized(ua&ub, width, signed)
	case syntax.OpBitOr:
		return Sized(ua|ub, width, signed)
	case syntax.OpBitXor:
		return Sized(ua^ub, width, signed)
	}
	return Poison()
}

func (ev *Evaluator) evalReal(x *syntax.Expr, a, b float64) Value {
	switch x.Op {
	case syntax.OpAdd:
		return Real(a + b)
	case syntax.OpSub:
		return Real(a - b)
	case syntax.OpMul:
		return Real(a * b)
	case syntax.OpDiv:
		if b == 0 {
			ev.report(diag.ElabConstEval, x.Span, "division by zero in constant expression")
			return Poison()
		}
		return Real(a / b)
	case syntax.OpPow:
		return Real(math.Pow(a, b))
	case syntax.OpLt:
		return boolValue(a < b)
	case syntax.OpLe:
		return boolValue(a <= b)
	case syntax.OpGt:
		return boolValue(a > b)
	case syntax.OpGe:
		return boolValue(a >= b)
	case syntax.OpEq:
		return boolValue(a == b)
	case syntax.OpNe:
		return boolValue(a != b)
	}
	ev.report(diag.ElabConstEval, x.Span, "invalid operands of type real to '%s'", x.Op)
	return Poison()
}

func (ev *Evaluator) evalSysCall(x *syntax.Expr, env Env) Value {
	if len(x.Ops) != 1 {
		ev.report(diag.ElabConstEval, x.Span, "%s expects exactly one argument", x.Name)
		return Poison()
	}
	switch x.Name {
	case "$clog2":
		v := ev.Eval(x.Ops[0], env)
		if v.IsPoison() {
			return v
		}
		n := uint64(v.Int64()) // #nosec G115
		if v.Int64() <= 1 {
			return Int(0)
		}
		return Int(int64(bits.Len64(n - 1)))
	case "$bits":
		return ev.evalBits(x.Ops[0], env)
	}
	ev.report(diag.ElabParamNotConstant, x.Span, "system function %s is not supported in constant expressions", x.Name)
	return Poison()
}

var keywordWidth = map[string]uint32{
	"logic": 1, "bit": 1, "reg": 1,
	"byte": 8, "shortint": 16, "int": 32, "integer": 32, "longint": 64,
	"real": 64, "realtime": 64, "shortreal": 32, "time": 64,
}

func (ev *Evaluator) evalBits(arg syntax.ExprID, env Env) Value {
	x := ev.tree.Exprs.Get(arg)
	if x != nil && x.Kind == syntax.ExprIdent {
		if w, ok := keywordWidth[x.Name]; ok {
			// тип-аргумент: ключевое слово и пары границ в Ops
			total := uint64(w)
			for i := 0; i+1 < len(x.Ops); i += 2 {
				hi, ok1 := ev.EvalInt(x.Ops[i], env)
				lo, ok2 := ev.EvalInt(x.Ops[i+1], env)
				if !ok1 || !ok2 {
					return Poison()
				}
				n := hi - lo
				if n < 0 {
					n = -n
				}
				total *= uint64(n + 1)
			}
			return Int(int64(total)) // #nosec G115
		}
		if w, ok := env.TypeWidth(x.Name); ok {
			if w == 0 {
				return Poison()
			}
			return Int(int64(w))
		}
	}
	v := ev.Eval(arg, env)
	if v.IsPoison() {
		return v
	}
	return Int(int64(v.Width))
}

func (ev *Evaluator) evalIndex(x *syntax.Expr, env Env) Value {
	base := ev.Eval(x.Ops[0], env)
	idx, ok := ev.EvalInt(x.Ops[1], env)
	if base.IsPoison() || !ok {
		return Poison()
	}
	if base.Kind != KindInt {
		ev.report(diag.ElabConstEval, x.Span, "cannot select bits of a %s value", base.Kind)
		return Poison()
	}
	lo := idx
	width := int64(1)
	if len(x.Ops) > 2 {
		right, ok := ev.EvalInt(x.Ops[2], env)
		if !ok {
			return Poison()
		}
		lo = min(idx, right)
		width = max(idx, right) - lo + 1
	}
	if lo < 0 || lo+width > int64(base.Width) {
		ev.report(diag.ElabConstEval, x.Span, "bit select [%d] is out of range for a %d-bit value", idx, base.Width)
		return Poison()
	}
	return Sized(base.Bits>>uint(lo), uint32(width), false) // #nosec G115 -- width <= 64
}

func (ev *Evaluator) evalConcat(x *syntax.Expr, env Env) Value {
	var acc uint64
	var width uint32
	for _, op := range x.Ops {
		v := ev.Eval(op, env)
		if v.IsPoison() {
			return v
		}
		if v.Kind != KindInt {
			ev.report(diag.ElabConstEval, x.Span, "concatenation operands must be integral")
			return Poison()
		}
		if width+v.Width > 64 {
			ev.report(diag.ElabConstEval, x.Span, "concatenation wider than 64 bits is not supported")
			return Poison()
		}
		acc = acc<<v.Width | v.Bits
		width += v.Width
	}
	return Sized(acc, width, false)
}
