package syntax

import "svelab/internal/source"

// ExprID references an expression inside Tree.Exprs. NoExpr means absent.
type ExprID uint32

const NoExpr ExprID = 0

func (id ExprID) IsValid() bool { return id != NoExpr }

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprIntLit
	ExprRealLit
	ExprStringLit
	ExprIdent
	ExprUnary
	ExprBinary
	ExprTernary
	ExprSysCall  // $clog2(x), $bits(x)
	ExprIndex    // a[i]
	ExprMember   // a.b
	ExprConcat   // {a, b}
	ExprProperty // a |-> b, a |=> b, a ##n b
)

func (k ExprKind) String() string {
	switch k {
	case ExprIntLit:
		return "int"
	case ExprRealLit:
		return "real"
	case ExprStringLit:
		return "string"
	case ExprIdent:
		return "ident"
	case ExprUnary:
		return "unary"
	case ExprBinary:
		return "binary"
	case ExprTernary:
		return "ternary"
	case ExprSysCall:
		return "syscall"
	case ExprIndex:
		return "index"
	case ExprMember:
		return "member"
	case ExprConcat:
		return "concat"
	case ExprProperty:
		return "property"
	default:
		return "invalid"
	}
}

// Op is a unary, binary or property operator.
type Op uint8

const (
	OpNone Op = iota
	OpPlus
	OpNeg
	OpLogNot
	OpBitNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpShl
	OpShr
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpBitAnd
	OpBitOr
	OpBitXor
	OpLogAnd
	OpLogOr
	OpImplOverlap    // |->
	OpImplNonOverlap // |=>
	OpCycleDelay     // ##n
)

var opText = [...]string{
	OpNone:           "",
	OpPlus:           "+",
	OpNeg:            "-",
	OpLogNot:         "!",
	OpBitNot:         "~",
	OpAdd:            "+",
	OpSub:            "-",
	OpMul:            "*",
	OpDiv:            "/",
	OpMod:            "%",
	OpPow:            "**",
	OpShl:            "<<",
	OpShr:            ">>",
	OpLt:             "<",
	OpLe:             "<=",
	OpGt:             ">",
	OpGe:             ">=",
	OpEq:             "==",
	OpNe:             "!=",
	OpBitAnd:         "&",
	OpBitOr:          "|",
	OpBitXor:         "^",
	OpLogAnd:         "&&",
	OpLogOr:          "||",
	OpImplOverlap:    "|->",
	OpImplNonOverlap: "|=>",
	OpCycleDelay:     "##",
}

func (op Op) String() string {
	if int(op) < len(opText) {
		return opText[op]
	}
	return "?"
}

// Literal holds the payload of numeric and string literals.
type Literal struct {
	Bits   uint64
	Real   float64
	Str    string
	Width  uint32 // 0 for unsized
	Signed bool
	Sized  bool
}

// Expr is an immutable expression node.
type Expr struct {
	Kind  ExprKind
	Span  source.Span
	Op    Op
	Name  string // identifier, system function or member name
	Lit   Literal
	Ops   []ExprID
	Delay uint32 // cycles for ##n
}

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena *Arena[Expr]
}

func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Exprs{Arena: NewArena[Expr](capHint)}
}

func (e *Exprs) New(x Expr) ExprID {
	return ExprID(e.Arena.Allocate(x))
}

func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

// IsBareIdent reports whether id is a plain identifier and returns it.
func (e *Exprs) IsBareIdent(id ExprID) (string, bool) {
	x := e.Get(id)
	if x == nil || x.Kind != ExprIdent {
		return "", false
	}
	return x.Name, true
}

// UsesPropertyOps reports whether any node under id is a property or
// sequence operator.
func (e *Exprs) UsesPropertyOps(id ExprID) bool {
	x := e.Get(id)
	if x == nil {
		return false
	}
	if x.Kind == ExprProperty {
		return true
	}
	for _, op := range x.Ops {
		if e.UsesPropertyOps(op) {
			return true
		}
	}
	return false
}

// Walk calls fn for id and every operand below it, parents first.
func (e *Exprs) Walk(id ExprID, fn func(ExprID, *Expr)) {
	x := e.Get(id)
	if x == nil {
		return
	}
	fn(id, x)
	for _, op := range x.Ops {
		e.Walk(op, fn)
	}
}
