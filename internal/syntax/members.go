package syntax

import "svelab/internal/source"

// Member is a body item of a definition or generate block.
type Member interface {
	Ordinal() uint32
	Span() source.Span
	memberNode()
}

// MemberBase carries the declaration-order marker and span of a member.
type MemberBase struct {
	Ord uint32
	Sp  source.Span
}

func (m *MemberBase) Ordinal() uint32   { return m.Ord }
func (m *MemberBase) Span() source.Span { return m.Sp }
func (m *MemberBase) memberNode()       {}

// ParamMember wraps a parameter or localparam declared in a body.
type ParamMember struct {
	MemberBase
	Decl *ParamDecl
}

// PortDecl is a non-ANSI port declaration in a body.
type PortDecl struct {
	MemberBase
	Dir   Direction
	Type  *DataType
	Names []Name
}

// Declarator is one name of a net or variable declaration.
type Declarator struct {
	Name string
	Span source.Span
	Init ExprID
}

type NetDecl struct {
	MemberBase
	NetType     string
	Type        *DataType
	Declarators []*Declarator
}

type VarDecl struct {
	MemberBase
	Type        *DataType
	Declarators []*Declarator
}

type ContinuousAssign struct {
	MemberBase
	LHS ExprID
	RHS ExprID
}

// ParamAssign is one `#(...)` entry. Name is empty for ordered
// assignments. Exactly one of Expr/Type is set.
type ParamAssign struct {
	Name     string
	NameSpan source.Span
	Expr     ExprID
	Type     *DataType
	Span     source.Span
}

type ParamAssignList struct {
	Span  source.Span
	Items []*ParamAssign
}

type ConnKind uint8

const (
	ConnOrdered ConnKind = iota
	ConnNamed
	ConnWildcard // .*
)

// PortConn is one actual of an instance. Expr is NoExpr for `.a()` and
// for an empty ordered slot.
type PortConn struct {
	Kind     ConnKind
	Name     string
	NameSpan source.Span
	Expr     ExprID
	Span     source.Span
}

// HierInstance is one declarator of an instantiation: `u[0:3] (...)`.
type HierInstance struct {
	Name     string
	NameSpan source.Span
	Span     source.Span
	Dims     []Range
	Conns    []*PortConn
}

// HierInstantiation is `type #(params) u1(...), u2(...);`.
type HierInstantiation struct {
	MemberBase
	Type      string
	TypeSpan  source.Span
	Params    *ParamAssignList
	Instances []*HierInstance
}

// PrimitiveInstantiation is a built-in gate: `and #5 g1(y, a, b);`.
type PrimitiveInstantiation struct {
	MemberBase
	Gate      string
	GateSpan  source.Span
	Delay     ExprID
	Instances []*HierInstance
}

// BindDirective is `bind target[: inst, ...] type #(...) name(...);`.
type BindDirective struct {
	MemberBase
	Target          string
	TargetSpan      source.Span
	TargetInstances []Name
	Inst            *HierInstantiation
}

// GenerateIf is a conditional generate construct.
type GenerateIf struct {
	MemberBase
	Cond      ExprID
	Label     string
	ElseLabel string
	Then      []Member
	Else      []Member
}

type ModportDecl struct {
	MemberBase
	Names []Name
}

// VirtualInterfaceVar is `virtual iface #(...) .mp name;`.
type VirtualInterfaceVar struct {
	MemberBase
	Interface string
	IfaceSpan source.Span
	Params    *ParamAssignList
	Modport   string
	Names     []Name
}

var gateKeywords = map[string]struct{}{
	"and": {}, "nand": {}, "or": {}, "nor": {}, "xor": {}, "xnor": {},
	"buf": {}, "not": {}, "bufif0": {}, "bufif1": {}, "notif0": {}, "notif1": {},
	"pullup": {}, "pulldown": {},
}

// IsGateKeyword reports whether s names a built-in gate primitive.
func IsGateKeyword(s string) bool {
	_, ok := gateKeywords[s]
	return ok
}
