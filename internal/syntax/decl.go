package syntax

import "svelab/internal/source"

// DeclKeyword is the keyword that opened a definition.
type DeclKeyword uint8

const (
	KwModule DeclKeyword = iota
	KwInterface
	KwProgram
	KwPrimitive
)

func (k DeclKeyword) String() string {
	switch k {
	case KwModule:
		return "module"
	case KwInterface:
		return "interface"
	case KwProgram:
		return "program"
	case KwPrimitive:
		return "primitive"
	}
	return "unknown"
}

type Lifetime uint8

const (
	LifetimeDefault Lifetime = iota
	LifetimeStatic
	LifetimeAutomatic
)

type Direction uint8

const (
	DirInput Direction = iota
	DirOutput
	DirInout
	DirRef
)

func (d Direction) String() string {
	switch d {
	case DirInput:
		return "input"
	case DirOutput:
		return "output"
	case DirInout:
		return "inout"
	case DirRef:
		return "ref"
	}
	return "unknown"
}

// PortStyle records the shape of the header port list.
type PortStyle uint8

const (
	PortsNone PortStyle = iota
	PortsAnsi
	PortsNonAnsi
)

// Name is an identifier with its location.
type Name struct {
	Text string
	Span source.Span
}

// Directives are the file-level compiler directives in effect for a
// declaration.
type Directives struct {
	DefaultNetType   string // "wire" when unset, "none" disables implicit nets
	UnconnectedDrive string // "", "pull0", "pull1"
	Timescale        *Timescale
	TimescaleSpan    source.Span
}

// ParamKind discriminates value and type parameters.
type ParamKind uint8

const (
	ParamValue ParamKind = iota
	ParamType
)

// ValueParam is the payload of `parameter [type] NAME = expr`.
type ValueParam struct {
	Type    *DataType // nil for implicit
	Default ExprID
}

// TypeParam is the payload of `parameter type NAME = type`.
type TypeParam struct {
	Default *DataType
}

// ParamDecl declares one parameter. Exactly one of Value/Type is set,
// matching Kind.
type ParamDecl struct {
	Kind     ParamKind
	Local    bool // localparam keyword
	Name     string
	NameSpan source.Span
	Span     source.Span
	Ordinal  uint32
	Value    *ValueParam
	Type     *TypeParam
}

// AnsiPort is one entry of an ANSI header port list.
type AnsiPort struct {
	Dir       Direction
	Type      *DataType
	Interface string // set for interface ports
	Modport   string
	Name      string
	NameSpan  source.Span
	Span      source.Span
	Ordinal   uint32
}

// ModuleDecl is the syntax of one module, interface, program or primitive.
type ModuleDecl struct {
	Keyword       DeclKeyword
	Name          string
	NameSpan      source.Span
	Span          source.Span
	Ordinal       uint32
	Lifetime      Lifetime
	TimeUnit      *TimeLiteral
	TimePrecision *TimeLiteral
	ParamPortList bool
	ParamPorts    []*ParamDecl
	PortStyle     PortStyle
	AnsiPorts     []*AnsiPort
	PortNames     []Name
	Members       []Member
	Nested        []*ModuleDecl
	Directives    Directives
}
