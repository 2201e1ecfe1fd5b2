package elab

import (
	"fmt"

	"svelab/internal/source"
)

// SymbolID identifies a symbol inside a Compilation. Zero means "no symbol".
type SymbolID uint32

const NoSymbolID SymbolID = 0

func (id SymbolID) IsValid() bool { return id != NoSymbolID }

// SymbolKind enumerates elaborated symbol categories.
type SymbolKind uint8

const (
	SymInvalid SymbolKind = iota
	SymRoot
	SymInstance
	SymInstanceArray
	SymInstanceBody
	SymUnknownModule
	SymPrimitiveInstance
	SymParameter
	SymPort
	SymInterfacePort
	SymNet
	SymVariable
	SymContinuousAssign
	SymGenerateBlock
	SymModport
)

func (k SymbolKind) String() string {
	switch k {
	case SymRoot:
		return "root"
	case SymInstance:
		return "instance"
	case SymInstanceArray:
		return "instance_array"
	case SymInstanceBody:
		return "instance_body"
	case SymUnknownModule:
		return "unknown_module"
	case SymPrimitiveInstance:
		return "primitive_instance"
	case SymParameter:
		return "parameter"
	case SymPort:
		return "port"
	case SymInterfacePort:
		return "interface_port"
	case SymNet:
		return "net"
	case SymVariable:
		return "variable"
	case SymContinuousAssign:
		return "continuous_assign"
	case SymGenerateBlock:
		return "generate_block"
	case SymModport:
		return "modport"
	}
	panic(fmt.Sprintf("elab: impossible symbol kind %d", uint8(k)))
}

// Symbol is implemented by every elaborated entity.
type Symbol interface {
	ID() SymbolID
	Kind() SymbolKind
	Name() string
	Span() source.Span
	// Parent is the enclosing symbol; the root has none.
	Parent() SymbolID
	base() *symbolBase
}

type symbolBase struct {
	id     SymbolID
	kind   SymbolKind
	name   string
	span   source.Span
	parent SymbolID
	// ord is the declaration-order marker used for location-aware lookup.
	ord uint32
}

func (s *symbolBase) ID() SymbolID       { return s.id }
func (s *symbolBase) Kind() SymbolKind   { return s.kind }
func (s *symbolBase) Name() string       { return s.name }
func (s *symbolBase) Span() source.Span  { return s.span }
func (s *symbolBase) Parent() SymbolID   { return s.parent }
func (s *symbolBase) base() *symbolBase  { return s }
func (s *symbolBase) Ordinal() uint32    { return s.ord }
func (s *symbolBase) setParent(p Symbol) { s.parent = p.ID() }

func newBase(kind SymbolKind, name string, span source.Span, ord uint32) symbolBase {
	return symbolBase{kind: kind, name: name, span: span, ord: ord}
}
