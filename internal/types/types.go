package types

import "fmt"

// TypeID uniquely identifies a type inside the interner. Two types are the
// same type iff their IDs are equal.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindError is the result of any failed resolution. It absorbs further
	// checks silently.
	KindError
	KindIntegral
	KindReal
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindError:
		return "error"
	case KindIntegral:
		return "integral"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Dim is one packed dimension [Left:Right].
type Dim struct {
	Left, Right int32
}

// Width returns the number of elements covered by d.
func (d Dim) Width() uint32 {
	n := int64(d.Left) - int64(d.Right)
	if n < 0 {
		n = -n
	}
	return uint32(n + 1) // #nosec G115 -- bounded by int32 span
}

// Type is a compact, comparable descriptor. Dims is the canonical rendering
// of the packed dimensions so that Type can be used as a map key.
type Type struct {
	Kind      Kind
	Keyword   string // logic, bit, int, ...
	FourState bool
	Signed    bool
	Width     uint32
	Dims      string // "[7:0]" or "[1:0][3:0]"
}
