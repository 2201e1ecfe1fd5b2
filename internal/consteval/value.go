package consteval

import (
	"fmt"
	"math"
	"strconv"
)

// Kind discriminates constant values. KindPoison marks a value whose
// computation already failed; it propagates without further diagnostics.
type Kind uint8

const (
	KindPoison Kind = iota
	KindInt
	KindReal
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	}
	return "poison"
}

// Value is a constant: a two-state integral of up to 64 bits, a real or a
// string. The zero Value is poison.
type Value struct {
	Kind   Kind
	Bits   uint64
	Real   float64
	Str    string
	Width  uint32
	Signed bool
}

func Poison() Value { return Value{} }

// Int returns a 32-bit signed integer, the type of unsized decimals.
func Int(v int64) Value {
	return Value{Kind: KindInt, Bits: uint64(v) & mask(32), Width: 32, Signed: true}
}

// Sized returns an integral of the given width and signedness.
func Sized(bits uint64, width uint32, signed bool) Value {
	if width == 0 {
		width = 32
	}
	return Value{Kind: KindInt, Bits: bits & mask(width), Width: width, Signed: signed}
}

func Real(f float64) Value     { return Value{Kind: KindReal, Real: f, Width: 64, Signed: true} }
func String(s string) Value    { return Value{Kind: KindString, Str: s, Width: strWidth(s)} }
func (v Value) IsPoison() bool { return v.Kind == KindPoison }

func strWidth(s string) uint32 {
	if len(s) > math.MaxUint32/8 {
		return math.MaxUint32
	}
	return uint32(len(s)) * 8 // #nosec G115 -- bounded above
}

func mask(width uint32) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// Int64 interprets the bits according to signedness.
func (v Value) Int64() int64 {
	switch v.Kind {
	case KindReal:
		return int64(math.Round(v.Real))
	case KindInt:
		if v.Signed && v.Width < 64 && v.Width > 0 && v.Bits&(uint64(1)<<(v.Width-1)) != 0 {
			return int64(v.Bits | ^mask(v.Width)) // #nosec G115 -- sign extension
		}
		return int64(v.Bits) // #nosec G115 -- two's complement reinterpretation
	}
	return 0
}

func (v Value) Float() float64 {
	if v.Kind == KindReal {
		return v.Real
	}
	if v.Kind == KindInt && !v.Signed {
		return float64(v.Bits)
	}
	return float64(v.Int64())
}

// Bool reports the truth of an integral or real value.
func (v Value) Bool() bool {
	switch v.Kind {
	case KindInt:
		return v.Bits != 0
	case KindReal:
		return v.Real != 0
	case KindString:
		return v.Str != ""
	}
	return false
}

// Equal compares numeric values regardless of width. Poison is never
// equal to anything, itself included.
func (v Value) Equal(o Value) bool {
	if v.IsPoison() || o.IsPoison() {
		return false
	}
	if v.Kind != o.Kind {
		if v.Kind == KindString || o.Kind == KindString {
			return false
		}
		return v.Float() == o.Float()
	}
	switch v.Kind {
	case KindInt:
		return v.Int64() == o.Int64()
	case KindReal:
		return v.Real == o.Real
	default:
		return v.Str == o.Str
	}
}

// Convert casts to an integral of width and signedness. Strings and poison
// are returned unchanged.
func (v Value) Convert(width uint32, signed bool) Value {
	switch v.Kind {
	case KindInt, KindReal:
		return Sized(uint64(v.Int64()), width, signed) // #nosec G115 -- truncation intended
	}
	return v
}

// ToReal converts integral values to real.
func (v Value) ToReal() Value {
	if v.Kind == KindInt {
		return Real(v.Float())
	}
	return v
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		if v.Signed {
			return strconv.FormatInt(v.Int64(), 10)
		}
		return strconv.FormatUint(v.Bits, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.Str)
	}
	return "<poison>"
}

// GoString is used in test failure messages.
func (v Value) GoString() string {
	sign := "u"
	if v.Signed {
		sign = "s"
	}
	return fmt.Sprintf("%s:%d%s(%s)", v.Kind, v.Width, sign, v)
}
