package types

import (
	"fmt"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs of the predefined types.
type Builtins struct {
	Error    TypeID
	Logic    TypeID
	Bit      TypeID
	Reg      TypeID
	Byte     TypeID
	ShortInt TypeID
	Int      TypeID
	Integer  TypeID
	LongInt  TypeID
	Real     TypeID
	String   TypeID
}

// Interner hands out stable TypeIDs for structural descriptors.
type Interner struct {
	mu       sync.RWMutex
	types    []Type
	index    map[Type]TypeID
	builtins Builtins
}

type keywordInfo struct {
	width     uint32
	fourState bool
	signed    bool
	kind      Kind
}

var keywords = map[string]keywordInfo{
	"logic":     {1, true, false, KindIntegral},
	"reg":       {1, true, false, KindIntegral},
	"bit":       {1, false, false, KindIntegral},
	"byte":      {8, false, true, KindIntegral},
	"shortint":  {16, false, true, KindIntegral},
	"int":       {32, false, true, KindIntegral},
	"integer":   {32, true, true, KindIntegral},
	"longint":   {64, false, true, KindIntegral},
	"time":      {64, true, false, KindIntegral},
	"real":      {64, false, true, KindReal},
	"realtime":  {64, false, true, KindReal},
	"shortreal": {32, false, true, KindReal},
	"string":    {0, false, false, KindString},
}

// IsVectorKeyword reports keywords that accept packed dimensions.
func IsVectorKeyword(kw string) bool {
	return kw == "logic" || kw == "reg" || kw == "bit"
}

// NewInterner constructs an interner seeded with the predefined types.
func NewInterner() *Interner {
	in := &Interner{index: make(map[Type]TypeID, 64)}
	in.types = append(in.types, Type{}) // 0 - NoTypeID
	in.builtins.Error = in.Intern(Type{Kind: KindError})
	b := &in.builtins
	b.Logic = in.Keyword("logic", nil, nil)
	b.Bit = in.Keyword("bit", nil, nil)
	b.Reg = in.Keyword("reg", nil, nil)
	b.Byte = in.Keyword("byte", nil, nil)
	b.ShortInt = in.Keyword("shortint", nil, nil)
	b.Int = in.Keyword("int", nil, nil)
	b.Integer = in.Keyword("integer", nil, nil)
	b.LongInt = in.Keyword("longint", nil, nil)
	b.Real = in.Keyword("real", nil, nil)
	b.String = in.Keyword("string", nil, nil)
	return in
}

func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern returns the ID of t, adding it when new.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	in.mu.RLock()
	id, ok := in.index[t]
	in.mu.RUnlock()
	if ok {
		return id
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[t]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id = TypeID(n)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Keyword interns a predefined type with optional signing override and
// packed dimensions. Unknown keywords and dimensions on non-vector keywords
// yield the error type; the caller reports.
func (in *Interner) Keyword(kw string, signed *bool, dims []Dim) TypeID {
	info, ok := keywords[kw]
	if !ok {
		return in.builtins.Error
	}
	if len(dims) > 0 && !IsVectorKeyword(kw) {
		return in.builtins.Error
	}
	t := Type{
		Kind:      info.kind,
		Keyword:   kw,
		FourState: info.fourState,
		Signed:    info.signed,
		Width:     info.width,
	}
	if signed != nil && info.kind == KindIntegral {
		t.Signed = *signed
	}
	if len(dims) > 0 {
		var sb strings.Builder
		width := uint64(1)
		for _, d := range dims {
			fmt.Fprintf(&sb, "[%d:%d]", d.Left, d.Right)
			width *= uint64(d.Width())
		}
		w, err := safecast.Conv[uint32](width)
		if err != nil {
			return in.builtins.Error
		}
		t.Width = w
		t.Dims = sb.String()
	}
	return in.Intern(t)
}

// Lookup returns the descriptor for id.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// IsError reports the error type and NoTypeID.
func (in *Interner) IsError(id TypeID) bool {
	t, ok := in.Lookup(id)
	return !ok || t.Kind == KindError
}

// Width returns the bit width, 0 for error and string types.
// IsVector reports an integral type with a single packed dimension, or an
// integer atom such as int. One index selects one bit of it.
func (in *Interner) IsVector(id TypeID) bool {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindIntegral {
		return false
	}
	n := strings.Count(t.Dims, "[")
	return n == 1 || (n == 0 && t.Width > 1)
}

func (in *Interner) Width(id TypeID) uint32 {
	t, ok := in.Lookup(id)
	if !ok {
		return 0
	}
	return t.Width
}

// String renders id the way it would be written in source.
func (in *Interner) String(id TypeID) string {
	t, ok := in.Lookup(id)
	if !ok {
		return "<none>"
	}
	if t.Kind == KindError {
		return "<error>"
	}
	s := t.Keyword
	info := keywords[t.Keyword]
	if t.Kind == KindIntegral && t.Signed != info.signed {
		if t.Signed {
			s += " signed"
		} else {
			s += " unsigned"
		}
	}
	return s + t.Dims
}
