package syntax

import (
	"strings"

	"svelab/internal/source"
)

type Signing uint8

const (
	SignDefault Signing = iota
	SignSigned
	SignUnsigned
)

// Range is a packed or unpacked dimension. Single marks the [N] form.
type Range struct {
	Left   ExprID
	Right  ExprID
	Single bool
	Span   source.Span
}

// DataType is the syntax of a data type: a keyword or a named type with
// optional signing and packed dimensions.
type DataType struct {
	Span    source.Span
	NetType string // wire, tri, ... when the text starts with a net keyword
	Keyword string // logic, bit, int, ... empty for named or implicit types
	Named   string
	Signing Signing
	Packed  []Range
}

// IsImplicit reports a type with only signing and/or dimensions.
func (dt *DataType) IsImplicit() bool {
	return dt != nil && dt.Keyword == "" && dt.Named == ""
}

var typeKeywords = map[string]struct{}{
	"logic": {}, "bit": {}, "reg": {},
	"int": {}, "integer": {}, "byte": {}, "shortint": {}, "longint": {},
	"real": {}, "shortreal": {}, "realtime": {}, "time": {},
	"string": {},
}

var netKeywords = map[string]struct{}{
	"wire": {}, "tri": {}, "wand": {}, "wor": {}, "triand": {}, "trior": {},
	"tri0": {}, "tri1": {}, "supply0": {}, "supply1": {}, "uwire": {},
}

// IsTypeKeyword reports whether s names a built-in data type.
func IsTypeKeyword(s string) bool {
	_, ok := typeKeywords[s]
	return ok
}

// IsNetKeyword reports whether s names a net type.
func IsNetKeyword(s string) bool {
	_, ok := netKeywords[s]
	return ok
}

// LooksLikeDataType is used where grammar allows either an expression or a
// type (parameter assignments, overrides).
func LooksLikeDataType(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if t[0] == '[' {
		return true
	}
	end := 0
	for end < len(t) && isIdentPart(t[end]) {
		end++
	}
	word := t[:end]
	return IsTypeKeyword(word) || IsNetKeyword(word) || word == "signed" || word == "unsigned"
}
