package syntax

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokSysIdent
	tokInt
	tokReal
	tokString
	tokPunct
)

type token struct {
	kind  tokKind
	text  string
	start int
	end   int
	lit   Literal
}

// lexer режет строку выражения на токены; позиции относительны к началу
// строки, базовое смещение добавляет парсер.
type lexer struct {
	src string
	off int
}

// самые длинные операторы первыми
var puncts = []string{
	"|->", "|=>", "**", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "##",
	"+", "-", "*", "/", "%", "<", ">", "&", "|", "^", "!", "~",
	"?", ":", "(", ")", "[", "]", "{", "}", ",", ".",
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9') || b == '$'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (lx *lexer) skipSpace() {
	for lx.off < len(lx.src) {
		switch lx.src[lx.off] {
		case ' ', '\t', '\n', '\r':
			lx.off++
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	start := lx.off
	if lx.off >= len(lx.src) {
		return token{kind: tokEOF, start: start, end: start}, nil
	}
	b := lx.src[lx.off]
	switch {
	case isIdentStart(b):
		for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
			lx.off++
		}
		return token{kind: tokIdent, text: lx.src[start:lx.off], start: start, end: lx.off}, nil
	case b == '$':
		lx.off++
		for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
			lx.off++
		}
		return token{kind: tokSysIdent, text: lx.src[start:lx.off], start: start, end: lx.off}, nil
	case isDigit(b) || b == '\'':
		return lx.scanNumber()
	case b == '"':
		lx.off++
		var sb strings.Builder
		for lx.off < len(lx.src) && lx.src[lx.off] != '"' {
			if lx.src[lx.off] == '\\' && lx.off+1 < len(lx.src) {
				lx.off++
			}
			sb.WriteByte(lx.src[lx.off])
			lx.off++
		}
		if lx.off >= len(lx.src) {
			return token{}, fmt.Errorf("unterminated string literal at %d", start)
		}
		lx.off++
		return token{kind: tokString, text: lx.src[start:lx.off], start: start, end: lx.off, lit: Literal{Str: sb.String()}}, nil
	}
	for _, p := range puncts {
		if strings.HasPrefix(lx.src[lx.off:], p) {
			lx.off += len(p)
			return token{kind: tokPunct, text: p, start: start, end: lx.off}, nil
		}
	}
	return token{}, fmt.Errorf("unexpected character %q at %d", b, start)
}

// scanNumber: 12, 1_000, 1.5, 8'hff, 4'sb1010, 'd3.
func (lx *lexer) scanNumber() (token, error) {
	start := lx.off
	for lx.off < len(lx.src) && (isDigit(lx.src[lx.off]) || lx.src[lx.off] == '_') {
		lx.off++
	}
	sizeText := strings.ReplaceAll(lx.src[start:lx.off], "_", "")

	if lx.off < len(lx.src) && lx.src[lx.off] == '.' && lx.off+1 < len(lx.src) && isDigit(lx.src[lx.off+1]) {
		lx.off++
		for lx.off < len(lx.src) && (isDigit(lx.src[lx.off]) || lx.src[lx.off] == '_') {
			lx.off++
		}
		text := lx.src[start:lx.off]
		f, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
		if err != nil {
			return token{}, fmt.Errorf("bad real literal %q", text)
		}
		return token{kind: tokReal, text: text, start: start, end: lx.off, lit: Literal{Real: f}}, nil
	}

	if lx.off >= len(lx.src) || lx.src[lx.off] != '\'' {
		v, err := strconv.ParseUint(sizeText, 10, 64)
		if err != nil || v > math.MaxInt32 {
			return token{}, fmt.Errorf("bad integer literal %q", lx.src[start:lx.off])
		}
		// несized десятичное: 32-битное знаковое
		return token{kind: tokInt, text: lx.src[start:lx.off], start: start, end: lx.off,
			lit: Literal{Bits: v, Width: 32, Signed: true}}, nil
	}

	lx.off++ // '\''
	lit := Literal{Width: 32}
	if sizeText != "" {
		w, err := strconv.ParseUint(sizeText, 10, 32)
		if err != nil || w == 0 || w > 64 {
			return token{}, fmt.Errorf("literal size must be 1..64: %q", sizeText)
		}
		lit.Width = uint32(w)
		lit.Sized = true
	}
	if lx.off < len(lx.src) && (lx.src[lx.off] == 's' || lx.src[lx.off] == 'S') {
		lit.Signed = true
		lx.off++
	}
	if lx.off >= len(lx.src) {
		return token{}, fmt.Errorf("missing base in literal at %d", start)
	}
	base := 0
	switch lx.src[lx.off] {
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	case 'd', 'D':
		base = 10
	case 'h', 'H':
		base = 16
	default:
		return token{}, fmt.Errorf("bad literal base %q at %d", lx.src[lx.off], lx.off)
	}
	lx.off++
	digitsStart := lx.off
	for lx.off < len(lx.src) && (isIdentPart(lx.src[lx.off])) {
		lx.off++
	}
	digits := strings.ReplaceAll(lx.src[digitsStart:lx.off], "_", "")
	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return token{}, fmt.Errorf("bad digits %q for base %d", digits, base)
	}
	if lit.Width < 64 {
		v &= (uint64(1) << lit.Width) - 1
	}
	lit.Bits = v
	return token{kind: tokInt, text: lx.src[start:lx.off], start: start, end: lx.off, lit: lit}, nil
}
