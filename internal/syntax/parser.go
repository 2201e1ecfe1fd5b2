package syntax

import (
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"svelab/internal/source"
)

// ParseError reports a malformed expression or data type.
type ParseError struct {
	Span source.Span
	Msg  string
}

func (e *ParseError) Error() string { return e.Msg }

type parser struct {
	tree *Tree
	file source.FileID
	base uint32
	lx   lexer
	tok  token
	err  error
}

func newParser(t *Tree, file source.FileID, base uint32, text string) *parser {
	p := &parser{tree: t, file: file, base: base, lx: lexer{src: text}}
	p.advance()
	return p
}

func (p *parser) span(start, end int) source.Span {
	s, err1 := safecast.Conv[uint32](start)
	e, err2 := safecast.Conv[uint32](end)
	if err1 != nil || err2 != nil {
		panic(fmt.Errorf("expression offset overflow"))
	}
	return source.Span{File: p.file, Start: p.base + s, End: p.base + e}
}

func (p *parser) fail(start, end int, format string, args ...any) {
	if p.err == nil {
		p.err = &ParseError{Span: p.span(start, end), Msg: fmt.Sprintf(format, args...)}
	}
}

func (p *parser) advance() {
	if p.err != nil {
		p.tok = token{kind: tokEOF}
		return
	}
	tok, err := p.lx.next()
	if err != nil {
		p.fail(p.lx.off, p.lx.off, "%v", err)
		p.tok = token{kind: tokEOF, start: p.lx.off, end: p.lx.off}
		return
	}
	p.tok = tok
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) expect(s string) token {
	tok := p.tok
	if !p.isPunct(s) {
		p.fail(tok.start, tok.end, "expected %q, found %q", s, tok.text)
		return tok
	}
	p.advance()
	return tok
}

func (p *parser) finish() {
	if p.tok.kind != tokEOF {
		p.fail(p.tok.start, p.tok.end, "unexpected %q after expression", p.tok.text)
	}
}

// ParseExpr parses text located at base inside file.
func (t *Tree) ParseExpr(file source.FileID, base uint32, text string) (ExprID, error) {
	p := newParser(t, file, base, text)
	id := p.parseExpr(0)
	p.finish()
	if p.err != nil {
		return NoExpr, p.err
	}
	return id, nil
}

// ParseDataType parses "logic signed [7:0]", "wire [3:0]", "T", "[7:0]".
func (t *Tree) ParseDataType(file source.FileID, base uint32, text string) (*DataType, error) {
	p := newParser(t, file, base, text)
	dt := p.parseDataType()
	p.finish()
	if p.err != nil {
		return nil, p.err
	}
	return dt, nil
}

func (p *parser) parseDataType() *DataType {
	start := p.tok.start
	dt := &DataType{}
	if p.tok.kind == tokIdent && IsNetKeyword(p.tok.text) {
		dt.NetType = p.tok.text
		p.advance()
	}
	if p.tok.kind == tokIdent {
		switch {
		case IsTypeKeyword(p.tok.text):
			dt.Keyword = p.tok.text
			p.advance()
		case p.tok.text != "signed" && p.tok.text != "unsigned":
			dt.Named = p.tok.text
			p.advance()
		}
	}
	if p.tok.kind == tokIdent {
		switch p.tok.text {
		case "signed":
			dt.Signing = SignSigned
			p.advance()
		case "unsigned":
			dt.Signing = SignUnsigned
			p.advance()
		}
	}
	for p.err == nil && p.isPunct("[") {
		dt.Packed = append(dt.Packed, p.parseRange())
	}
	if dt.NetType == "" && dt.Keyword == "" && dt.Named == "" && dt.Signing == SignDefault && len(dt.Packed) == 0 {
		p.fail(p.tok.start, p.tok.end, "expected data type, found %q", p.tok.text)
	}
	end := p.prevEnd()
	if end < start {
		end = start
	}
	dt.Span = p.span(start, end)
	return dt
}

// ParseRange parses "[7:0]", "[4]" or "7:0" / "4" without brackets.
func (t *Tree) ParseRange(file source.FileID, base uint32, text string) (Range, error) {
	p := newParser(t, file, base, text)
	var r Range
	if p.isPunct("[") {
		r = p.parseRange()
	} else {
		start := p.tok.start
		r = p.parseRangeBody(start)
	}
	p.finish()
	if p.err != nil {
		return Range{}, p.err
	}
	return r, nil
}

func (p *parser) parseRange() Range {
	open := p.expect("[")
	r := p.parseRangeBody(open.start)
	closeTok := p.expect("]")
	r.Span = p.span(open.start, closeTok.end)
	return r
}

func (p *parser) parseRangeBody(start int) Range {
	left := p.parseExpr(0)
	if p.isPunct(":") {
		p.advance()
		right := p.parseExpr(0)
		return Range{Left: left, Right: right, Span: p.span(start, p.tok.start)}
	}
	return Range{Left: left, Single: true, Span: p.span(start, p.tok.start)}
}

// binding powers; ?: and property operators are handled specially
func binaryOp(tok token) (Op, int) {
	if tok.kind != tokPunct {
		return OpNone, 0
	}
	switch tok.text {
	case "|->":
		return OpImplOverlap, 1
	case "|=>":
		return OpImplNonOverlap, 1
	case "##":
		return OpCycleDelay, 2
	case "||":
		return OpLogOr, 4
	case "&&":
		return OpLogAnd, 5
	case "|":
		return OpBitOr, 6
	case "^":
		return OpBitXor, 7
	case "&":
		return OpBitAnd, 8
	case "==":
		return OpEq, 9
	case "!=":
		return OpNe, 9
	case "<":
		return OpLt, 10
	case "<=":
		return OpLe, 10
	case ">":
		return OpGt, 10
	case ">=":
		return OpGe, 10
	case "<<":
		return OpShl, 11
	case ">>":
		return OpShr, 11
	case "+":
		return OpAdd, 12
	case "-":
		return OpSub, 12
	case "*":
		return OpMul, 13
	case "/":
		return OpDiv, 13
	case "%":
		return OpMod, 13
	case "**":
		return OpPow, 14
	}
	return OpNone, 0
}

const ternaryPower = 3

var unaryOps = map[string]Op{"+": OpPlus, "-": OpNeg, "!": OpLogNot, "~": OpBitNot}

func (p *parser) parseExpr(minPower int) ExprID {
	start := p.tok.start
	left := p.parsePrefix()
	for p.err == nil {
		if p.isPunct("?") && minPower <= ternaryPower {
			p.advance()
			then := p.parseExpr(ternaryPower)
			p.expect(":")
			els := p.parseExpr(ternaryPower)
			left = p.tree.Exprs.New(Expr{
				Kind: ExprTernary,
				Span: p.span(start, p.prevEnd()),
				Ops:  []ExprID{left, then, els},
			})
			continue
		}
		op, power := binaryOp(p.tok)
		if op == OpNone || power < minPower {
			break
		}
		p.advance()
		if op == OpCycleDelay {
			delay := p.parseDelayCount()
			right := p.parseExpr(power + 1)
			left = p.tree.Exprs.New(Expr{
				Kind:  ExprProperty,
				Op:    op,
				Delay: delay,
				Span:  p.span(start, p.prevEnd()),
				Ops:   []ExprID{left, right},
			})
			continue
		}
		// ** и импликации правоассоциативны
		next := power + 1
		if op == OpPow || op == OpImplOverlap || op == OpImplNonOverlap {
			next = power
		}
		right := p.parseExpr(next)
		kind := ExprBinary
		if op == OpImplOverlap || op == OpImplNonOverlap {
			kind = ExprProperty
		}
		left = p.tree.Exprs.New(Expr{
			Kind: kind,
			Op:   op,
			Span: p.span(start, p.prevEnd()),
			Ops:  []ExprID{left, right},
		})
	}
	return left
}

// prevEnd is the end offset of the last consumed token.
func (p *parser) prevEnd() int {
	end := p.tok.start
	if p.tok.kind == tokEOF {
		end = len(p.lx.src)
	}
	for end > 0 {
		switch p.lx.src[end-1] {
		case ' ', '\t', '\n', '\r':
			end--
			continue
		}
		break
	}
	return end
}

func (p *parser) parseDelayCount() uint32 {
	tok := p.tok
	if tok.kind != tokInt {
		p.fail(tok.start, tok.end, "expected cycle count after ##")
		return 0
	}
	p.advance()
	n, err := safecast.Conv[uint32](tok.lit.Bits)
	if err != nil {
		p.fail(tok.start, tok.end, "cycle count too large")
	}
	return n
}

func (p *parser) parsePrefix() ExprID {
	tok := p.tok
	switch tok.kind {
	case tokInt:
		p.advance()
		return p.tree.Exprs.New(Expr{Kind: ExprIntLit, Span: p.span(tok.start, tok.end), Lit: tok.lit})
	case tokReal:
		p.advance()
		return p.tree.Exprs.New(Expr{Kind: ExprRealLit, Span: p.span(tok.start, tok.end), Lit: tok.lit})
	case tokString:
		p.advance()
		return p.tree.Exprs.New(Expr{Kind: ExprStringLit, Span: p.span(tok.start, tok.end), Lit: tok.lit})
	case tokIdent:
		p.advance()
		id := p.tree.Exprs.New(Expr{Kind: ExprIdent, Span: p.span(tok.start, tok.end), Name: tok.text})
		return p.parsePostfix(id, tok.start)
	case tokSysIdent:
		p.advance()
		p.expect("(")
		var args []ExprID
		for p.err == nil && !p.isPunct(")") {
			if p.tok.kind == tokIdent && IsTypeKeyword(p.tok.text) {
				// $bits(logic[3:0]) - тип как аргумент
				dt := p.parseDataType()
				args = append(args, p.typeAsExpr(dt))
			} else {
				args = append(args, p.parseExpr(0))
			}
			if !p.isPunct(",") {
				break
			}
			p.advance()
		}
		closeTok := p.expect(")")
		return p.tree.Exprs.New(Expr{Kind: ExprSysCall, Name: tok.text, Span: p.span(tok.start, closeTok.end), Ops: args})
	case tokPunct:
		switch tok.text {
		case "(":
			p.advance()
			inner := p.parseExpr(0)
			p.expect(")")
			return p.parsePostfix(inner, tok.start)
		case "{":
			p.advance()
			var parts []ExprID
			for p.err == nil {
				parts = append(parts, p.parseExpr(0))
				if !p.isPunct(",") {
					break
				}
				p.advance()
			}
			closeTok := p.expect("}")
			return p.tree.Exprs.New(Expr{Kind: ExprConcat, Span: p.span(tok.start, closeTok.end), Ops: parts})
		case "##":
			// ведущая задержка: ##1 a
			p.advance()
			delay := p.parseDelayCount()
			operand := p.parseExpr(3)
			return p.tree.Exprs.New(Expr{
				Kind: ExprProperty, Op: OpCycleDelay, Delay: delay,
				Span: p.span(tok.start, p.prevEnd()), Ops: []ExprID{NoExpr, operand},
			})
		case "+", "-", "!", "~":
			p.advance()
			operand := p.parseExpr(15)
			op := unaryOps[tok.text]
			return p.tree.Exprs.New(Expr{Kind: ExprUnary, Op: op, Span: p.span(tok.start, p.prevEnd()), Ops: []ExprID{operand}})
		}
	}
	if tok.kind == tokEOF {
		p.fail(tok.start, tok.end, "expected expression")
	} else {
		p.fail(tok.start, tok.end, "unexpected %q", tok.text)
	}
	return NoExpr
}

// typeAsExpr stores a data type argument as an identifier-like node so that
// $bits can see the keyword and width.
func (p *parser) typeAsExpr(dt *DataType) ExprID {
	name := dt.Keyword
	if name == "" {
		name = dt.Named
	}
	ops := make([]ExprID, 0, 2*len(dt.Packed))
	for _, r := range dt.Packed {
		ops = append(ops, r.Left, r.Right)
	}
	return p.tree.Exprs.New(Expr{Kind: ExprIdent, Name: name, Span: dt.Span, Ops: ops})
}

func (p *parser) parsePostfix(base ExprID, start int) ExprID {
	for p.err == nil {
		switch {
		case p.isPunct("["):
			p.advance()
			idx := p.parseExpr(0)
			ops := []ExprID{base, idx}
			if p.isPunct(":") {
				p.advance()
				ops = append(ops, p.parseExpr(0))
			}
			closeTok := p.expect("]")
			base = p.tree.Exprs.New(Expr{Kind: ExprIndex, Span: p.span(start, closeTok.end), Ops: ops})
		case p.isPunct("."):
			p.advance()
			nameTok := p.tok
			if nameTok.kind != tokIdent {
				p.fail(nameTok.start, nameTok.end, "expected member name after '.'")
				return base
			}
			p.advance()
			base = p.tree.Exprs.New(Expr{Kind: ExprMember, Name: nameTok.text, Span: p.span(start, nameTok.end), Ops: []ExprID{base}})
		default:
			return base
		}
	}
	return base
}

// Render prints an expression back in source-like form.
func (t *Tree) Render(id ExprID) string {
	x := t.Exprs.Get(id)
	if x == nil {
		return ""
	}
	switch x.Kind {
	case ExprIntLit:
		if x.Lit.Sized {
			return fmt.Sprintf("%d'd%d", x.Lit.Width, x.Lit.Bits)
		}
		return strconv.FormatUint(x.Lit.Bits, 10)
	case ExprRealLit:
		return strconv.FormatFloat(x.Lit.Real, 'g', -1, 64)
	case ExprStringLit:
		return strconv.Quote(x.Lit.Str)
	case ExprIdent:
		return x.Name
	case ExprUnary:
		return x.Op.String() + t.Render(x.Ops[0])
	case ExprBinary:
		return "(" + t.Render(x.Ops[0]) + " " + x.Op.String() + " " + t.Render(x.Ops[1]) + ")"
	case ExprTernary:
		return "(" + t.Render(x.Ops[0]) + " ? " + t.Render(x.Ops[1]) + " : " + t.Render(x.Ops[2]) + ")"
	case ExprProperty:
		op := x.Op.String()
		if x.Op == OpCycleDelay {
			op += strconv.FormatUint(uint64(x.Delay), 10)
		}
		if !x.Ops[0].IsValid() {
			return op + " " + t.Render(x.Ops[1])
		}
		return t.Render(x.Ops[0]) + " " + op + " " + t.Render(x.Ops[1])
	case ExprSysCall:
		s := x.Name + "("
		for i, a := range x.Ops {
			if i > 0 {
				s += ", "
			}
			s += t.Render(a)
		}
		return s + ")"
	case ExprIndex:
		s := t.Render(x.Ops[0]) + "[" + t.Render(x.Ops[1])
		if len(x.Ops) > 2 {
			s += ":" + t.Render(x.Ops[2])
		}
		return s + "]"
	case ExprMember:
		return t.Render(x.Ops[0]) + "." + x.Name
	case ExprConcat:
		s := "{"
		for i, a := range x.Ops {
			if i > 0 {
				s += ", "
			}
			s += t.Render(a)
		}
		return s + "}"
	}
	return "<invalid>"
}
