package design

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// lowerer turns a decoded File into syntax nodes. Spans are recovered by
// searching the raw file text for each string value, moving forward so
// repeated names resolve to the right occurrence in the common case.
type lowerer struct {
	tree     *syntax.Tree
	file     source.FileID
	content  string
	cursor   int
	floor    int
	reporter diag.Reporter
	dirs     Directives
}

func (l *lowerer) locate(text string) uint32 {
	if text == "" {
		return l.offset(l.cursor)
	}
	if i := strings.Index(l.content[l.cursor:], text); i >= 0 {
		off := l.cursor + i
		l.cursor = off + len(text)
		return l.offset(off)
	}
	if i := strings.Index(l.content[l.floor:], text); i >= 0 {
		return l.offset(l.floor + i)
	}
	if i := strings.Index(l.content, text); i >= 0 {
		return l.offset(i)
	}
	return l.offset(l.floor)
}

func (l *lowerer) offset(i int) uint32 {
	if i > len(l.content) {
		i = len(l.content)
	}
	return uint32(i) // #nosec G115 -- file size fits, checked by FileSet
}

func (l *lowerer) spanAt(base uint32, text string) source.Span {
	return source.Span{File: l.file, Start: base, End: base + uint32(len(text))} // #nosec G115 -- substring of the file
}

// name locates an identifier and normalises it to NFC.
func (l *lowerer) name(text string) syntax.Name {
	base := l.locate(text)
	return syntax.Name{Text: norm.NFC.String(strings.TrimSpace(text)), Span: l.spanAt(base, text)}
}

func (l *lowerer) report(err error, fallback source.Span, code diag.Code) {
	var pe *syntax.ParseError
	if errors.As(err, &pe) {
		diag.ReportError(l.reporter, code, pe.Span, pe.Msg).Emit()
		return
	}
	diag.ReportError(l.reporter, code, fallback, err.Error()).Emit()
}

// exprAt parses text found at base. Blank text is an absent expression.
func (l *lowerer) exprAt(base uint32, text string) syntax.ExprID {
	if strings.TrimSpace(text) == "" {
		return syntax.NoExpr
	}
	id, err := l.tree.ParseExpr(l.file, base, text)
	if err != nil {
		l.report(err, l.spanAt(base, text), diag.SynBadExpression)
		return syntax.NoExpr
	}
	return id
}

func (l *lowerer) expr(text string) syntax.ExprID {
	if strings.TrimSpace(text) == "" {
		return syntax.NoExpr
	}
	return l.exprAt(l.locate(text), text)
}

func (l *lowerer) dataTypeAt(base uint32, text string) *syntax.DataType {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	dt, err := l.tree.ParseDataType(l.file, base, text)
	if err != nil {
		l.report(err, l.spanAt(base, text), diag.SynBadDataType)
		return nil
	}
	return dt
}

func (l *lowerer) dataType(text string) *syntax.DataType {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return l.dataTypeAt(l.locate(text), text)
}

func (l *lowerer) ranges(texts []string) []syntax.Range {
	out := make([]syntax.Range, 0, len(texts))
	for _, t := range texts {
		base := l.locate(t)
		r, err := l.tree.ParseRange(l.file, base, t)
		if err != nil {
			l.report(err, l.spanAt(base, t), diag.SynBadExpression)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (l *lowerer) module(parent string, m *Module) *syntax.ModuleDecl {
	if m.Name == "" {
		diag.ReportError(l.reporter, diag.SynMissingName, l.spanAt(l.offset(l.cursor), ""),
			"definition without a name").Emit()
		return nil
	}
	nm := l.name(m.Name)
	l.floor = int(nm.Span.Start)
	decl := &syntax.ModuleDecl{
		Name:     nm.Text,
		NameSpan: nm.Span,
		Span:     nm.Span,
		Ordinal:  l.tree.NextOrdinal(),
	}
	switch strings.ToLower(m.Kind) {
	case "", "module":
		decl.Keyword = syntax.KwModule
	case "interface":
		decl.Keyword = syntax.KwInterface
	case "program":
		decl.Keyword = syntax.KwProgram
	case "primitive", "udp":
		decl.Keyword = syntax.KwPrimitive
	default:
		diag.ReportError(l.reporter, diag.SynBadDeclKind, l.spanAt(l.locate(m.Kind), m.Kind),
			fmt.Sprintf("unknown definition kind %q (expected module, interface, program or primitive)", m.Kind)).Emit()
	}
	switch m.Lifetime {
	case "automatic":
		decl.Lifetime = syntax.LifetimeAutomatic
	case "static":
		decl.Lifetime = syntax.LifetimeStatic
	}
	decl.TimeUnit = l.timeLiteral(m.TimeUnit)
	decl.TimePrecision = l.timeLiteral(m.TimePrecision)
	decl.Directives = l.directives(m.Directives)

	decl.ParamPortList = len(m.Params) > 0
	for i := range m.Params {
		if p := l.headerParam(&m.Params[i]); p != nil {
			decl.ParamPorts = append(decl.ParamPorts, p)
		}
	}
	switch {
	case len(m.Ports) > 0:
		decl.PortStyle = syntax.PortsAnsi
		for i := range m.Ports {
			decl.AnsiPorts = append(decl.AnsiPorts, l.ansiPort(&m.Ports[i]))
		}
	case len(m.PortNames) > 0:
		decl.PortStyle = syntax.PortsNonAnsi
		for _, n := range m.PortNames {
			decl.PortNames = append(decl.PortNames, l.name(n))
		}
	}
	decl.Members = l.members(m.Members)

	qual := decl.Name
	if parent != "" {
		qual = parent + "." + decl.Name
	}
	for i := range m.Nested {
		if n := l.module(qual, &m.Nested[i]); n != nil {
			decl.Nested = append(decl.Nested, n)
		}
	}
	return decl
}

func (l *lowerer) timeLiteral(text string) *syntax.TimeLiteral {
	if text == "" {
		return nil
	}
	base := l.locate(text)
	v, err := syntax.ParseTimeValue(text)
	if err != nil {
		diag.ReportError(l.reporter, diag.SynBadTimeLiteral, l.spanAt(base, text), err.Error()).Emit()
		return nil
	}
	return &syntax.TimeLiteral{Value: v, Span: l.spanAt(base, text)}
}

// directives merges module-level settings over the file-level ones.
func (l *lowerer) directives(own *Directives) syntax.Directives {
	d := l.dirs
	if own != nil {
		if own.DefaultNetType != "" {
			d.DefaultNetType = own.DefaultNetType
		}
		if own.UnconnectedDrive != "" {
			d.UnconnectedDrive = own.UnconnectedDrive
		}
		if own.Timescale != "" {
			d.Timescale = own.Timescale
		}
	}
	out := syntax.Directives{
		DefaultNetType:   d.DefaultNetType,
		UnconnectedDrive: d.UnconnectedDrive,
	}
	if d.Timescale != "" {
		base := l.locate(d.Timescale)
		sp := l.spanAt(base, d.Timescale)
		ts, err := syntax.ParseTimescale(d.Timescale)
		if err != nil {
			diag.ReportError(l.reporter, diag.SynBadTimeLiteral, sp, err.Error()).Emit()
		} else {
			out.Timescale = &ts
			out.TimescaleSpan = sp
		}
	}
	return out
}

func (l *lowerer) paramDecl(name, kind, typ, def string, local bool) *syntax.ParamDecl {
	if name == "" {
		diag.ReportError(l.reporter, diag.SynMissingName, l.spanAt(l.offset(l.cursor), ""),
			"parameter without a name").Emit()
		return nil
	}
	nm := l.name(name)
	p := &syntax.ParamDecl{
		Local:    local,
		Name:     nm.Text,
		NameSpan: nm.Span,
		Span:     nm.Span,
		Ordinal:  l.tree.NextOrdinal(),
	}
	if kind == "type" {
		p.Kind = syntax.ParamType
		p.Type = &syntax.TypeParam{Default: l.dataType(def)}
		return p
	}
	p.Kind = syntax.ParamValue
	p.Value = &syntax.ValueParam{Type: l.dataType(typ), Default: l.expr(def)}
	return p
}

func (l *lowerer) headerParam(p *Param) *syntax.ParamDecl {
	return l.paramDecl(p.Name, p.Kind, p.Type, p.Default, p.Local)
}

func parseDir(s string) (syntax.Direction, bool) {
	switch s {
	case "", "input":
		return syntax.DirInput, true
	case "output":
		return syntax.DirOutput, true
	case "inout":
		return syntax.DirInout, true
	case "ref":
		return syntax.DirRef, true
	}
	return syntax.DirInput, false
}

func (l *lowerer) direction(s string) syntax.Direction {
	d, ok := parseDir(s)
	if !ok {
		diag.ReportError(l.reporter, diag.SynUnknownMember, l.spanAt(l.locate(s), s),
			fmt.Sprintf("unknown port direction %q", s)).Emit()
	}
	return d
}

func (l *lowerer) ansiPort(p *Port) *syntax.AnsiPort {
	nm := l.name(p.Name)
	out := &syntax.AnsiPort{
		Name:      nm.Text,
		NameSpan:  nm.Span,
		Span:      nm.Span,
		Ordinal:   l.tree.NextOrdinal(),
		Interface: p.Interface,
		Modport:   p.Modport,
	}
	if p.Interface == "" {
		out.Dir = l.direction(p.Dir)
		out.Type = l.dataType(p.Type)
	}
	return out
}

func (l *lowerer) names(one string, many []string) []syntax.Name {
	var out []syntax.Name
	if one != "" {
		out = append(out, l.name(one))
	}
	for _, n := range many {
		out = append(out, l.name(n))
	}
	return out
}

func (l *lowerer) members(ms []Member) []syntax.Member {
	out := make([]syntax.Member, 0, len(ms))
	for i := range ms {
		if m := l.member(&ms[i]); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func (l *lowerer) member(m *Member) syntax.Member {
	kindBase := l.locate(m.Kind)
	kindSpan := l.spanAt(kindBase, m.Kind)
	base := syntax.MemberBase{Sp: kindSpan}
	switch m.Kind {
	case "param", "localparam", "parameter":
		kind := ""
		if m.TypeParam {
			kind = "type"
		}
		d := l.paramDecl(m.Name, kind, m.Type, m.Default, m.Local || m.Kind == "localparam")
		if d == nil {
			return nil
		}
		base.Ord = d.Ordinal
		return &syntax.ParamMember{MemberBase: base, Decl: d}

	case "port":
		base.Ord = l.tree.NextOrdinal()
		return &syntax.PortDecl{
			MemberBase: base,
			Dir:        l.direction(m.Dir),
			Type:       l.dataType(m.Type),
			Names:      l.names(m.Name, m.Names),
		}

	case "net", "var":
		base.Ord = l.tree.NextOrdinal()
		dt := l.dataType(m.Type)
		var decls []*syntax.Declarator
		for _, n := range l.names(m.Name, m.Names) {
			decls = append(decls, &syntax.Declarator{Name: n.Text, Span: n.Span, Init: l.expr(m.Init)})
		}
		if len(decls) == 0 {
			diag.ReportError(l.reporter, diag.SynMissingName, kindSpan,
				fmt.Sprintf("%s declaration without a name", m.Kind)).Emit()
			return nil
		}
		if m.Kind == "var" {
			return &syntax.VarDecl{MemberBase: base, Type: dt, Declarators: decls}
		}
		netType := m.NetType
		if netType == "" && dt != nil {
			netType = dt.NetType
		}
		return &syntax.NetDecl{MemberBase: base, NetType: netType, Type: dt, Declarators: decls}

	case "assign":
		base.Ord = l.tree.NextOrdinal()
		lhs := l.expr(m.LHS)
		rhs := l.expr(m.RHS)
		if !lhs.IsValid() || !rhs.IsValid() {
			return nil
		}
		base.Sp = l.tree.Exprs.Get(lhs).Span.Cover(l.tree.Exprs.Get(rhs).Span)
		return &syntax.ContinuousAssign{MemberBase: base, LHS: lhs, RHS: rhs}

	case "inst":
		if syntax.IsGateKeyword(m.Module) {
			return l.gate(base, m, m.Module)
		}
		if inst := l.instantiation(base, m); inst != nil {
			return inst
		}
		return nil

	case "gate":
		name := m.Gate
		if name == "" {
			name = m.Module
		}
		return l.gate(base, m, name)

	case "bind":
		return l.bind(base, m)

	case "if":
		base.Ord = l.tree.NextOrdinal()
		g := &syntax.GenerateIf{
			MemberBase: base,
			Cond:       l.expr(m.Cond),
			Label:      m.Label,
			ElseLabel:  m.ElseLabel,
		}
		if !g.Cond.IsValid() {
			return nil
		}
		g.Then = l.members(m.Then)
		g.Else = l.members(m.Else)
		return g

	case "modport":
		base.Ord = l.tree.NextOrdinal()
		return &syntax.ModportDecl{MemberBase: base, Names: l.names(m.Name, m.Names)}

	case "virtual":
		base.Ord = l.tree.NextOrdinal()
		ifBase := l.locate(m.Interface)
		return &syntax.VirtualInterfaceVar{
			MemberBase: base,
			Interface:  m.Interface,
			IfaceSpan:  l.spanAt(ifBase, m.Interface),
			Params:     l.paramAssigns(m.Params),
			Modport:    m.Modport,
			Names:      l.names(m.Name, m.Names),
		}
	}
	diag.ReportError(l.reporter, diag.SynUnknownMember, kindSpan,
		fmt.Sprintf("unknown member kind %q", m.Kind)).Emit()
	return nil
}

func (l *lowerer) instances(m *Member) []*syntax.HierInstance {
	list := m.Instances
	if len(list) == 0 && m.Name != "" {
		list = []Instance{{Name: m.Name, Dims: m.Dims, Conns: m.Conns}}
	}
	out := make([]*syntax.HierInstance, 0, len(list))
	for i := range list {
		in := &list[i]
		nm := l.name(in.Name)
		hi := &syntax.HierInstance{Name: nm.Text, NameSpan: nm.Span, Span: nm.Span}
		hi.Dims = l.ranges(in.Dims)
		for _, c := range in.Conns {
			pc := l.conn(c)
			hi.Conns = append(hi.Conns, pc)
			hi.Span = hi.Span.Cover(pc.Span)
		}
		out = append(out, hi)
	}
	return out
}

func (l *lowerer) instantiation(base syntax.MemberBase, m *Member) *syntax.HierInstantiation {
	base.Ord = l.tree.NextOrdinal()
	typ := l.name(m.Module)
	inst := &syntax.HierInstantiation{
		MemberBase: base,
		Type:       typ.Text,
		TypeSpan:   typ.Span,
		Params:     l.paramAssigns(m.Params),
	}
	if inst.Type == "" {
		diag.ReportError(l.reporter, diag.SynMissingName, base.Sp, "instantiation without a module name").Emit()
		return nil
	}
	inst.Instances = l.instances(m)
	if len(inst.Instances) == 0 {
		diag.ReportError(l.reporter, diag.SynMissingName, typ.Span,
			fmt.Sprintf("instantiation of '%s' without an instance name", inst.Type)).Emit()
		return nil
	}
	inst.Sp = typ.Span
	return inst
}

func (l *lowerer) gate(base syntax.MemberBase, m *Member, name string) syntax.Member {
	base.Ord = l.tree.NextOrdinal()
	g := l.name(name)
	p := &syntax.PrimitiveInstantiation{
		MemberBase: base,
		Gate:       g.Text,
		GateSpan:   g.Span,
	}
	p.Sp = g.Span
	switch {
	case m.Delay != "":
		p.Delay = l.expr(m.Delay)
	case len(m.Params) == 1:
		p.Delay = l.expr(m.Params[0])
	}
	p.Instances = l.instances(m)
	if len(p.Instances) == 0 {
		// gates may be anonymous
		p.Instances = []*syntax.HierInstance{{NameSpan: g.Span, Span: g.Span}}
		for _, c := range m.Conns {
			p.Instances[0].Conns = append(p.Instances[0].Conns, l.conn(c))
		}
	}
	return p
}

func (l *lowerer) bind(base syntax.MemberBase, m *Member) syntax.Member {
	base.Ord = l.tree.NextOrdinal()
	tgt := l.name(m.Target)
	b := &syntax.BindDirective{
		MemberBase: base,
		Target:     tgt.Text,
		TargetSpan: tgt.Span,
	}
	if b.Target == "" {
		diag.ReportError(l.reporter, diag.SynMissingName, base.Sp, "bind directive without a target").Emit()
		return nil
	}
	for _, t := range m.TargetInstances {
		b.TargetInstances = append(b.TargetInstances, l.name(t))
	}
	inst := l.instantiation(syntax.MemberBase{Sp: base.Sp}, m)
	if inst == nil {
		return nil
	}
	b.Inst = inst
	b.Sp = tgt.Span
	return b
}

// conn parses one port connection: ".*", ".p(expr)", ".p()", ".p" or an
// ordered expression.
func (l *lowerer) conn(text string) *syntax.PortConn {
	base := l.locate(text)
	sp := l.spanAt(base, text)
	lead := len(text) - len(strings.TrimLeft(text, " \t"))
	t := strings.TrimSpace(text)
	at := base + uint32(lead) // #nosec G115 -- substring offset
	if t == ".*" {
		return &syntax.PortConn{Kind: syntax.ConnWildcard, Span: sp}
	}
	if !strings.HasPrefix(t, ".") {
		return &syntax.PortConn{Kind: syntax.ConnOrdered, Expr: l.exprAt(at, t), Span: sp}
	}
	n := 1
	for n < len(t) && isIdentByte(t[n]) {
		n++
	}
	name := t[1:n]
	pc := &syntax.PortConn{
		Kind:     syntax.ConnNamed,
		Name:     norm.NFC.String(name),
		NameSpan: l.spanAt(at+1, name),
		Span:     sp,
	}
	rest := strings.TrimSpace(t[n:])
	if rest == "" {
		pc.Expr = l.exprAt(at+1, name)
		return pc
	}
	if rest[0] != '(' || rest[len(rest)-1] != ')' {
		diag.ReportError(l.reporter, diag.SynBadExpression, sp,
			fmt.Sprintf("malformed port connection %q", text)).Emit()
		return pc
	}
	open := strings.IndexByte(t, '(')
	inner := t[open+1 : len(t)-1]
	pc.Expr = l.exprAt(at+uint32(open+1), inner) // #nosec G115 -- substring offset
	return pc
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// paramAssigns parses "#(...)" items: "8", ".W(8)", ".T(logic [3:0])".
func (l *lowerer) paramAssigns(items []string) *syntax.ParamAssignList {
	if len(items) == 0 {
		return nil
	}
	list := &syntax.ParamAssignList{}
	for i, text := range items {
		base := l.locate(text)
		sp := l.spanAt(base, text)
		if i == 0 {
			list.Span = sp
		} else {
			list.Span = list.Span.Cover(sp)
		}
		lead := len(text) - len(strings.TrimLeft(text, " \t"))
		t := strings.TrimSpace(text)
		at := base + uint32(lead) // #nosec G115 -- substring offset
		a := &syntax.ParamAssign{Span: sp}
		value, valueAt := t, at
		if strings.HasPrefix(t, ".") {
			n := 1
			for n < len(t) && isIdentByte(t[n]) {
				n++
			}
			a.Name = norm.NFC.String(t[1:n])
			a.NameSpan = l.spanAt(at+1, t[1:n])
			rest := strings.TrimSpace(t[n:])
			if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
				diag.ReportError(l.reporter, diag.SynBadExpression, sp,
					fmt.Sprintf("malformed parameter assignment %q", text)).Emit()
				continue
			}
			open := strings.IndexByte(t, '(')
			value = t[open+1 : len(t)-1]
			valueAt = at + uint32(open+1) // #nosec G115 -- substring offset
		}
		if syntax.LooksLikeDataType(value) {
			a.Type = l.dataTypeAt(valueAt, value)
		} else {
			a.Expr = l.exprAt(valueAt, value)
		}
		list.Items = append(list.Items, a)
	}
	return list
}
