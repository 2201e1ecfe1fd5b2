package elab

import (
	"fmt"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
	"svelab/internal/types"
)

// PortSymbol is a value port of a body.
type PortSymbol struct {
	symbolBase
	Direction syntax.Direction
	Type      types.TypeID
	NetType   string
}

// InterfacePortSymbol is a port whose type is an interface, optionally
// restricted to a modport. Interface is nil when the name did not resolve.
type InterfacePortSymbol struct {
	symbolBase
	InterfaceName string
	Interface     *Definition
	Modport       string
}

func (b *InstanceBody) addPort(sym Symbol) {
	sym.base().parent = b.ID()
	if prev := b.scope.insert(sym); prev != nil {
		diag.ReportError(b.comp.reporter, diag.ElabDuplicateMember, sym.Span(),
			fmt.Sprintf("redefinition of port '%s'", sym.Name())).
			WithNote(prev.Span(), "previous definition here").Emit()
		return
	}
	b.ports = append(b.ports, sym)
	b.portsByName[sym.Name()] = sym
}

func netTypeOf(dt *syntax.DataType) string {
	if dt == nil {
		return ""
	}
	return dt.NetType
}

// buildPorts creates the port symbols from the header and, for non-ANSI
// headers, the matching body declarations.
func (b *InstanceBody) buildPorts() {
	c := b.comp
	decl := b.def.Syntax
	portDecls := make([]*syntax.PortDecl, 0)
	for _, m := range decl.Members {
		if pd, ok := m.(*syntax.PortDecl); ok {
			portDecls = append(portDecls, pd)
		}
	}

	switch decl.PortStyle {
	case syntax.PortsAnsi:
		for _, p := range decl.AnsiPorts {
			if p.Interface != "" {
				b.addPort(c.newInterfacePort(b, p))
				continue
			}
			env := &scopeEnv{scope: b.scope, loc: Before(p.Ordinal), types: c.types}
			b.addPort(c.newPort(p.Name, p.NameSpan, p.Ordinal, p.Dir, p.Type, env))
		}
		for _, pd := range portDecls {
			diag.ReportError(c.reporter, diag.PortDeclInAnsiModule, pd.Span(),
				fmt.Sprintf("port declaration not allowed in %s '%s' with an ANSI-style port list", b.def.KindString(), b.def.Name)).Emit()
		}
	case syntax.PortsNonAnsi:
		header := make(map[string]bool, len(decl.PortNames))
		for _, n := range decl.PortNames {
			header[n.Text] = true
		}
		byName := make(map[string]*syntax.PortDecl)
		for _, pd := range portDecls {
			for _, n := range pd.Names {
				if !header[n.Text] {
					diag.ReportError(c.reporter, diag.PortNonAnsiNotInHeader, n.Span,
						fmt.Sprintf("'%s' is declared as a port but is not listed in the header of %s '%s'", n.Text, b.def.KindString(), b.def.Name)).Emit()
					continue
				}
				if _, dup := byName[n.Text]; !dup {
					byName[n.Text] = pd
				}
			}
		}
		bodyDecls := nonAnsiBodyDecls(decl.Members, header)
		for i, n := range decl.PortNames {
			pd := byName[n.Text]
			if pd != nil {
				env := &scopeEnv{scope: b.scope, loc: Before(pd.Ordinal()), types: c.types}
				p := c.newPort(n.Text, n.Span, 0, pd.Dir, pd.Type, env)
				b.mergeNonAnsiDecl(p, pd.Type, bodyDecls[n.Text])
				b.addPort(p)
				continue
			}
			dir := syntax.DirInput
			if b.def.Kind == DefPrimitive {
				// user-defined primitives: the first port is the output
				if i == 0 {
					dir = syntax.DirOutput
				}
			} else {
				diag.ReportError(c.reporter, diag.PortNonAnsiMissingDecl, n.Span,
					fmt.Sprintf("port '%s' has no declaration in the body of %s '%s'", n.Text, b.def.KindString(), b.def.Name)).Emit()
			}
			p := c.newPort(n.Text, n.Span, 0, dir, nil, nil)
			b.mergeNonAnsiDecl(p, nil, bodyDecls[n.Text])
			b.addPort(p)
		}
	default:
		for _, pd := range portDecls {
			for _, n := range pd.Names {
				diag.ReportError(c.reporter, diag.PortNonAnsiNotInHeader, n.Span,
					fmt.Sprintf("'%s' is declared as a port but %s '%s' has no port list", n.Text, b.def.KindString(), b.def.Name)).Emit()
			}
		}
	}
}

// nonAnsiDecl is a body net or variable declarator naming a header port.
type nonAnsiDecl struct {
	member syntax.Member
	decl   *syntax.Declarator
}

func nonAnsiBodyDecls(members []syntax.Member, header map[string]bool) map[string]nonAnsiDecl {
	out := make(map[string]nonAnsiDecl)
	note := func(m syntax.Member, ds []*syntax.Declarator) {
		for _, d := range ds {
			if _, seen := out[d.Name]; header[d.Name] && !seen {
				out[d.Name] = nonAnsiDecl{member: m, decl: d}
			}
		}
	}
	for _, m := range members {
		switch n := m.(type) {
		case *syntax.NetDecl:
			note(n, n.Declarators)
		case *syntax.VarDecl:
			note(n, n.Declarators)
		}
	}
	return out
}

// mergeNonAnsiDecl folds the body declaration of a non-ANSI port into the
// port. The port declaration's type wins; a body type of a different width
// is a conflict.
func (b *InstanceBody) mergeNonAnsiDecl(p *PortSymbol, portType *syntax.DataType, nd nonAnsiDecl) {
	if nd.decl == nil {
		return
	}
	c := b.comp
	if b.portDecls == nil {
		b.portDecls = make(map[*syntax.Declarator]bool)
	}
	b.portDecls[nd.decl] = true

	var dt *syntax.DataType
	switch n := nd.member.(type) {
	case *syntax.NetDecl:
		dt = n.Type
		if p.NetType == "" {
			p.NetType = n.NetType
		}
	case *syntax.VarDecl:
		dt = n.Type
	}
	if dt == nil {
		return
	}
	env := &scopeEnv{scope: b.scope, loc: Before(nd.member.Ordinal()), types: c.types}
	ty := c.resolveType(dt, env)
	switch {
	case portType == nil:
		p.Type = ty
	case c.types.IsError(ty) || c.types.IsError(p.Type):
	case c.types.Width(ty) != c.types.Width(p.Type):
		diag.ReportError(c.reporter, diag.PortNonAnsiTypeConflict, nd.decl.Span,
			fmt.Sprintf("'%s' is declared as %s but port '%s' is %s", nd.decl.Name, c.types.String(ty), p.Name(), c.types.String(p.Type))).
			WithNote(p.Span(), "port declared here").Emit()
	case portType.IsImplicit():
		p.Type = ty
	}
}

func (c *Compilation) newPort(name string, span source.Span, ord uint32, dir syntax.Direction, dt *syntax.DataType, env *scopeEnv) *PortSymbol {
	p := &PortSymbol{
		symbolBase: newBase(SymPort, name, span, ord),
		Direction:  dir,
		Type:       c.resolveType(dt, env),
		NetType:    netTypeOf(dt),
	}
	c.alloc(p)
	return p
}

func (c *Compilation) newInterfacePort(b *InstanceBody, p *syntax.AnsiPort) *InterfacePortSymbol {
	ip := &InterfacePortSymbol{
		symbolBase:    newBase(SymInterfacePort, p.Name, p.NameSpan, p.Ordinal),
		InterfaceName: p.Interface,
		Modport:       p.Modport,
	}
	c.alloc(ip)
	def := c.findDefinition(p.Interface, b.def)
	switch {
	case def == nil:
		diag.ReportError(c.reporter, diag.ElabUnknownInterface, p.Span,
			fmt.Sprintf("unknown interface '%s'", p.Interface)).Emit()
	case def.Kind != DefInterface:
		diag.ReportError(c.reporter, diag.ElabNotAnInterface, p.Span,
			fmt.Sprintf("'%s' is %s, not an interface", def.Name, def.ArticleKindString())).
			WithNote(def.NameSpan, "declared here").Emit()
	default:
		ip.Interface = def
		if p.Modport != "" && !def.HasModport(p.Modport) {
			diag.ReportError(c.reporter, diag.ElabUnknownModport, p.Span,
				fmt.Sprintf("interface '%s' has no modport named '%s'", def.Name, p.Modport)).Emit()
		}
	}
	return ip
}

// PortConnection binds one port of an instance to its actual.
type PortConnection struct {
	Port Symbol
	Expr syntax.ExprID
	// Iface is the interface instance, array or port connected to an
	// interface port.
	Iface   Symbol
	Modport string
	// Implicit marks connections made by .* wildcards.
	Implicit bool
	// Explicit is set when the port appears in the list, even as .p().
	Explicit bool
	Bad      bool
	Span     source.Span
}

// IsUnconnected reports a port without an actual.
func (pc *PortConnection) IsUnconnected() bool {
	return !pc.Expr.IsValid() && pc.Iface == nil && !pc.Implicit
}

// PortConnections resolves every connection on first use and caches them.
func (i *InstanceSymbol) PortConnections() []*PortConnection {
	if !i.connsResolved {
		i.connsResolved = true
		i.conns = i.comp.resolveConnections(i)
	}
	return i.conns
}

// PortConnection returns the connection of port, nil when port does not
// belong to this instance.
func (i *InstanceSymbol) PortConnection(port Symbol) *PortConnection {
	for _, pc := range i.PortConnections() {
		if pc.Port == port {
			return pc
		}
	}
	return nil
}

func (i *InstanceSymbol) ForEachPortConnection(fn func(*PortConnection)) {
	for _, pc := range i.PortConnections() {
		fn(pc)
	}
}

func (c *Compilation) resolveConnections(inst *InstanceSymbol) []*PortConnection {
	body := inst.body
	if inst.virtual || body.blocked {
		return nil
	}
	ports := body.PortList()
	conns := make([]*PortConnection, len(ports))
	for i, p := range ports {
		conns[i] = &PortConnection{Port: p}
	}
	hi := inst.site.decl
	if hi == nil {
		return conns
	}
	r := c.reporter
	def := body.def
	env := &scopeEnv{scope: inst.site.scope, loc: inst.site.loc, types: c.types}

	var ordered, named int
	var wildcard *syntax.PortConn
	for _, pc := range hi.Conns {
		switch pc.Kind {
		case syntax.ConnOrdered:
			ordered++
		case syntax.ConnNamed:
			named++
		case syntax.ConnWildcard:
			wildcard = pc
		}
	}
	if ordered > 0 && (named > 0 || wildcard != nil) {
		diag.ReportError(r, diag.PortMixedConnections, hi.Span,
			"mixing ordered and named port connections is not allowed").Emit()
	}

	if ordered > 0 && named == 0 && wildcard == nil {
		idx := 0
		for _, pc := range hi.Conns {
			if idx == len(ports) {
				diag.ReportError(r, diag.PortTooMany, pc.Span,
					fmt.Sprintf("too many port connections for %s '%s' (%d expected, %d provided)",
						def.KindString(), def.Name, len(ports), ordered)).
					WithNote(def.NameSpan, "declared here").Emit()
			}
			if idx < len(ports) {
				conns[idx].Explicit = true
				c.bindActual(conns[idx], pc.Expr, pc.Span, env)
			}
			idx++
		}
	} else {
		index := make(map[string]int, len(ports))
		for i, p := range ports {
			index[p.Name()] = i
		}
		seen := make(map[string]source.Span)
		for _, pc := range hi.Conns {
			if pc.Kind != syntax.ConnNamed {
				continue
			}
			i, ok := index[pc.Name]
			if !ok {
				diag.ReportError(r, diag.PortUnknown, pc.NameSpan,
					fmt.Sprintf("%s '%s' has no port named '%s'", def.KindString(), def.Name, pc.Name)).
					WithNote(def.NameSpan, "declared here").Emit()
				continue
			}
			if prev, dup := seen[pc.Name]; dup {
				diag.ReportError(r, diag.PortDuplicateConnection, pc.NameSpan,
					fmt.Sprintf("duplicate connection to port '%s'", pc.Name)).
					WithNote(prev, "previous connection here").Emit()
				continue
			}
			seen[pc.Name] = pc.NameSpan
			conns[i].Explicit = true
			c.bindActual(conns[i], pc.Expr, pc.Span, env)
		}
		if wildcard != nil {
			c.bindWildcard(conns, wildcard, env)
		}
	}

	for _, pc := range conns {
		if pc.Explicit || !pc.IsUnconnected() {
			continue
		}
		switch p := pc.Port.(type) {
		case *InterfacePortSymbol:
			diag.ReportError(r, diag.PortInterfaceUnconnected, hi.NameSpan,
				fmt.Sprintf("interface port '%s' of %s '%s' is not connected", p.Name(), def.KindString(), def.Name)).Emit()
			pc.Bad = true
		case *PortSymbol:
			if p.Direction == syntax.DirInput {
				diag.ReportWarning(r, diag.PortUnconnected, hi.NameSpan,
					fmt.Sprintf("input port '%s' of %s '%s' is unconnected", p.Name(), def.KindString(), def.Name)).Emit()
			}
		}
	}
	return conns
}

// bindWildcard connects remaining ports to same-named signals of the
// instantiating scope.
func (c *Compilation) bindWildcard(conns []*PortConnection, wc *syntax.PortConn, env *scopeEnv) {
	for _, pc := range conns {
		if pc.Explicit {
			continue
		}
		sym := env.lookup(pc.Port.Name())
		if sym == nil {
			diag.ReportError(c.reporter, diag.PortWildcardUnresolved, wc.Span,
				fmt.Sprintf("wildcard connection found no signal for port '%s'", pc.Port.Name())).Emit()
			pc.Bad = true
			pc.Explicit = true
			continue
		}
		pc.Implicit = true
		pc.Explicit = true
		pc.Span = wc.Span
		if ip, ok := pc.Port.(*InterfacePortSymbol); ok {
			c.bindInterfaceSymbol(pc, ip, sym, "", wc.Span)
		}
	}
}

func (c *Compilation) bindActual(pc *PortConnection, expr syntax.ExprID, span source.Span, env *scopeEnv) {
	pc.Expr = expr
	pc.Span = span
	if !expr.IsValid() {
		return
	}
	switch p := pc.Port.(type) {
	case *InterfacePortSymbol:
		c.bindInterfaceActual(pc, p, expr, env)
	case *PortSymbol:
		if _, bare := c.tree.Exprs.IsBareIdent(expr); !bare {
			c.checkRefs(expr, env)
		}
		x := c.tree.Exprs.Get(expr)
		if p.Direction != syntax.DirInput && !c.isLValue(expr, env) {
			diag.ReportError(c.reporter, diag.PortOutputNotLValue, x.Span,
				fmt.Sprintf("%s port '%s' must be connected to an assignable expression", p.Direction, p.Name())).Emit()
			pc.Bad = true
			return
		}
		if c.types.IsError(p.Type) {
			return
		}
		pw := c.types.Width(p.Type)
		aw, ok := c.exprWidth(expr, env)
		if ok && pw > 0 && aw > 0 && aw != pw {
			diag.ReportWarning(c.reporter, diag.PortWidthMismatch, x.Span,
				fmt.Sprintf("port '%s' is %d bits wide but is connected to a %d-bit expression", p.Name(), pw, aw)).Emit()
		}
	}
}

func (c *Compilation) bindInterfaceActual(pc *PortConnection, port *InterfacePortSymbol, expr syntax.ExprID, env *scopeEnv) {
	x := c.tree.Exprs.Get(expr)
	base, modport := expr, ""
	if x.Kind == syntax.ExprMember {
		base, modport = x.Ops[0], x.Name
	}
	var sym Symbol
	if name, ok := c.tree.Exprs.IsBareIdent(base); ok {
		sym = env.lookup(name)
	}
	c.bindInterfaceSymbol(pc, port, sym, modport, x.Span)
}

func (c *Compilation) bindInterfaceSymbol(pc *PortConnection, port *InterfacePortSymbol, sym Symbol, modport string, span source.Span) {
	var def *Definition
	switch s := sym.(type) {
	case *InstanceSymbol:
		if s.IsInterface() {
			def = s.Definition()
		}
	case *InstanceArraySymbol:
		if inst := firstInstance(s); inst != nil && inst.IsInterface() {
			def = inst.Definition()
		}
	case *InterfacePortSymbol:
		def = s.Interface
		if modport == "" {
			modport = s.Modport
		}
	}
	if def == nil {
		pc.Bad = true
		if port.Interface == nil {
			return
		}
		diag.ReportError(c.reporter, diag.PortInterfaceMismatch, span,
			fmt.Sprintf("interface port '%s' must be connected to an instance of '%s'", port.Name(), port.InterfaceName)).Emit()
		return
	}
	if port.Interface != nil && def != port.Interface {
		diag.ReportError(c.reporter, diag.PortInterfaceMismatch, span,
			fmt.Sprintf("interface port '%s' expects '%s', got '%s'", port.Name(), port.InterfaceName, def.Name)).Emit()
		pc.Bad = true
		return
	}
	if modport != "" && !def.HasModport(modport) {
		diag.ReportError(c.reporter, diag.ElabUnknownModport, span,
			fmt.Sprintf("interface '%s' has no modport named '%s'", def.Name, modport)).Emit()
		pc.Bad = true
		return
	}
	if modport != "" && port.Modport != "" && modport != port.Modport {
		diag.ReportError(c.reporter, diag.PortInterfaceMismatch, span,
			fmt.Sprintf("modport '%s' of port '%s' conflicts with connected modport '%s'", port.Modport, port.Name(), modport)).Emit()
		pc.Bad = true
		return
	}
	pc.Iface = sym
	pc.Modport = modport
	if pc.Modport == "" {
		pc.Modport = port.Modport
	}
}

func firstInstance(arr *InstanceArraySymbol) *InstanceSymbol {
	for _, e := range arr.Elements {
		switch s := e.(type) {
		case *InstanceSymbol:
			return s
		case *InstanceArraySymbol:
			return firstInstance(s)
		}
	}
	return nil
}

// isLValue reports whether expr can be driven by an output port.
func (c *Compilation) isLValue(expr syntax.ExprID, env *scopeEnv) bool {
	x := c.tree.Exprs.Get(expr)
	if x == nil {
		return false
	}
	switch x.Kind {
	case syntax.ExprIdent:
		switch env.lookup(x.Name).(type) {
		case *ParameterSymbol, *InstanceSymbol, *InstanceArraySymbol:
			return false
		}
		return true
	case syntax.ExprIndex, syntax.ExprMember:
		return c.isLValue(x.Ops[0], env)
	case syntax.ExprConcat:
		for _, op := range x.Ops {
			if !c.isLValue(op, env) {
				return false
			}
		}
		return true
	}
	return false
}

// exprWidth returns the self-determined width of expr when it is fixed by
// the expression alone.
func (c *Compilation) exprWidth(expr syntax.ExprID, env *scopeEnv) (uint32, bool) {
	x := c.tree.Exprs.Get(expr)
	if x == nil {
		return 0, false
	}
	switch x.Kind {
	case syntax.ExprIntLit:
		return x.Lit.Width, x.Lit.Sized
	case syntax.ExprIdent:
		switch s := env.lookup(x.Name).(type) {
		case *NetSymbol:
			return c.typeWidth(s.Type)
		case *VariableSymbol:
			return c.typeWidth(s.Type)
		case *PortSymbol:
			return c.typeWidth(s.Type)
		case *ParameterSymbol:
			if s.IsTypeParam() || s.Value.IsPoison() {
				return 0, false
			}
			return s.Value.Width, true
		}
	case syntax.ExprIndex:
		if !c.isVectorSignal(x.Ops[0], env) {
			return 0, false
		}
		if len(x.Ops) == 2 {
			return 1, true
		}
		silent := c.eval.Silent()
		l, okL := silent.EvalInt(x.Ops[1], env)
		r, okR := silent.EvalInt(x.Ops[2], env)
		if !okL || !okR {
			return 0, false
		}
		d := l - r
		if d < 0 {
			d = -d
		}
		return uint32(d + 1), true // #nosec G115 -- part-select bounds are small
	case syntax.ExprConcat:
		var sum uint32
		for _, op := range x.Ops {
			w, ok := c.exprWidth(op, env)
			if !ok {
				return 0, false
			}
			sum += w
		}
		return sum, true
	}
	return 0, false
}

// isVectorSignal reports whether expr names a net, variable or port of a
// one-dimensional packed type.
func (c *Compilation) isVectorSignal(expr syntax.ExprID, env *scopeEnv) bool {
	x := c.tree.Exprs.Get(expr)
	if x == nil || x.Kind != syntax.ExprIdent {
		return false
	}
	switch s := env.lookup(x.Name).(type) {
	case *NetSymbol:
		return c.types.IsVector(s.Type)
	case *VariableSymbol:
		return c.types.IsVector(s.Type)
	case *PortSymbol:
		return c.types.IsVector(s.Type)
	}
	return false
}

func (c *Compilation) typeWidth(id types.TypeID) (uint32, bool) {
	if c.types.IsError(id) {
		return 0, false
	}
	w := c.types.Width(id)
	return w, w > 0
}
