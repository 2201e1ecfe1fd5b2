package elab

import (
	"fmt"
	"strings"

	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
)

// DefinitionKind is the closed set of definition flavours.
type DefinitionKind uint8

const (
	DefModule DefinitionKind = iota
	DefInterface
	DefProgram
	DefPrimitive
)

func (k DefinitionKind) String() string {
	switch k {
	case DefModule:
		return "module"
	case DefInterface:
		return "interface"
	case DefProgram:
		return "program"
	case DefPrimitive:
		return "primitive"
	}
	panic(fmt.Sprintf("elab: impossible definition kind %d", uint8(k)))
}

type Lifetime uint8

const (
	LifetimeStatic Lifetime = iota
	LifetimeAutomatic
)

func (l Lifetime) String() string {
	if l == LifetimeAutomatic {
		return "automatic"
	}
	return "static"
}

// UnconnectedDrive is the `unconnected_drive policy in effect for a
// definition.
type UnconnectedDrive uint8

const (
	DriveNone UnconnectedDrive = iota
	DrivePull0
	DrivePull1
)

func (d UnconnectedDrive) String() string {
	switch d {
	case DrivePull0:
		return "pull0"
	case DrivePull1:
		return "pull1"
	}
	return "none"
}

// ParamDecl is one declared parameter of a definition. It is a tagged
// union: Kind selects which of Value and Type carries the payload.
type ParamDecl struct {
	Kind    syntax.ParamKind
	Name    string
	Span    source.Span
	Ordinal uint32
	IsLocal bool
	// IsPort marks entries of the header #(...) list.
	IsPort bool
	Value  *syntax.ValueParam
	Type   *syntax.TypeParam
}

func (p *ParamDecl) IsTypeParam() bool { return p.Kind == syntax.ParamType }

// HasDefault reports whether the declaration provides a default.
func (p *ParamDecl) HasDefault() bool {
	switch p.Kind {
	case syntax.ParamValue:
		return p.Value != nil && p.Value.Default.IsValid()
	case syntax.ParamType:
		return p.Type != nil && p.Type.Default != nil
	}
	return false
}

// DefinitionContext carries the compilation-unit state in effect where a
// definition is declared.
type DefinitionContext struct {
	Tree             *syntax.Tree
	Reporter         diag.Reporter
	DefaultNetType   string
	UnconnectedDrive string
	Timescale        *syntax.Timescale
}

// ContextFor derives the context of decl from its directives.
func ContextFor(tree *syntax.Tree, reporter diag.Reporter, decl *syntax.ModuleDecl) DefinitionContext {
	return DefinitionContext{
		Tree:             tree,
		Reporter:         reporter,
		DefaultNetType:   decl.Directives.DefaultNetType,
		UnconnectedDrive: decl.Directives.UnconnectedDrive,
		Timescale:        decl.Directives.Timescale,
	}
}

// Definition is the immutable elaboration view of a module, interface,
// program or user-defined primitive declaration.
type Definition struct {
	id               uint32
	Name             string
	Span             source.Span
	NameSpan         source.Span
	Kind             DefinitionKind
	Lifetime         Lifetime
	UnconnectedDrive UnconnectedDrive
	DefaultNetType   string
	Timescale        *syntax.Timescale
	Params           []ParamDecl
	Modports         []string
	HasNonAnsiPorts  bool
	Syntax           *syntax.ModuleDecl
	Tree             *syntax.Tree
	// Parent is the enclosing definition for nested declarations.
	Parent *Definition
	Binds  []*syntax.BindDirective

	modports     map[string]struct{}
	nested       map[string]*Definition
	nestedOrder  []*Definition
	instantiated bool
}

// NewDefinition derives definition metadata from decl. It never fails;
// malformed headers are reported and replaced by a best guess.
func NewDefinition(parent *Definition, decl *syntax.ModuleDecl, ctx DefinitionContext) *Definition {
	reporter := ctx.Reporter
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	def := &Definition{
		Name:            decl.Name,
		Span:            decl.Span,
		NameSpan:        decl.NameSpan,
		Kind:            kindFromKeyword(decl.Keyword),
		Lifetime:        LifetimeStatic,
		DefaultNetType:  "wire",
		HasNonAnsiPorts: decl.PortStyle == syntax.PortsNonAnsi,
		Syntax:          decl,
		Tree:            ctx.Tree,
		Parent:          parent,
		modports:        make(map[string]struct{}),
		nested:          make(map[string]*Definition),
	}
	if decl.Lifetime == syntax.LifetimeAutomatic {
		def.Lifetime = LifetimeAutomatic
	}
	switch ctx.UnconnectedDrive {
	case "pull0":
		def.UnconnectedDrive = DrivePull0
	case "pull1":
		def.UnconnectedDrive = DrivePull1
	}
	if ctx.DefaultNetType != "" {
		def.DefaultNetType = ctx.DefaultNetType
	}
	def.Timescale = mergeTimescale(decl, ctx.Timescale, reporter)
	def.collectParams(decl, reporter)
	def.collectMembers(decl, reporter)
	return def
}

func kindFromKeyword(kw syntax.DeclKeyword) DefinitionKind {
	switch kw {
	case syntax.KwInterface:
		return DefInterface
	case syntax.KwProgram:
		return DefProgram
	case syntax.KwPrimitive:
		return DefPrimitive
	}
	return DefModule
}

// mergeTimescale applies timeunit/timeprecision header items on top of the
// directive in effect.
func mergeTimescale(decl *syntax.ModuleDecl, directive *syntax.Timescale, reporter diag.Reporter) *syntax.Timescale {
	if decl.TimeUnit == nil && decl.TimePrecision == nil {
		return directive
	}
	ts := syntax.Timescale{
		Unit:      syntax.TimeValue{Magnitude: 1, Unit: syntax.UnitNS},
		Precision: syntax.TimeValue{Magnitude: 1, Unit: syntax.UnitNS},
	}
	if directive != nil {
		ts = *directive
	}
	if decl.TimeUnit != nil {
		ts.Unit = decl.TimeUnit.Value
	}
	if decl.TimePrecision != nil {
		ts.Precision = decl.TimePrecision.Value
	}
	if ts.Precision.Exponent() > ts.Unit.Exponent() {
		sp := decl.NameSpan
		if decl.TimePrecision != nil {
			sp = decl.TimePrecision.Span
		}
		diag.ReportError(reporter, diag.DefTimePrecisionCoarser, sp,
			fmt.Sprintf("time precision %s is coarser than time unit %s", ts.Precision, ts.Unit)).Emit()
		ts.Precision = ts.Unit
	}
	return &ts
}

func (d *Definition) collectParams(decl *syntax.ModuleDecl, reporter diag.Reporter) {
	seen := make(map[string]source.Span)
	add := func(p *syntax.ParamDecl, isPort, local bool) {
		if prev, dup := seen[p.Name]; dup {
			diag.ReportError(reporter, diag.DefDuplicateParam, p.NameSpan,
				fmt.Sprintf("redefinition of parameter '%s'", p.Name)).
				WithNote(prev, "previous definition here").Emit()
			return
		}
		seen[p.Name] = p.NameSpan
		d.Params = append(d.Params, ParamDecl{
			Kind:    p.Kind,
			Name:    p.Name,
			Span:    p.NameSpan,
			Ordinal: p.Ordinal,
			IsLocal: local,
			IsPort:  isPort,
			Value:   p.Value,
			Type:    p.Type,
		})
	}
	for _, p := range decl.ParamPorts {
		add(p, true, p.Local)
	}
	for _, m := range decl.Members {
		pm, ok := m.(*syntax.ParamMember)
		if !ok {
			continue
		}
		// A header parameter list turns body parameters into localparams.
		add(pm.Decl, false, pm.Decl.Local || decl.ParamPortList)
	}
}

func (d *Definition) collectMembers(decl *syntax.ModuleDecl, reporter diag.Reporter) {
	seen := make(map[string]source.Span)
	for _, m := range decl.Members {
		switch n := m.(type) {
		case *syntax.ModportDecl:
			if d.Kind != DefInterface {
				diag.ReportError(reporter, diag.DefModportOutsideIface, n.Span(),
					fmt.Sprintf("modport declared in %s '%s'", d.Kind, d.Name)).Emit()
				continue
			}
			for _, name := range n.Names {
				if prev, dup := seen[name.Text]; dup {
					diag.ReportError(reporter, diag.DefDuplicateModport, name.Span,
						fmt.Sprintf("redefinition of modport '%s'", name.Text)).
						WithNote(prev, "previous definition here").Emit()
					continue
				}
				seen[name.Text] = name.Span
				d.modports[name.Text] = struct{}{}
				d.Modports = append(d.Modports, name.Text)
			}
		case *syntax.BindDirective:
			d.Binds = append(d.Binds, n)
		}
	}
}

// ID is the definition's index within its compilation.
func (d *Definition) ID() uint32 { return d.id }

func (d *Definition) KindString() string { return d.Kind.String() }

// ArticleKindString returns the kind with its indefinite article.
func (d *Definition) ArticleKindString() string {
	switch d.Kind {
	case DefInterface:
		return "an interface"
	case DefProgram:
		return "a program"
	case DefPrimitive:
		return "a primitive"
	}
	return "a module"
}

// HierarchicalPath renders outer.inner for nested definitions.
func (d *Definition) HierarchicalPath() string {
	var parts []string
	for cur := d; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, pathSeparator)
}

// NoteInstantiated marks that an instance of d exists in the elaborated
// design. The flag never resets.
func (d *Definition) NoteInstantiated() { d.instantiated = true }

func (d *Definition) IsInstantiated() bool { return d.instantiated }

// HasModport reports whether the interface declares name.
func (d *Definition) HasModport(name string) bool {
	_, ok := d.modports[name]
	return ok
}

// Param returns the declared parameter by name.
func (d *Definition) Param(name string) (*ParamDecl, bool) {
	for i := range d.Params {
		if d.Params[i].Name == name {
			return &d.Params[i], true
		}
	}
	return nil, false
}

// AllParamsDefaulted reports whether a body can be built without any
// assignment.
func (d *Definition) AllParamsDefaulted() bool {
	for i := range d.Params {
		if !d.Params[i].HasDefault() {
			return false
		}
	}
	return true
}

// Nested returns the nested definition declared directly inside d.
func (d *Definition) Nested(name string) *Definition {
	return d.nested[name]
}

// NestedDefinitions lists the nested definitions in declaration order.
func (d *Definition) NestedDefinitions() []*Definition {
	return d.nestedOrder
}

func (d *Definition) addNested(n *Definition) *Definition {
	if prev, ok := d.nested[n.Name]; ok {
		return prev
	}
	d.nested[n.Name] = n
	d.nestedOrder = append(d.nestedOrder, n)
	return nil
}

// PortNames lists header port names in order, for ANSI and non-ANSI
// headers alike.
func (d *Definition) PortNames() []string {
	decl := d.Syntax
	switch decl.PortStyle {
	case syntax.PortsAnsi:
		out := make([]string, 0, len(decl.AnsiPorts))
		for _, p := range decl.AnsiPorts {
			out = append(out, p.Name)
		}
		return out
	case syntax.PortsNonAnsi:
		out := make([]string, 0, len(decl.PortNames))
		for _, p := range decl.PortNames {
			out = append(out, p.Text)
		}
		return out
	}
	return nil
}
