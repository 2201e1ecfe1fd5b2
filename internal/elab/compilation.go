package elab

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"fortio.org/safecast"
	"github.com/zeebo/xxh3"

	"svelab/internal/consteval"
	"svelab/internal/diag"
	"svelab/internal/source"
	"svelab/internal/syntax"
	"svelab/internal/trace"
	"svelab/internal/types"
)

// DefaultMaxInstanceDepth bounds the instance hierarchy unless configured.
const DefaultMaxInstanceDepth = 128

// Options configures one elaboration.
type Options struct {
	// TopModules names the tops explicitly; empty means every unit-level
	// module nobody instantiates.
	TopModules       []string
	MaxInstanceDepth int
	Overrides        Overrides
}

// TypeClass groups bodies that specialise one definition with equal
// parameters. Every body stays distinct; the class is the unit a later
// phase would generate once.
type TypeClass struct {
	id          int
	fingerprint uint64
	bodies      []*InstanceBody
}

func (tc *TypeClass) ID() int                 { return tc.id }
func (tc *TypeClass) Fingerprint() uint64     { return tc.fingerprint }
func (tc *TypeClass) Len() int                { return len(tc.bodies) }
func (tc *TypeClass) Bodies() []*InstanceBody { return tc.bodies }
func (tc *TypeClass) Definition() *Definition { return tc.bodies[0].def }

// Compilation owns every definition and symbol of one design.
type Compilation struct {
	tree     *syntax.Tree
	opts     Options
	reporter diag.Reporter
	dedup    *diag.DedupReporter
	types    *types.Interner
	eval     *consteval.Evaluator

	// symbols is 1-based; index 0 stays nil.
	symbols []Symbol

	defs       []*Definition
	unit       map[string]*Definition
	referenced map[string]bool

	root *RootSymbol

	classes     map[uint64][]*TypeClass
	classCount  int
	poisonNonce uint64

	instancesByDef map[*Definition][]*InstanceSymbol
	validation     []*InstanceSymbol

	elaborated bool
}

// NewCompilation builds the definitions of tree. Reports go through a
// deduplicating wrapper around reporter.
func NewCompilation(tree *syntax.Tree, opts Options, reporter diag.Reporter) *Compilation {
	if reporter == nil {
		reporter = diag.NopReporter{}
	}
	if opts.MaxInstanceDepth <= 0 {
		opts.MaxInstanceDepth = DefaultMaxInstanceDepth
	}
	if opts.Overrides.Tree == nil {
		opts.Overrides.Tree = emptyOverrides
	}
	dedup := diag.NewDedupReporter(reporter)
	c := &Compilation{
		tree:           tree,
		opts:           opts,
		reporter:       dedup,
		dedup:          dedup,
		types:          types.NewInterner(),
		eval:           consteval.New(tree, dedup),
		symbols:        make([]Symbol, 1, 64),
		unit:           make(map[string]*Definition),
		referenced:     make(map[string]bool),
		classes:        make(map[uint64][]*TypeClass),
		instancesByDef: make(map[*Definition][]*InstanceSymbol),
	}
	c.root = &RootSymbol{symbolBase: newBase(SymRoot, "$root", source.NoSpan, 0)}
	c.alloc(c.root)
	c.root.scope = newScope(c.root, nil)

	for _, decl := range tree.Decls {
		c.addDefinition(nil, decl)
	}
	c.collectReferences()
	return c
}

func (c *Compilation) addDefinition(parent *Definition, decl *syntax.ModuleDecl) {
	def := NewDefinition(parent, decl, ContextFor(c.tree, c.reporter, decl))
	id, err := safecast.Conv[uint32](len(c.defs) + 1)
	if err != nil {
		panic(fmt.Errorf("definition id overflow: %w", err))
	}
	def.id = id
	c.defs = append(c.defs, def)

	var prev *Definition
	if parent == nil {
		if p, ok := c.unit[def.Name]; ok {
			prev = p
		} else {
			c.unit[def.Name] = def
		}
	} else {
		prev = parent.addNested(def)
	}
	if prev != nil {
		diag.ReportError(c.reporter, diag.DefDuplicate, def.NameSpan,
			fmt.Sprintf("duplicate definition of '%s'", def.Name)).
			WithNote(prev.NameSpan, "previous definition here").Emit()
	}
	for _, n := range decl.Nested {
		c.addDefinition(def, n)
	}
}

// collectReferences records every name used as an instantiation target,
// so the automatic top selection does not need to elaborate anything.
func (c *Compilation) collectReferences() {
	note := func(m syntax.Member) {
		switch n := m.(type) {
		case *syntax.HierInstantiation:
			c.referenced[n.Type] = true
		case *syntax.BindDirective:
			if n.Inst != nil {
				c.referenced[n.Inst.Type] = true
			}
		case *syntax.VirtualInterfaceVar:
			c.referenced[n.Interface] = true
		}
	}
	c.tree.Walk(func(d *syntax.ModuleDecl) {
		syntax.WalkMembers(d.Members, note)
	})
	for _, b := range c.tree.Binds {
		note(b)
	}
}

func (c *Compilation) alloc(sym Symbol) {
	id, err := safecast.Conv[uint32](len(c.symbols))
	if err != nil {
		panic(fmt.Errorf("symbol arena overflow: %w", err))
	}
	sym.base().id = SymbolID(id)
	c.symbols = append(c.symbols, sym)
}

// Symbol returns the symbol with id, nil for NoSymbolID or unknown ids.
func (c *Compilation) Symbol(id SymbolID) Symbol {
	if id == NoSymbolID || int(id) >= len(c.symbols) {
		return nil
	}
	return c.symbols[id]
}

func (c *Compilation) SymbolCount() int              { return len(c.symbols) - 1 }
func (c *Compilation) Root() *RootSymbol             { return c.root }
func (c *Compilation) Reporter() diag.Reporter       { return c.reporter }
func (c *Compilation) Types() *types.Interner        { return c.types }
func (c *Compilation) Tree() *syntax.Tree            { return c.tree }
func (c *Compilation) Definitions() []*Definition    { return c.defs }
func (c *Compilation) BodyClassCount() int           { return c.classCount }
func (c *Compilation) Validation() []*InstanceSymbol { return c.validation }

// Definition returns the unit-level definition called name.
func (c *Compilation) Definition(name string) *Definition { return c.unit[name] }

// Instances lists the registered instances of def in creation order.
// Uninstantiated and virtual instances are not registered.
func (c *Compilation) Instances(def *Definition) []*InstanceSymbol {
	return c.instancesByDef[def]
}

// findDefinition resolves name from inside from: nested declarations of
// the enclosing definitions first, then the compilation unit.
func (c *Compilation) findDefinition(name string, from *Definition) *Definition {
	for d := from; d != nil; d = d.Parent {
		if n := d.Nested(name); n != nil {
			return n
		}
	}
	return c.unit[name]
}

func (c *Compilation) registerInstance(inst *InstanceSymbol) {
	if inst.virtual || inst.body.uninstantiated {
		return
	}
	def := inst.body.def
	c.instancesByDef[def] = append(c.instancesByDef[def], inst)
}

// registerBody files b into its type class.
func (c *Compilation) registerBody(b *InstanceBody) {
	fp := c.fingerprint(b)
	for _, tc := range c.classes[fp] {
		if tc.bodies[0].HasSameType(b) {
			tc.bodies = append(tc.bodies, b)
			b.class = tc
			return
		}
	}
	c.classCount++
	tc := &TypeClass{id: c.classCount, fingerprint: fp, bodies: []*InstanceBody{b}}
	c.classes[fp] = append(c.classes[fp], tc)
	b.class = tc
}

// fingerprint hashes what HasSameType compares. Numeric values hash by
// integer value when they have one so that 4 and 4.0 collide.
func (c *Compilation) fingerprint(b *InstanceBody) uint64 {
	h := xxh3.New()
	var buf [9]byte
	put := func(tag byte, v uint64) {
		buf[0] = tag
		for i := 0; i < 8; i++ {
			buf[1+i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	put('d', uint64(b.def.id))
	for _, p := range b.params {
		if p.IsPoisoned(c.types) {
			c.poisonNonce++
			put('x', c.poisonNonce)
			continue
		}
		if p.IsTypeParam() {
			put('t', uint64(p.Type))
			continue
		}
		v := p.Value
		switch v.Kind {
		case consteval.KindInt:
			put('n', uint64(v.Int64())) // #nosec G115 -- hashing bits
		case consteval.KindReal:
			if f := v.Real; f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				put('n', uint64(int64(f))) // #nosec G115 -- hashing bits
			} else {
				put('r', math.Float64bits(f))
			}
		case consteval.KindString:
			put('s', uint64(len(v.Str)))
			_, _ = h.WriteString(v.Str)
		}
	}
	return h.Sum64()
}

// Elaborate instantiates the tops, forces every body reachable from them,
// applies bind directives and validates definitions nobody instantiated.
// The context is checked between top-level instances only.
func (c *Compilation) Elaborate(ctx context.Context) error {
	if c.elaborated {
		return nil
	}
	c.elaborated = true
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePhase, "elaborate", 0)

	tops := c.selectTops()
	for _, def := range tops {
		if err := ctx.Err(); err != nil {
			span.End("cancelled")
			return err
		}
		node := c.opts.Overrides.Tree.Child(def.Name).WithDefaults(c.opts.Overrides.Globals)
		dsp := trace.Begin(tracer, trace.ScopeDefinition, def.Name, span.ID())
		inst := CreateDefault(c, def, node)
		inst.parent = c.root.ID()
		c.root.scope.insert(inst)
		c.root.TopInstances = append(c.root.TopInstances, inst)
		c.visit(inst, tracer, dsp.ID())
		dsp.End("")
	}
	if err := ctx.Err(); err != nil {
		span.End("cancelled")
		return err
	}

	bsp := trace.Begin(tracer, trace.ScopePhase, "binds", span.ID())
	n := c.applyBinds(tracer, bsp.ID())
	bsp.End(strconv.Itoa(n))

	c.validateUnreached(tracer, span.ID())

	span.WithExtra("symbols", strconv.Itoa(c.SymbolCount())).
		WithExtra("classes", strconv.Itoa(c.classCount)).
		WithExtra("repeats", strconv.Itoa(c.dedup.Suppressed())).
		End("")
	return nil
}

func (c *Compilation) selectTops() []*Definition {
	var tops []*Definition
	if len(c.opts.TopModules) > 0 {
		for _, name := range c.opts.TopModules {
			def := c.unit[name]
			if def == nil || def.Kind == DefPrimitive {
				diag.ReportError(c.reporter, diag.DefUnknownTop, source.NoSpan,
					fmt.Sprintf("top module '%s' not found", name)).Emit()
				continue
			}
			tops = append(tops, def)
		}
		return tops
	}
	for _, def := range c.defs {
		if def.Parent != nil || def.Kind != DefModule || c.referenced[def.Name] {
			continue
		}
		if !c.topReady(def) {
			diag.ReportWarning(c.reporter, diag.DefNotTopNoDefaults, def.NameSpan,
				fmt.Sprintf("module '%s' is not instantiated and has parameters without defaults", def.Name)).Emit()
			continue
		}
		tops = append(tops, def)
	}
	if len(tops) == 0 && len(c.defs) > 0 {
		diag.ReportWarning(c.reporter, diag.DefNoTopModules, source.NoSpan,
			"no top-level modules found in design").Emit()
	}
	return tops
}

// topReady reports whether every overridable parameter without a default
// is supplied globally.
func (c *Compilation) topReady(def *Definition) bool {
	for i := range def.Params {
		p := &def.Params[i]
		if p.HasDefault() {
			continue
		}
		if _, ok := c.opts.Overrides.Globals[p.Name]; !ok || p.IsLocal {
			return false
		}
	}
	return true
}

// visit forces sym and everything below it.
func (c *Compilation) visit(sym Symbol, tracer trace.Tracer, parent uint64) {
	switch s := sym.(type) {
	case *InstanceSymbol:
		if s.virtual {
			return
		}
		var sp *trace.Span
		if tracer.Enabled() && tracer.Level().ShouldEmit(trace.ScopeInstance) {
			sp = trace.Begin(tracer, trace.ScopeInstance, s.HierarchicalPath(), parent)
			parent = sp.ID()
		}
		s.PortConnections()
		for _, m := range s.body.Members() {
			c.visit(m, tracer, parent)
		}
		if sp != nil {
			sp.End(s.body.state.String())
		}
	case *InstanceArraySymbol:
		for _, e := range s.Elements {
			c.visit(e, tracer, parent)
		}
	case *GenerateBlockSymbol:
		for _, m := range s.Members() {
			c.visit(m, tracer, parent)
		}
	case *UnknownModuleSymbol:
		s.PortConnections()
		s.IsChecker()
	}
}

// validateUnreached elaborates definitions no instance reached so their
// contents are still checked.
func (c *Compilation) validateUnreached(tracer trace.Tracer, parent uint64) {
	explicit := len(c.opts.TopModules) > 0
	for _, def := range c.defs {
		if def.IsInstantiated() || def.Kind == DefPrimitive {
			continue
		}
		if explicit && def.Parent == nil && !c.referenced[def.Name] {
			diag.ReportWarning(c.reporter, diag.DefUnused, def.NameSpan,
				fmt.Sprintf("%s '%s' is never instantiated", def.KindString(), def.Name)).Emit()
		}
		var inst *InstanceSymbol
		if def.AllParamsDefaulted() {
			inst = CreateUninstantiated(c, def)
		} else {
			inst = CreateInvalid(c, def)
		}
		c.validation = append(c.validation, inst)
		c.visit(inst, tracer, parent)
	}
}
