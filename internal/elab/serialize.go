package elab

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"svelab/internal/syntax"
)

// Attr is one key/value pair of a dump node.
type Attr struct {
	Key   string `json:"key" msgpack:"k"`
	Value string `json:"value" msgpack:"v"`
}

// DumpNode is the format-neutral structured dump of a symbol.
type DumpNode struct {
	Kind     string      `json:"kind" msgpack:"kind"`
	Name     string      `json:"name,omitempty" msgpack:"name,omitempty"`
	Attrs    []Attr      `json:"attrs,omitempty" msgpack:"attrs,omitempty"`
	Children []*DumpNode `json:"children,omitempty" msgpack:"children,omitempty"`
}

func (n *DumpNode) attr(key, value string) *DumpNode {
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
	return n
}

func (n *DumpNode) add(child *DumpNode) {
	if child != nil {
		n.Children = append(n.Children, child)
	}
}

// Attr returns the value of key, or "".
func (n *DumpNode) Attr(key string) string {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Serializer turns elaborated symbols into DumpNodes.
type Serializer struct {
	comp *Compilation
	// Members includes nets, variables, assigns and ports of each body;
	// without it only the instance hierarchy and parameters are dumped.
	Members bool
	// Validation appends the instances built for unreached definitions.
	Validation bool
}

func NewSerializer(c *Compilation) *Serializer {
	return &Serializer{comp: c, Members: true}
}

// Root dumps the whole design.
func (s *Serializer) Root() *DumpNode {
	r := s.comp.root
	n := &DumpNode{Kind: r.Kind().String(), Name: r.Name()}
	for _, m := range r.Members() {
		n.add(s.Symbol(m))
	}
	if s.Validation {
		for _, inst := range s.comp.validation {
			n.add(inst.Serialize(s).attr("validation", "true"))
		}
	}
	return n
}

// Symbol dumps any symbol; kinds without a dedicated form get a leaf.
func (s *Serializer) Symbol(sym Symbol) *DumpNode {
	in := s.comp.types
	switch x := sym.(type) {
	case *InstanceSymbol:
		return x.Serialize(s)
	case *InstanceArraySymbol:
		return x.Serialize(s)
	case *InstanceBody:
		return x.Serialize(s)
	case *UnknownModuleSymbol:
		return x.Serialize(s)
	case *PrimitiveInstanceSymbol:
		return x.Serialize(s)
	case *GenerateBlockSymbol:
		n := &DumpNode{Kind: x.Kind().String(), Name: x.Name()}
		for _, m := range x.Members() {
			n.add(s.Symbol(m))
		}
		return n
	case *ParameterSymbol:
		n := &DumpNode{Kind: x.Kind().String(), Name: x.Name()}
		n.attr("value", x.ValueString(in)).attr("source", x.Source.String())
		if x.IsLocal() {
			n.attr("local", "true")
		}
		return n
	}
	if !s.Members {
		return nil
	}
	n := &DumpNode{Kind: sym.Kind().String(), Name: sym.Name()}
	switch x := sym.(type) {
	case *NetSymbol:
		n.attr("net_type", x.NetType).attr("type", in.String(x.Type))
		if x.Implicit {
			n.attr("implicit", "true")
		}
	case *VariableSymbol:
		n.attr("type", in.String(x.Type))
		if x.Virtual != nil {
			n.attr("interface", x.Virtual.Definition().Name)
			if x.Modport != "" {
				n.attr("modport", x.Modport)
			}
		}
	case *PortSymbol:
		n.attr("direction", x.Direction.String()).attr("type", in.String(x.Type))
	case *InterfacePortSymbol:
		n.attr("interface", x.InterfaceName)
		if x.Modport != "" {
			n.attr("modport", x.Modport)
		}
	case *ContinuousAssignSymbol:
		n.attr("lhs", s.render(x.LHS)).attr("rhs", s.render(x.RHS))
	}
	return n
}

func (s *Serializer) render(id syntax.ExprID) string {
	if !id.IsValid() {
		return ""
	}
	return s.comp.tree.Render(id)
}

func coordString(coords []int32) string {
	var sb strings.Builder
	for _, c := range coords {
		fmt.Fprintf(&sb, "[%d]", c)
	}
	return sb.String()
}

func (i *InstanceSymbol) Serialize(s *Serializer) *DumpNode {
	n := &DumpNode{Kind: i.Kind().String(), Name: i.Name() + coordString(i.ArrayPath)}
	n.attr("definition", i.Definition().HierarchicalPath())
	if i.virtual {
		n.attr("virtual", "true")
	} else {
		n.attr("path", i.HierarchicalPath())
	}
	for _, pc := range i.PortConnections() {
		switch {
		case pc.Iface != nil:
			n.attr("conn."+pc.Port.Name(), s.comp.HierarchicalPath(pc.Iface))
		case pc.Expr.IsValid():
			n.attr("conn."+pc.Port.Name(), s.render(pc.Expr))
		case pc.Implicit:
			n.attr("conn."+pc.Port.Name(), ".*")
		}
	}
	n.add(i.body.Serialize(s))
	return n
}

func (a *InstanceArraySymbol) Serialize(s *Serializer) *DumpNode {
	n := &DumpNode{Kind: a.Kind().String(), Name: a.Name() + coordString(a.path)}
	n.attr("range", a.Range.String())
	for _, e := range a.Elements {
		n.add(s.Symbol(e))
	}
	return n
}

func (b *InstanceBody) Serialize(s *Serializer) *DumpNode {
	n := &DumpNode{Kind: b.Kind().String(), Name: b.def.Name}
	if b.class != nil {
		n.attr("class", strconv.Itoa(b.class.id))
	}
	if b.uninstantiated {
		n.attr("uninstantiated", "true")
	}
	if b.blocked {
		n.attr("blocked", "true")
	}
	for _, m := range b.Members() {
		n.add(s.Symbol(m))
	}
	return n
}

func (u *UnknownModuleSymbol) Serialize(s *Serializer) *DumpNode {
	n := &DumpNode{Kind: u.Kind().String(), Name: u.Name()}
	n.attr("module", u.ModuleName)
	for i, v := range u.ParamValues {
		n.attr("param."+strconv.Itoa(i), v.String())
	}
	names := u.PortNames()
	for i, pc := range u.PortConnections() {
		key := names[i]
		if key == "" {
			key = strconv.Itoa(i)
		}
		if pc.Wildcard {
			key = "*"
		}
		n.attr("conn."+key, s.render(pc.Expr))
	}
	if u.IsChecker() {
		n.attr("checker", "true")
	}
	return n
}

func (p *PrimitiveInstanceSymbol) Serialize(s *Serializer) *DumpNode {
	n := &DumpNode{Kind: p.Kind().String(), Name: p.Name() + coordString(p.ArrayPath)}
	n.attr("primitive", p.PrimitiveType)
	if p.Delay.IsValid() {
		n.attr("delay", s.render(p.Delay))
	}
	for i, a := range p.Actuals {
		n.attr("conn."+strconv.Itoa(i), s.render(a))
	}
	return n
}

// WriteText renders n as an indented tree.
func WriteText(w io.Writer, n *DumpNode) error {
	bw := bufio.NewWriter(w)
	writeTextLine(bw, n)
	writeTextChildren(bw, n, "")
	return bw.Flush()
}

func writeTextLine(w *bufio.Writer, n *DumpNode) {
	w.WriteString(n.Kind)
	if n.Name != "" {
		w.WriteByte(' ')
		w.WriteString(n.Name)
	}
	for _, a := range n.Attrs {
		fmt.Fprintf(w, " %s=%s", a.Key, strconv.Quote(a.Value))
	}
	w.WriteByte('\n')
}

func writeTextChildren(w *bufio.Writer, n *DumpNode, prefix string) {
	for i, c := range n.Children {
		last := i == len(n.Children)-1
		if last {
			w.WriteString(prefix + "└─ ")
		} else {
			w.WriteString(prefix + "├─ ")
		}
		writeTextLine(w, c)
		if last {
			writeTextChildren(w, c, prefix+"   ")
		} else {
			writeTextChildren(w, c, prefix+"│  ")
		}
	}
}

func WriteJSON(w io.Writer, n *DumpNode) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}

func WriteMsgpack(w io.Writer, n *DumpNode) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(n)
}

// ReadMsgpack decodes a dump written by WriteMsgpack.
func ReadMsgpack(r io.Reader) (*DumpNode, error) {
	var n DumpNode
	if err := msgpack.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return &n, nil
}
