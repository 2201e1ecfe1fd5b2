package elab

import (
	"fmt"
	"sort"
	"strings"

	"svelab/internal/source"
	"svelab/internal/syntax"
)

// OverrideValue is a parameter value supplied from outside the design.
// Exactly one of Expr and Type is set.
type OverrideValue struct {
	Text string
	Expr syntax.ExprID
	Type *syntax.DataType
	Span source.Span
	// Global values come from -G and apply to every top instance.
	Global bool
}

// ParamOverrideNode is one level of the persistent override tree. Nodes are
// never mutated after construction; With copies the touched path only.
type ParamOverrideNode struct {
	values   map[string]OverrideValue
	children map[string]*ParamOverrideNode
}

var emptyOverrides = &ParamOverrideNode{}

// EmptyOverrides returns the shared node without values or children.
func EmptyOverrides() *ParamOverrideNode { return emptyOverrides }

func (n *ParamOverrideNode) IsEmpty() bool {
	return n == nil || (len(n.values) == 0 && len(n.children) == 0)
}

// Value returns the override for param at this level.
func (n *ParamOverrideNode) Value(param string) (OverrideValue, bool) {
	if n == nil {
		return OverrideValue{}, false
	}
	v, ok := n.values[param]
	return v, ok
}

// Params lists the overridden parameter names, sorted.
func (n *ParamOverrideNode) Params() []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.values))
	for k := range n.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Child descends the edge named key, or returns the empty node.
func (n *ParamOverrideNode) Child(key string) *ParamOverrideNode {
	if n == nil {
		return emptyOverrides
	}
	if c, ok := n.children[key]; ok {
		return c
	}
	return emptyOverrides
}

// ElementChild descends into an array element: "u[3][1]" is tried first,
// then every shorter prefix down to the array-wide "u".
func (n *ParamOverrideNode) ElementChild(name string, coords []int32) *ParamOverrideNode {
	if n.IsEmpty() {
		return emptyOverrides
	}
	for k := len(coords); k > 0; k-- {
		if c, ok := n.children[ElementKey(name, coords[:k])]; ok {
			return c
		}
	}
	return n.Child(name)
}

// ElementKey renders the child key of an array element.
func ElementKey(name string, coords []int32) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, c := range coords {
		fmt.Fprintf(&sb, "[%d]", c)
	}
	return sb.String()
}

func (n *ParamOverrideNode) clone() *ParamOverrideNode {
	out := &ParamOverrideNode{
		values:   make(map[string]OverrideValue, len(n.values)+1),
		children: make(map[string]*ParamOverrideNode, len(n.children)+1),
	}
	for k, v := range n.values {
		out.values[k] = v
	}
	for k, c := range n.children {
		out.children[k] = c
	}
	return out
}

// With returns a tree where path/param is set to v. Nodes off the path are
// shared with n.
func (n *ParamOverrideNode) With(path []string, param string, v OverrideValue) *ParamOverrideNode {
	if n == nil {
		n = emptyOverrides
	}
	out := n.clone()
	if len(path) == 0 {
		out.values[param] = v
		return out
	}
	out.children[path[0]] = n.Child(path[0]).With(path[1:], param, v)
	return out
}

// WithDefaults fills in values not already present at this level.
func (n *ParamOverrideNode) WithDefaults(values map[string]OverrideValue) *ParamOverrideNode {
	if len(values) == 0 {
		return n
	}
	if n == nil {
		n = emptyOverrides
	}
	var out *ParamOverrideNode
	for k, v := range values {
		if _, ok := n.values[k]; ok {
			continue
		}
		if out == nil {
			out = n.clone()
		}
		out.values[k] = v
	}
	if out == nil {
		return n
	}
	return out
}

// Overrides is the parsed form of command-line and manifest overrides.
type Overrides struct {
	Tree    *ParamOverrideNode
	Globals map[string]OverrideValue
}

// ParseOverride parses "top.u[2].P=value" or, for globals, "P=value". The
// value is parsed into tree with spans inside file, which holds text.
func ParseOverride(tree *syntax.Tree, file source.FileID, text string) (path []string, param string, v OverrideValue, err error) {
	eq := strings.IndexByte(text, '=')
	if eq < 0 {
		return nil, "", v, fmt.Errorf("override %q: expected name=value", text)
	}
	lhs, rhs := strings.TrimSpace(text[:eq]), text[eq+1:]
	if lhs == "" {
		return nil, "", v, fmt.Errorf("override %q: empty parameter name", text)
	}
	parts := strings.Split(lhs, pathSeparator)
	for _, p := range parts {
		if p == "" {
			return nil, "", v, fmt.Errorf("override %q: empty path component", text)
		}
	}
	base := uint32(eq + 1) // #nosec G115 -- override text is short
	v = OverrideValue{Text: strings.TrimSpace(rhs), Global: len(parts) == 1}
	if syntax.LooksLikeDataType(rhs) {
		dt, perr := tree.ParseDataType(file, base, rhs)
		if perr != nil {
			return nil, "", v, fmt.Errorf("override %q: %w", text, perr)
		}
		v.Type = dt
		v.Span = dt.Span
	} else {
		id, perr := tree.ParseExpr(file, base, rhs)
		if perr != nil {
			return nil, "", v, fmt.Errorf("override %q: %w", text, perr)
		}
		v.Expr = id
		v.Span = tree.Exprs.Get(id).Span
	}
	return parts[:len(parts)-1], parts[len(parts)-1], v, nil
}

// BuildOverrides parses every override text into a persistent tree plus the
// global set. Each text gets its own virtual file in fs.
func BuildOverrides(tree *syntax.Tree, fs *source.FileSet, texts []string) (Overrides, error) {
	out := Overrides{Tree: emptyOverrides, Globals: make(map[string]OverrideValue)}
	for _, text := range texts {
		file := fs.AddVirtual("<override>", []byte(text))
		path, param, v, err := ParseOverride(tree, file, text)
		if err != nil {
			return out, err
		}
		if v.Global {
			out.Globals[param] = v
			continue
		}
		out.Tree = out.Tree.With(path, param, v)
	}
	return out, nil
}
