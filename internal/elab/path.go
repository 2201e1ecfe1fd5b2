package elab

import (
	"fmt"
	"strconv"
	"strings"
)

const pathSeparator = "."

// arrayElement is implemented by symbols that can sit inside an instance
// array and carry their coordinates.
type arrayElement interface {
	arrayPath() []int32
}

// HierarchicalPath renders the dotted path of sym from the root. Array
// elements print as name[i][j]; the arrays themselves add no segment.
func (c *Compilation) HierarchicalPath(sym Symbol) string {
	var parts []string
	for cur := sym; cur != nil; {
		switch s := cur.(type) {
		case *RootSymbol:
			cur = nil
			continue
		case *InstanceBody:
			cur = c.Symbol(s.parent)
			continue
		}
		seg := cur.Name()
		next := c.Symbol(cur.Parent())
		if ae, ok := cur.(arrayElement); ok {
			var sb strings.Builder
			sb.WriteString(seg)
			for _, x := range ae.arrayPath() {
				fmt.Fprintf(&sb, "[%d]", x)
			}
			seg = sb.String()
			for {
				arr, isArr := next.(*InstanceArraySymbol)
				if !isArr {
					break
				}
				next = c.Symbol(arr.parent)
			}
		}
		parts = append(parts, seg)
		cur = next
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, pathSeparator)
}

type pathSegment struct {
	name    string
	indices []int32
}

// parsePath splits "top.sub[2].leaf" into segments. It returns false for
// malformed input.
func parsePath(path string) ([]pathSegment, bool) {
	if path == "" {
		return nil, false
	}
	var out []pathSegment
	for _, part := range strings.Split(path, pathSeparator) {
		name, rest, bracket := strings.Cut(part, "[")
		if name == "" {
			return nil, false
		}
		seg := pathSegment{name: name}
		if bracket {
			rest = "[" + rest
		}
		for rest != "" {
			if rest[0] != '[' {
				return nil, false
			}
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, false
			}
			v, err := strconv.ParseInt(strings.TrimSpace(rest[1:end]), 10, 32)
			if err != nil {
				return nil, false
			}
			seg.indices = append(seg.indices, int32(v))
			rest = rest[end+1:]
		}
		out = append(out, seg)
	}
	return out, true
}

// LookupPath resolves a hierarchical path from the root, forcing bodies on
// the way. It returns nil when any segment is missing.
func (c *Compilation) LookupPath(path string) Symbol {
	segs, ok := parsePath(path)
	if !ok {
		return nil
	}
	return c.walkPath(c.root.scope.find(segs[0].name), segs)
}

// lookupPathFrom resolves the first segment in scope, falling back to the
// root, and descends from there.
func (c *Compilation) lookupPathFrom(scope *Scope, path string) Symbol {
	segs, ok := parsePath(path)
	if !ok {
		return nil
	}
	var first Symbol
	if scope != nil {
		first = scope.lookup(segs[0].name, LocationMax)
	}
	if first == nil {
		first = c.root.scope.find(segs[0].name)
	}
	return c.walkPath(first, segs)
}

func (c *Compilation) walkPath(sym Symbol, segs []pathSegment) Symbol {
	for i, seg := range segs {
		if i > 0 {
			sym = c.child(sym, seg.name)
		}
		for _, idx := range seg.indices {
			arr, ok := sym.(*InstanceArraySymbol)
			if !ok {
				return nil
			}
			sym = arr.ElementAt(idx)
		}
		if sym == nil {
			return nil
		}
	}
	return sym
}

func (c *Compilation) child(sym Symbol, name string) Symbol {
	switch s := sym.(type) {
	case *InstanceSymbol:
		if s.virtual {
			return nil
		}
		return s.body.Find(name)
	case *GenerateBlockSymbol:
		return s.Find(name)
	case *RootSymbol:
		return s.scope.find(name)
	}
	return nil
}
