package dag

import (
	"slices"

	"svelab/internal/syntax"
)

type Graph struct {
	Edges [][]DefID // Edges[dep] = определения, которые его инстанцируют
	Indeg []int     // число различных зависимостей у определения
	// Missing lists instantiated names with no declaration, sorted.
	Missing []string
}

// BuildGraph collects the instantiation edges of every declaration. Nested
// declarations count towards their outermost parent; bind directives
// count towards the declaration that holds them.
func BuildGraph(idx DefIndex, tree *syntax.Tree) Graph {
	n := len(idx.IDToName)
	g := Graph{
		Edges: make([][]DefID, n),
		Indeg: make([]int, n),
	}
	missing := make(map[string]struct{})
	for _, d := range tree.Decls {
		user, ok := idx.NameToID[d.Name]
		if !ok {
			continue
		}
		local := make(map[string]struct{})
		var deps []DefID
		addDep := func(name string) {
			dep, ok := idx.NameToID[name]
			if !ok {
				if _, nested := local[name]; !nested {
					missing[name] = struct{}{}
				}
				return
			}
			if !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		var visit func(decl *syntax.ModuleDecl)
		visit = func(decl *syntax.ModuleDecl) {
			for _, nd := range decl.Nested {
				local[nd.Name] = struct{}{}
			}
			syntax.WalkMembers(decl.Members, func(m syntax.Member) {
				switch m := m.(type) {
				case *syntax.HierInstantiation:
					addDep(m.Type)
				case *syntax.BindDirective:
					if m.Inst != nil {
						addDep(m.Inst.Type)
					}
				}
			})
			for _, nd := range decl.Nested {
				visit(nd)
			}
		}
		visit(d)
		// локальные имена не считаются пропущенными
		for name := range local {
			delete(missing, name)
		}
		for _, dep := range deps {
			g.Edges[dep] = append(g.Edges[dep], user)
			g.Indeg[user]++
		}
	}
	for name := range missing {
		g.Missing = append(g.Missing, name)
	}
	slices.Sort(g.Missing)
	return g
}
