// Package dag orders definitions by instantiation dependencies.
package dag

import (
	"sort"

	"svelab/internal/syntax"
)

type DefID uint32

type DefIndex struct {
	NameToID map[string]DefID
	IDToName []string
}

// собрать уникальные имена, sort.Strings, раздать ID по порядку
func BuildIndex(tree *syntax.Tree) DefIndex {
	uniq := make(map[string]struct{}, len(tree.Decls))
	for _, d := range tree.Decls {
		if d.Name != "" {
			uniq[d.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]DefID, len(names))
	for i, name := range names {
		nameToID[name] = DefID(i) // #nosec G115 -- one id per declaration
	}
	return DefIndex{NameToID: nameToID, IDToName: names}
}

// Names maps ids back to definition names.
func (idx DefIndex) Names(ids []DefID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToName[id]
	}
	return out
}
