package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type Topo struct {
	Order   []DefID   // листья первыми
	Batches [][]DefID // волны независимых определений
	Cyclic  bool
	Cycles  []DefID // узлы, оставшиеся в цикле
}

// ToposortKahn orders definitions so that everything a definition
// instantiates comes before it. Recursive definitions end up in Cycles.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Edges)
	indeg := slices.Clone(g.Indeg)
	topo := &Topo{Order: make([]DefID, 0, nodeCount)}

	current := make([]DefID, 0, nodeCount)
	for i := range nodeCount {
		if indeg[i] == 0 {
			current = append(current, toID(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)
		var next []DefID
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, to := range g.Edges[id] {
				indeg[to]--
				if indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != nodeCount {
		topo.Cyclic = true
		for i := range nodeCount {
			if indeg[i] > 0 {
				topo.Cycles = append(topo.Cycles, toID(i))
			}
		}
	}
	return topo
}

func toID(i int) DefID {
	id, err := safecast.Conv[DefID](i)
	if err != nil {
		panic(fmt.Errorf("definition id overflow: %w", err))
	}
	return id
}
