package syntax

import (
	"fmt"

	"fortio.org/safecast"
)

// Tree owns every syntax node of one design. Nodes are immutable once the
// loader has finished building it.
type Tree struct {
	Exprs *Exprs
	Decls []*ModuleDecl
	// Binds declared at compilation-unit level.
	Binds []*BindDirective

	ordinals uint32
}

func NewTree() *Tree {
	return &Tree{Exprs: NewExprs(0)}
}

// NextOrdinal hands out declaration-order markers. Ordinals advance by two
// so a lookup location can sit directly after a member.
func (t *Tree) NextOrdinal() uint32 {
	next, err := safecast.Conv[uint32](uint64(t.ordinals) + 2)
	if err != nil {
		panic(fmt.Errorf("syntax ordinal overflow: %w", err))
	}
	t.ordinals = next
	return next
}

// Walk visits every declaration, nested ones after their parent.
func (t *Tree) Walk(fn func(*ModuleDecl)) {
	var visit func(d *ModuleDecl)
	visit = func(d *ModuleDecl) {
		fn(d)
		for _, n := range d.Nested {
			visit(n)
		}
	}
	for _, d := range t.Decls {
		visit(d)
	}
}

// WalkMembers visits members depth-first, entering both generate branches.
func WalkMembers(members []Member, fn func(Member)) {
	for _, m := range members {
		fn(m)
		if g, ok := m.(*GenerateIf); ok {
			WalkMembers(g.Then, fn)
			WalkMembers(g.Else, fn)
		}
	}
}
