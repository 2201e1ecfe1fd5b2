package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"svelab/internal/source"
	"svelab/internal/syntax"
)

// CheckTreeInvariants runs a minimal set of invariants on a loaded design:
// 1) every declaration and member span lies inside a known file
// 2) declaration names have non-empty spans
// 3) ordinals grow in declaration order, members after their module and
// nested declarations after their parent
func CheckTreeInvariants(tree *syntax.Tree, fs *source.FileSet) error {
	if tree == nil || fs == nil {
		return fmt.Errorf("nil tree or file set")
	}
	var visit func(d *syntax.ModuleDecl, parentOrd uint32) error
	visit = func(d *syntax.ModuleDecl, parentOrd uint32) error {
		if d.Ordinal <= parentOrd {
			return fmt.Errorf("%s: ordinal %d not after parent %d", d.Name, d.Ordinal, parentOrd)
		}
		if d.NameSpan.Empty() {
			return fmt.Errorf("%s: empty name span", d.Name)
		}
		if err := checkSpan(fs, d.Span); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		last := d.Ordinal
		for _, m := range d.Members {
			if m.Ordinal() <= last {
				return fmt.Errorf("%s: member ordinal %d after %d", d.Name, m.Ordinal(), last)
			}
			last = m.Ordinal()
		}
		var bad error
		syntax.WalkMembers(d.Members, func(m syntax.Member) {
			if bad == nil {
				if err := checkSpan(fs, m.Span()); err != nil {
					bad = fmt.Errorf("%s: member: %w", d.Name, err)
				}
			}
		})
		if bad != nil {
			return bad
		}
		for _, n := range d.Nested {
			if err := visit(n, d.Ordinal); err != nil {
				return err
			}
		}
		return nil
	}

	var prev uint32
	for _, d := range tree.Decls {
		// соседние декларации тоже упорядочены
		if err := visit(d, prev); err != nil {
			return err
		}
		prev = d.Ordinal
	}
	return nil
}

func checkSpan(fs *source.FileSet, sp source.Span) error {
	f := fs.Get(sp.File)
	if f == nil {
		return fmt.Errorf("span %v points to unknown file", sp)
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	if sp.End < sp.Start {
		return fmt.Errorf("inverted span %v", sp)
	}
	if sp.End > lenContent {
		return fmt.Errorf("span end beyond content: %d > %d", sp.End, lenContent)
	}
	return nil
}
