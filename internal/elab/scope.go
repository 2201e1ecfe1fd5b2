package elab

import "math"

// LookupLocation is the elaboration-order marker of a lookup: a symbol is
// visible when its ordinal is strictly below the location.
type LookupLocation uint32

// LocationMax sees every member of a scope regardless of declaration order.
const LocationMax LookupLocation = math.MaxUint32

// Before is the location of a member itself: earlier members are visible.
func Before(ordinal uint32) LookupLocation { return LookupLocation(ordinal) }

// After is the location directly following a member.
func After(ordinal uint32) LookupLocation { return LookupLocation(ordinal + 1) }

// Scope holds the members of a body, generate block or the root. Lexical
// lookup continues into the parent scope with the same location.
type Scope struct {
	owner   Symbol
	parent  *Scope
	members []Symbol
	byName  map[string]Symbol
}

func newScope(owner Symbol, parent *Scope) *Scope {
	return &Scope{owner: owner, parent: parent, byName: make(map[string]Symbol)}
}

func (s *Scope) Owner() Symbol        { return s.owner }
func (s *Scope) Parent() *Scope       { return s.parent }
func (s *Scope) Len() int             { return len(s.members) }
func (s *Scope) memberList() []Symbol { return s.members }

// insert adds sym; a named symbol that collides with an existing member is
// still kept in order but the earlier one stays addressable by name. The
// earlier symbol is returned so the caller can diagnose.
func (s *Scope) insert(sym Symbol) Symbol {
	s.members = append(s.members, sym)
	name := sym.Name()
	if name == "" {
		return nil
	}
	if prev, ok := s.byName[name]; ok {
		return prev
	}
	s.byName[name] = sym
	return nil
}

// find returns a direct member by name, ignoring declaration order.
func (s *Scope) find(name string) Symbol {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

// lookup resolves name lexically from s outwards. Members are visible only
// when declared before loc.
func (s *Scope) lookup(name string, loc LookupLocation) Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		sym, ok := sc.byName[name]
		if !ok {
			continue
		}
		if loc == LocationMax || LookupLocation(sym.base().ord) < loc {
			return sym
		}
	}
	return nil
}
