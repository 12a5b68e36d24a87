package sat

// ClauseRef is a stable handle into the clause arena. References stay valid
// across ordinary solver operation and are rewritten in a single atomic pass
// only when the arena is relocated (see Arena.Relocate). NilClauseRef stands
// for "no clause" (e.g. a decision's antecedent).
type ClauseRef int32

// NilClauseRef is the sentinel for "no clause".
const NilClauseRef ClauseRef = -1

// Arena is a bump-allocated store of clauses. The solver owns the single
// arena for a search; every clause, whether a root-level constraint or a
// learnt clause, is allocated from it and addressed by ClauseRef rather than
// by pointer so that a relocation pass can compact the live set without
// invalidating references held by theory modules (see spec §3 "lifecycle"
// and §4.1 "garbage collection").
type Arena struct {
	clauses []*Clause
	// liveBytes approximates the memory of every clause allocated in this
	// arena and freedBytes that of the clauses since marked freed; their
	// ratio decides when relocation is due.
	liveBytes int64
	freedBytes int64
}

// NewArena returns an empty arena with room for capacityHint clauses.
func NewArena(capacityHint int) *Arena {
	return &Arena{clauses: make([]*Clause, 0, capacityHint)}
}

// Alloc stores c in the arena and returns its stable reference.
func (a *Arena) Alloc(c *Clause) ClauseRef {
	ref := ClauseRef(len(a.clauses))
	a.clauses = append(a.clauses, c)
	a.liveBytes += c.approxSize()
	return ref
}

// Get dereferences ref. The returned pointer must not be retained across a
// call to Relocate.
func (a *Arena) Get(ref ClauseRef) *Clause {
	return a.clauses[ref]
}

// MarkFreed records that the clause at ref is logically deleted (its slot
// stays populated with a tombstone-marked Clause until the next relocation,
// since rewriting ClauseRef values eagerly would violate the "stable until
// relocate" contract).
func (a *Arena) MarkFreed(ref ClauseRef) {
	a.freedBytes += a.clauses[ref].approxSize()
}

// ShouldRelocate reports whether the bytes of freed clauses have reached the
// given fraction of all bytes allocated in the arena.
func (a *Arena) ShouldRelocate(minFreeFraction float64) bool {
	total := a.liveBytes
	if total == 0 {
		return false
	}
	return float64(a.freedBytes)/float64(total) >= minFreeFraction
}

// Relocate builds a fresh, compacted arena containing only the clauses in
// keep (in order) and returns it along with the old->new ClauseRef mapping.
// Callers are responsible for rewriting every ClauseRef they hold (watch
// index, antecedents, module-held references) using the returned mapping
// before discarding the old arena.
func (a *Arena) Relocate(keep []ClauseRef) (*Arena, map[ClauseRef]ClauseRef) {
	next := NewArena(len(keep))
	mapping := make(map[ClauseRef]ClauseRef, len(keep))
	for _, old := range keep {
		c := a.clauses[old]
		mapping[old] = next.Alloc(c)
	}
	return next, mapping
}
