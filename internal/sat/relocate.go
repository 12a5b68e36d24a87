package sat

// Relocatable is the hook for rewriting the ClauseRefs a theory module
// holds across calls once the arena has been relocated. coordinator.Module
// embeds it; the agg, id and fd propagators hold no ClauseRefs and
// implement Relocate as a no-op, and no code in this repository calls a
// module's Relocate.
type Relocatable interface {
	Relocate(mapping map[ClauseRef]ClauseRef)
}

// MaybeRelocate compacts the clause arena once the freed (tombstoned) share
// of it has reached the configured fraction, rewriting the watch index and
// every variable's clause antecedent, and returns the old->new ClauseRef
// mapping (nil if no relocation was needed). Neither Solver.Solve nor
// internal/coordinator calls it, so the arena is not compacted during a
// search.
func (s *Solver) MaybeRelocate() map[ClauseRef]ClauseRef {
	if !s.arena.ShouldRelocate(s.opts.MinFreeArenaFraction) {
		return nil
	}

	keep := make([]ClauseRef, 0, len(s.constraints)+len(s.learnts))
	keep = append(keep, s.constraints...)
	keep = append(keep, s.learnts...)

	newArena, mapping := s.arena.Relocate(keep)

	for i, ref := range s.constraints {
		s.constraints[i] = mapping[ref]
	}
	for i, ref := range s.learnts {
		s.learnts[i] = mapping[ref]
	}
	for lit := range s.watchers {
		ws := s.watchers[lit]
		for i := range ws {
			if newRef, ok := mapping[ws[i].clause]; ok {
				ws[i].clause = newRef
			}
		}
	}
	for v := range s.antecedent {
		if s.antecedent[v].Kind == AntecedentClause {
			if newRef, ok := mapping[s.antecedent[v].Clause]; ok {
				s.antecedent[v].Clause = newRef
			}
		}
	}

	s.arena = newArena
	return mapping
}
