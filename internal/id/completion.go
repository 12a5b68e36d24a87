package id

import (
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// EmitCompletion adds the Clark completion of every rule to the solver, per
// spec §4.3 step 1: for a disjunctive rule h <-> l1 v ... v ln, the long
// clause ¬h v l1 v ... v ln plus the binaries h v ¬li; for a conjunctive
// rule (h <-> l1 ^ ... ^ ln), the dual: h v ¬l1 v ... v ¬ln plus ¬h v li.
func EmitCompletion(s *sat.Solver, rules []problem.Rule) error {
	for _, r := range rules {
		if err := emitOne(s, r); err != nil {
			return err
		}
	}
	return nil
}

func emitOne(s *sat.Solver, r problem.Rule) error {
	h := r.Head

	if r.Conjunctive {
		long := make([]sat.Literal, 0, len(r.Body)+1)
		long = append(long, h)
		for _, l := range r.Body {
			long = append(long, l.Opposite())
			if err := s.AddClause([]sat.Literal{h.Opposite(), l}); err != nil {
				return err
			}
		}
		return s.AddClause(long)
	}

	long := make([]sat.Literal, 0, len(r.Body)+1)
	long = append(long, h.Opposite())
	for _, l := range r.Body {
		long = append(long, l)
		if err := s.AddClause([]sat.Literal{h, l.Opposite()}); err != nil {
			return err
		}
	}
	return s.AddClause(long)
}
