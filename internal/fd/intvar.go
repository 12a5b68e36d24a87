// Package fd implements a finite-domain integer propagator over the order
// encoding (spec §4.6): each IntVar's domain [Min,Max] is represented as a
// chain of SAT literals "x <= k", so that bound tightening and consistency
// of the chain itself fall out of the kernel's own unit propagation for
// free. AllDifferent layers Hall-interval bounds-consistency pruning on top,
// and LinearSum reduces a reified linear constraint to exactly the SUM
// aggregate internal/agg already knows how to propagate.
package fd

import (
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// IntVar is an integer variable with an inclusive domain [Min,Max] encoded
// as Max-Min order literals: leLits[i] stands for "x <= Min+i", for
// i in [0, Max-Min). "x <= Max" needs no literal (always true); "x <= Min-1"
// needs none either (always false).
type IntVar struct {
	Min, Max int
	leLits   []sat.Literal
}

// NewIntVar allocates a finite-domain variable over [min,max] and posts the
// monotonicity chain "x<=k -> x<=k+1" that keeps the encoding internally
// consistent under plain unit propagation, per spec §4.6's "order-encoding
// style common to CP-over-SAT front ends".
func NewIntVar(s *sat.Solver, min, max int) (*IntVar, error) {
	if min > max {
		return nil, problem.Errorf(problem.MalformedInput, "empty_domain", "fd: domain [%d,%d] is empty", min, max)
	}
	v := &IntVar{Min: min, Max: max}
	n := max - min
	v.leLits = make([]sat.Literal, n)
	for i := 0; i < n; i++ {
		v.leLits[i] = sat.PositiveLiteral(s.NewVariable(true, true))
	}
	for i := 0; i < n-1; i++ {
		if err := s.AddClause([]sat.Literal{v.leLits[i].Opposite(), v.leLits[i+1]}); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// leLit returns the literal for "x <= k", k in [Min,Max).
func (v *IntVar) leLit(k int) sat.Literal {
	return v.leLits[k-v.Min]
}

// geLit returns the literal for "x >= k", k in (Min,Max].
func (v *IntVar) geLit(k int) sat.Literal {
	return v.leLit(k - 1).Opposite()
}

// LB returns the current lower bound under s's trail: Min plus the length of
// the prefix of leLits already forced False (the chain clauses posted by
// NewIntVar make False propagate downward and True upward, so at a
// unit-propagation fixpoint the False literals are exactly a prefix).
func (v *IntVar) LB(s *sat.Solver) int {
	lb := v.Min
	for k := v.Min; k < v.Max; k++ {
		if s.LitValue(v.leLit(k)) != sat.False {
			break
		}
		lb = k + 1
	}
	return lb
}

// UB returns the current upper bound under s's trail: the smallest k whose
// "x<=k" literal is already forced True, or Max if none is.
func (v *IntVar) UB(s *sat.Solver) int {
	for k := v.Min; k < v.Max; k++ {
		if s.LitValue(v.leLit(k)) == sat.True {
			return k
		}
	}
	return v.Max
}

// unitWeightLits decomposes v into its per-unit "x >= k" literals, each
// worth one unit of v above v.Min: v = v.Min + sum_k [x >= Min+1+k]. This is
// the translation LinearSum uses to turn a coefficient*IntVar term into
// weighted literals internal/agg can reduce.
func (v *IntVar) unitWeightLits() []sat.Literal {
	lits := make([]sat.Literal, len(v.leLits))
	for i := range v.leLits {
		lits[i] = v.geLit(v.Min + 1 + i)
	}
	return lits
}
