package fd

import (
	"github.com/rhartert/satid/internal/agg"
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// LinearSum reifies `sum(coeffs[i]*vars[i]) cmp bound` against head, per
// spec §4.6: each IntVar decomposes into unit "x >= k" literals
// (IntVar.unitWeightLits), so the whole linear sum becomes exactly a SUM
// aggregate over those literals, reusing internal/agg's weighted-set
// reduction and propagation rather than implementing arithmetic again. A
// negative coefficient flips its var's unit literals to their opposite
// (each worth -coeffs[i], i.e. |coeffs[i]| under Sum's non-negative-weight
// rule) and folds the sign change into the set's constant.
//
// cmp selects whether bound is a lower or upper bound on the sum; head is
// the (already-allocated) literal the aggregate is reified against. The
// aggregate's Semantics field is set to Implication, but internal/agg does
// not read it: the propagator enforces head <-> sum in both directions.
func LinearSum(s *sat.Solver, coeffs []int64, vars []*IntVar, cmp problem.Sign, bound int64, head sat.Literal) (*agg.Propagator, error) {
	if len(coeffs) != len(vars) {
		return nil, problem.Errorf(problem.MalformedInput, "linearsum_arity", "fd: %d coefficients for %d variables", len(coeffs), len(vars))
	}

	var lits []problem.WeightedLiteral
	var constant int64
	for i, v := range vars {
		c := coeffs[i]
		constant += c * int64(v.Min)
		if c == 0 {
			continue
		}
		unit := v.unitWeightLits()
		w := c
		if w < 0 {
			w = -w
		}
		for _, l := range unit {
			lit := l
			if c < 0 {
				lit = l.Opposite()
			}
			lits = append(lits, problem.WeightedLiteral{Lit: lit, Weight: w})
		}
		if c < 0 {
			// c*u = -w*u = -w*(1-u) + w*u... no: c*u = -w + w*!u, since
			// u and !u are complementary (exactly one holds). Each
			// flipped unit literal therefore carries a -w constant
			// contribution alongside its +w weight on the opposite
			// literal, already recorded above.
			constant -= w * int64(len(unit))
		}
	}

	set := problem.Set{ID: 0, Lits: lits, Constant: 0}
	aggregate := problem.Aggregate{
		ID:         0,
		Head:       head,
		Kind:       problem.Sum,
		Sign:       cmp,
		Bound:      bound - constant,
		Semantics:  problem.Implication,
		SetID:      0,
		DefiningID: -1,
	}
	return agg.NewPropagator(s, []problem.Set{set}, []problem.Aggregate{aggregate})
}
