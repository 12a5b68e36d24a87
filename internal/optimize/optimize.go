// Package optimize implements the optimization drivers sketched in spec
// §4.5 on top of the unchanged internal/coordinator.Solve API: SUM
// minimization by successive bound tightening, subset-minimization by
// deletion-based probing, and ordered-list (lexicographic) minimization by
// fixing each tier's outcome as an assumption before moving to the next.
package optimize

import (
	"github.com/rhartert/satid/internal/agg"
	"github.com/rhartert/satid/internal/coordinator"
	"github.com/rhartert/satid/internal/sat"
)

// SumResult is the outcome of MinimizeSum: the best model found (if any)
// and the sum value it achieves.
type SumResult struct {
	Found bool
	Best  coordinator.Result
	Value int64
}

// MinimizeSum implements spec §4.5's SUM optimization outline: solve; on a
// model, read the aggregate's current sum (agg.Propagator.CurrentValue) and
// tighten its bound to value-1 (agg.Propagator.TightenBound); solve again
// from the same assumption set, reusing whatever the kernel already
// learned. TightenBound returning a direct conflict at the root means no
// strictly-better value is reachable, so the previous model was optimal.
func MinimizeSum(c *coordinator.Coordinator, prop *agg.Propagator, aggID int, assumptions []sat.Literal, opts coordinator.SolveOptions) SumResult {
	var out SumResult
	for {
		res := c.Solve(assumptions, opts)
		if res.Status != coordinator.StatusSat {
			break
		}
		out.Found = true
		out.Best = res
		out.Value = prop.CurrentValue(aggID)

		if reason := prop.TightenBound(aggID, out.Value-1); reason != nil {
			break
		}
	}
	return out
}

// SubsetMinimize greedily drives toward a model in which as few of
// candidates hold as possible: taken in order, each candidate is
// tentatively assumed false; if the problem remains satisfiable under that
// stronger assumption set the assumption is kept, otherwise it is dropped
// (that candidate stays free, and ends up true in every remaining model
// exploration). The returned Result is from the last successful Solve call
// (all committed assumptions applied).
func SubsetMinimize(c *coordinator.Coordinator, base []sat.Literal, candidates []sat.Literal, opts coordinator.SolveOptions) coordinator.Result {
	assumptions := append([]sat.Literal(nil), base...)
	best := c.Solve(assumptions, opts)

	for _, cand := range candidates {
		trial := append(append([]sat.Literal(nil), assumptions...), cand.Opposite())
		res := c.Solve(trial, opts)
		if res.Status == coordinator.StatusSat {
			assumptions = trial
			best = res
		}
	}
	return best
}

// OrderedListMinimize performs lexicographic subset-minimization over
// tiers, most significant first: SubsetMinimize is run over tiers[0] first,
// then its resulting assumption commitments (recovered from best.Model) are
// folded into base before minimizing tiers[1], and so on, so that an
// earlier tier's minimality is never traded away for a later one's.
func OrderedListMinimize(c *coordinator.Coordinator, base []sat.Literal, tiers [][]sat.Literal, opts coordinator.SolveOptions) coordinator.Result {
	assumptions := append([]sat.Literal(nil), base...)
	var best coordinator.Result

	for _, tier := range tiers {
		best = SubsetMinimize(c, assumptions, tier, opts)
		if best.Status != coordinator.StatusSat {
			return best
		}
		for _, l := range tier {
			if litHolds(best.Model, l) {
				assumptions = append(assumptions, l)
			} else {
				assumptions = append(assumptions, l.Opposite())
			}
		}
	}
	return best
}

// litHolds reports whether l is true under model (model indexes by
// variable, per coordinator.Result.Model).
func litHolds(model []bool, l sat.Literal) bool {
	v := int(l.VarID())
	if v < 0 || v >= len(model) {
		return false
	}
	return model[v] == l.IsPositive()
}
