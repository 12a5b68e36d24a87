package agg

import (
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// accum tracks, per variable, the weight(s) seen for its positive and
// negative literal while scanning a set.
type accum struct {
	posW, negW         int64
	posSeen, negSeen   bool
}

// Reduce performs the parse-time set-reduction pass described by spec §4.2:
// duplicate literals are coalesced with the kind's combiner, and a variable
// appearing as both a positive and a negative weighted literal ("bothsigns")
// is rewritten per the kind's bothsigns rule, folding a guaranteed
// contribution into the set's Constant (the seed value fed into cc/cp
// folds, generalizing spec's "add to the empty-set constant" wording to
// also cover MIN/MAX, whose combine has no constant-additive inverse).
func Reduce(set problem.Set, kind problem.AggregateKind) (problem.Set, error) {
	comb := combinerFor(kind)

	if kind == problem.Product {
		for _, wl := range set.Lits {
			if wl.Weight == 0 {
				return problem.Set{}, problem.Errorf(problem.MalformedInput, "zero_weight_product", "set %d: PRODUCT forbids zero weight", set.ID)
			}
		}
	}

	order := make([]sat.Var, 0, len(set.Lits))
	byVar := make(map[sat.Var]*accum, len(set.Lits))

	for _, wl := range set.Lits {
		v := wl.Lit.VarID()
		a, ok := byVar[v]
		if !ok {
			a = &accum{}
			byVar[v] = a
			order = append(order, v)
		}
		if wl.Lit.IsPositive() {
			if a.posSeen {
				a.posW = comb.combine(a.posW, wl.Weight)
			} else {
				a.posW, a.posSeen = wl.Weight, true
			}
		} else {
			if a.negSeen {
				a.negW = comb.combine(a.negW, wl.Weight)
			} else {
				a.negW, a.negSeen = wl.Weight, true
			}
		}
	}

	constant := set.Constant
	out := make([]problem.WeightedLiteral, 0, len(order))

	for _, v := range order {
		a := byVar[v]
		switch {
		case a.posSeen && a.negSeen:
			lo, hi := a.posW, a.negW
			if hi < lo {
				lo, hi = hi, lo
			}
			switch kind {
			case problem.Product:
				return problem.Set{}, problem.Errorf(problem.MalformedInput, "bothsigns_product", "set %d: PRODUCT forbids a variable appearing with both polarities", set.ID)
			case problem.Sum, problem.Cardinality:
				constant = comb.combine(constant, lo)
				if diff := a.posW - a.negW; diff > 0 {
					out = append(out, problem.WeightedLiteral{Lit: sat.PositiveLiteral(v), Weight: diff})
				} else if diff < 0 {
					out = append(out, problem.WeightedLiteral{Lit: sat.NegativeLiteral(v), Weight: -diff})
				}
				// diff == 0: the pair contributes only the folded constant.
			case problem.Max:
				constant = comb.combine(constant, lo)
				if a.posW >= a.negW {
					out = append(out, problem.WeightedLiteral{Lit: sat.PositiveLiteral(v), Weight: a.posW})
				} else {
					out = append(out, problem.WeightedLiteral{Lit: sat.NegativeLiteral(v), Weight: a.negW})
				}
			case problem.Min:
				constant = comb.combine(constant, hi)
				if a.posW <= a.negW {
					out = append(out, problem.WeightedLiteral{Lit: sat.PositiveLiteral(v), Weight: a.posW})
				} else {
					out = append(out, problem.WeightedLiteral{Lit: sat.NegativeLiteral(v), Weight: a.negW})
				}
			}
		case a.posSeen:
			out = append(out, problem.WeightedLiteral{Lit: sat.PositiveLiteral(v), Weight: a.posW})
		default:
			out = append(out, problem.WeightedLiteral{Lit: sat.NegativeLiteral(v), Weight: a.negW})
		}
	}

	if len(out) == 0 {
		return problem.Set{}, problem.Errorf(problem.MalformedInput, "empty_set", "set %d reduces to the empty set", set.ID)
	}

	return problem.Set{ID: set.ID, Lits: out, Constant: constant}, nil
}
