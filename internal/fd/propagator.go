package fd

import (
	"sort"

	"github.com/rhartert/satid/internal/sat"
)

// allDifferentConstraint is one posted all-different constraint.
type allDifferentConstraint struct {
	vars []*IntVar
}

// Propagator owns every all-different constraint posted against it. Bound
// changes on an IntVar are cheap to notice (Propagate) but expensive to act
// on correctly (a Hall-interval scan needs every variable's current bounds
// at once), so consistency is only recomputed at PropagateFixpoint, with a
// full rescan of every constraint each time.
type Propagator struct {
	solver   *sat.Solver
	allDiffs []*allDifferentConstraint
	dirty    bool
	reasons  [][]sat.Literal
}

// NewPropagator returns an empty finite-domain propagator over s. Post
// constraints with AddAllDifferent before registering it with a
// coordinator.Coordinator.
func NewPropagator(s *sat.Solver) *Propagator {
	return &Propagator{solver: s}
}

// AddAllDifferent posts a pairwise-distinct constraint over vars, enforced
// by Hall-interval bounds consistency each fixpoint (spec §4.6).
func (p *Propagator) AddAllDifferent(vars ...*IntVar) {
	p.allDiffs = append(p.allDiffs, &allDifferentConstraint{vars: append([]*IntVar(nil), vars...)})
	p.dirty = true
}

func (p *Propagator) ModuleID() sat.ModuleID { return sat.ModuleFiniteDomain }

// bound is one variable's current [lb,ub] window, captured once per
// fixpoint pass so the Hall-interval scan sees a consistent snapshot.
type bound struct {
	v      *IntVar
	lb, ub int
}

// propagateAllDifferent runs one Hall-interval bounds-consistency pass over
// c: for every interval [lo,hi] spanned by the constraint's own bounds, if
// more variables have their whole domain inside [lo,hi] than the interval
// has room for, that is a conflict; if exactly as many fit as there is
// room, every other variable overlapping [lo,hi] has that overlap pruned
// away. This is the textbook (not Lopez-Ortiz-optimal) formulation of Hall
// interval propagation: correct, just not the fastest incremental version.
func (p *Propagator) propagateAllDifferent(c *allDifferentConstraint) []sat.Literal {
	s := p.solver
	bs := make([]bound, len(c.vars))
	breaks := make(map[int]bool, 2*len(c.vars))
	for i, v := range c.vars {
		lb, ub := v.LB(s), v.UB(s)
		bs[i] = bound{v: v, lb: lb, ub: ub}
		breaks[lb] = true
		breaks[ub+1] = true
	}
	points := make([]int, 0, len(breaks))
	for k := range breaks {
		points = append(points, k)
	}
	sort.Ints(points)

	for _, lo := range points {
		for _, hiPlus1 := range points {
			hi := hiPlus1 - 1
			if hi < lo {
				continue
			}
			size := hi - lo + 1

			var inside []bound
			for _, b := range bs {
				if b.lb >= lo && b.ub <= hi {
					inside = append(inside, b)
				}
			}
			if len(inside) == 0 {
				continue
			}
			if len(inside) > size {
				return p.hallReason(inside, lo, hi, sat.LiteralNone)
			}
			if len(inside) != size {
				continue
			}
			for _, b := range bs {
				if b.lb >= lo && b.ub <= hi {
					continue // member of the Hall set itself
				}
				var forced sat.Literal
				switch {
				case b.lb >= lo && b.lb <= hi && b.ub > hi:
					// overlaps the Hall interval from below: must be >= hi+1.
					forced = b.v.geLit(hi + 1)
				case b.ub >= lo && b.ub <= hi && b.lb < lo:
					// overlaps from above: must be <= lo-1.
					forced = b.v.leLit(lo - 1)
				default:
					continue
				}
				// forced cannot already be False here: that would mean b's
				// own [lb,ub] (read moments ago, in this same pass) already
				// satisfied the opposite condition, contradicting the case
				// above. It may already be True (nothing to do) or Unknown
				// (propagate it).
				if s.LitValue(forced) == sat.True {
					continue
				}
				reason := p.hallReason(inside, lo, hi, forced)
				tag := int32(len(p.reasons))
				p.reasons = append(p.reasons, reason)
				s.Enqueue(forced, sat.TheoryAntecedent(sat.ModuleFiniteDomain, tag))
			}
		}
	}
	return nil
}

// hallReason builds the reason clause witnessing that inside's variables
// are all confined to [lo,hi]: the negation of each member's current
// bounding literals, with head prepended when this is a forced propagation
// (head == sat.LiteralNone for a direct conflict, where the clause is
// already false in full and needs no distinguished head).
func (p *Propagator) hallReason(inside []bound, lo, hi int, head sat.Literal) []sat.Literal {
	var reason []sat.Literal
	if head != sat.LiteralNone {
		reason = append(reason, head)
	}
	for _, b := range inside {
		if lo > b.v.Min {
			reason = append(reason, b.v.geLit(lo).Opposite())
		}
		if hi < b.v.Max {
			reason = append(reason, b.v.leLit(hi).Opposite())
		}
	}
	return reason
}

// Propagate defers the actual consistency check to PropagateFixpoint; it
// only records that something changed.
func (p *Propagator) Propagate(l sat.Literal) []sat.Literal {
	p.dirty = true
	return nil
}

// OnUnassign needs no bookkeeping: LB/UB are read live from the trail on
// every call, never cached across a backtrack.
func (p *Propagator) OnUnassign(l sat.Literal) {}

// PropagateFixpoint runs Hall-interval consistency over every posted
// all-different constraint once per joint fixpoint.
func (p *Propagator) PropagateFixpoint() []sat.Literal {
	if !p.dirty {
		return nil
	}
	p.dirty = false
	for _, c := range p.allDiffs {
		if reason := p.propagateAllDifferent(c); reason != nil {
			return reason
		}
	}
	return nil
}

// NotifyNewDecisionLevel needs no bookkeeping of its own.
func (p *Propagator) NotifyNewDecisionLevel() {}

// NotifyBacktrack re-arms a fixpoint rescan, since a relaxed bound can
// un-trigger (or newly trigger) a Hall interval.
func (p *Propagator) NotifyBacktrack(level int) {
	p.dirty = true
}

// Explain implements sat.TheoryExplainer for Hall-interval-caused literals.
func (p *Propagator) Explain(module sat.ModuleID, tag int32, l sat.Literal) []sat.Literal {
	return append([]sat.Literal(nil), p.reasons[tag]...)
}

// Relocate is a no-op: p.reasons holds literals, never ClauseRefs.
func (p *Propagator) Relocate(mapping map[sat.ClauseRef]sat.ClauseRef) {}
