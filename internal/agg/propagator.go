// Package agg implements the pseudo-Boolean aggregate propagator: SUM,
// PRODUCT, CARDINALITY, MIN, and MAX bounds over a weighted literal set,
// propagating head-from-set and set-from-head implications and constructing
// reasons for the SAT kernel's conflict analysis, per spec §4.2. It is
// grounded on internal/sat's Clause.Propagate two-watched-literal mechanics,
// generalized from Boolean clauses to weighted sets.
package agg

import (
	"github.com/rhartert/yagh"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// ReasonMode records which running bound (or both) justified a particular
// propagation, so that Explain can reconstruct a minimal reason clause
// instead of always citing the whole set.
type ReasonMode int8

const (
	BasedOnCC ReasonMode = iota
	BasedOnCP
	CCAndCP
)

// partialWatchThreshold is the literal count above which a SUM or
// CARDINALITY set is given the partially-watched discipline instead of
// watching every literal; PRODUCT/MIN/MAX always watch every literal since
// their combine has no cheap incremental inverse (see DESIGN.md).
const partialWatchThreshold = 8

// runtimeAggregate is one (head, sign, bound) bound over a runtimeSet.
type runtimeAggregate struct {
	agg problem.Aggregate
	set *runtimeSet

	// effectiveBound is agg.Bound after the SPAgg boundary correction:
	// when the set's Constant alone already equals the bound, the
	// original engine nudges the bound by one so that the empty
	// assignment's cc/cp does not spuriously straddle the comparison
	// (spec.md §9's flagged "SPAgg::propagate +1" quirk). See
	// DESIGN.md for the chosen direction of the correction.
	effectiveBound int64
}

// runtimeSet is one reduced weighted-literal set shared by every aggregate
// that references it, plus the running cc ("best-certain": weight of
// literals currently true, starting from Constant) and cp ("best-possible":
// weight of literals not currently false) bounds and the watch discipline
// state used to maintain them.
type runtimeSet struct {
	id       int
	kind     problem.AggregateKind
	comb     combiner
	lits     []problem.WeightedLiteral
	constant int64

	cc, cp int64

	// rescanOnChange is true for kinds without an incremental inverse
	// (PRODUCT/MIN/MAX): any relevant trail change triggers a full rescan
	// of the set rather than an O(1) incremental update.
	rescanOnChange bool

	// watched holds the indices into lits currently registered in the
	// propagator's var watch index. For a fully-watched set this is every
	// index; for a partially-watched SUM/CARDINALITY set it is the
	// len(lits)/2+1 heaviest literals (by descending weight), chosen once
	// per set and independent of any aggregate's bound.
	watched []int
	// reserve orders the unwatched indices by descending weight so that,
	// when a watch falls, the propagator can cheaply pick the next best
	// replacement (see spec §4.2's partially-watched discipline; ground:
	// internal/sat/ordering.go's use of github.com/rhartert/yagh). reserveLit
	// maps a reserve heap slot back to the lits index it stands for, the
	// same slot/elem indirection internal/sat/ordering.go uses for heapID.
	reserve    *yagh.IntMap[int64]
	reserveLit []int
}

// Propagator owns every runtime set and aggregate and maintains cc/cp
// incrementally as the SAT trail grows and shrinks. The coordinator calls
// OnAssign for every literal newly pushed onto the trail and OnUnassign (in
// reverse trail order) for every literal undone by a backtrack.
type Propagator struct {
	sets       []*runtimeSet
	setByID    map[int]*runtimeSet
	aggregates []*runtimeAggregate

	// varSets indexes, for each variable appearing in any set, the sets
	// that need to hear about its assignment.
	varSets map[sat.Var][]*runtimeSet

	solver *sat.Solver

	tmpReason []sat.Literal
}

// NewPropagator builds a Propagator over the given sets and aggregates,
// reducing every set per its referencing aggregates' kinds (spec's
// parse-time set-reduction pass) and choosing each set's watch discipline.
func NewPropagator(solver *sat.Solver, sets []problem.Set, aggregates []problem.Aggregate) (*Propagator, error) {
	p := &Propagator{
		solver:  solver,
		setByID: make(map[int]*runtimeSet, len(sets)),
		varSets: make(map[sat.Var][]*runtimeSet),
	}

	kindBySet := make(map[int]problem.AggregateKind, len(sets))
	for _, a := range aggregates {
		kindBySet[a.SetID] = a.Kind
	}

	for _, s := range sets {
		kind := kindBySet[s.ID]
		reduced, err := Reduce(s, kind)
		if err != nil {
			return nil, err
		}
		rs := &runtimeSet{
			id:             reduced.ID,
			kind:           kind,
			comb:           combinerFor(kind),
			lits:           reduced.Lits,
			constant:       reduced.Constant,
			rescanOnChange: !combinerFor(kind).incremental,
		}
		rs.cc, rs.cp = rs.rescan(solver)
		p.chooseWatches(rs)
		p.sets = append(p.sets, rs)
		p.setByID[rs.id] = rs
		for _, wl := range rs.lits {
			v := wl.Lit.VarID()
			p.varSets[v] = append(p.varSets[v], rs)
		}
	}

	for i, a := range aggregates {
		rs, ok := p.setByID[a.SetID]
		if !ok {
			return nil, problem.Errorf(problem.MalformedInput, "undeclared_set", "aggregate %d references undeclared set %d", i, a.SetID)
		}
		ra := &runtimeAggregate{agg: a, set: rs, effectiveBound: a.Bound}
		if rs.constant == a.Bound {
			ra.effectiveBound = a.Bound + 1
		}
		p.aggregates = append(p.aggregates, ra)

		// The head variable itself must also trigger this set's propagation
		// (the head-to-set direction in propagateHeadToSet only fires once
		// the head is known), even though it never appears in rs.lits.
		hv := a.Head.VarID()
		p.varSets[hv] = append(p.varSets[hv], rs)
	}

	return p, nil
}

// rescan recomputes cc/cp from scratch by scanning every literal's current
// value; used for PRODUCT/MIN/MAX (no incremental inverse) and once at
// construction for every kind.
func (rs *runtimeSet) rescan(s *sat.Solver) (cc, cp int64) {
	cc, cp = rs.constant, rs.constant
	for _, wl := range rs.lits {
		switch s.LitValue(wl.Lit) {
		case sat.True:
			cc = rs.comb.combine(cc, wl.Weight)
			cp = rs.comb.combine(cp, wl.Weight)
		case sat.Unknown:
			cp = rs.comb.combine(cp, wl.Weight)
		}
	}
	return cc, cp
}

// chooseWatches decides, for a freshly built set, which literal indices are
// actively watched.
func (p *Propagator) chooseWatches(rs *runtimeSet) {
	if rs.rescanOnChange || len(rs.lits) <= partialWatchThreshold {
		rs.watched = make([]int, len(rs.lits))
		for i := range rs.lits {
			rs.watched[i] = i
		}
		return
	}

	// Partially-watched SUM/CARDINALITY: watch the larger half of the
	// set's literals by weight (the ones most likely to single-handedly
	// cross a bound), and keep the rest in a reserve pool to swap in as
	// watches are exhausted. A set can be shared by several aggregates
	// with different bounds, so this split is bound-agnostic; a tighter,
	// per-aggregate slack-based budget is future work.
	order := make([]int, len(rs.lits))
	for i := range order {
		order[i] = i
	}
	// simple descending-weight selection sort is fine here: reduction
	// already bounds set sizes to what the solver can afford to scan once.
	for i := 0; i < len(order); i++ {
		best := i
		for j := i + 1; j < len(order); j++ {
			if rs.lits[order[j]].Weight > rs.lits[order[best]].Weight {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}

	watchBudget := len(order)/2 + 1
	if watchBudget > len(order) {
		watchBudget = len(order)
	}
	rs.watched = append([]int(nil), order[:watchBudget]...)

	rs.reserve = yagh.New[int64](0)
	rs.reserve.GrowBy(len(order) - watchBudget)
	rs.reserveLit = append([]int(nil), order[watchBudget:]...)
	for slot, idx := range rs.reserveLit {
		rs.reserve.Put(slot, -rs.lits[idx].Weight)
	}
}

// ModuleID lets the coordinator learn the ModuleID this propagator tags its
// antecedents with.
func (p *Propagator) ModuleID() sat.ModuleID { return sat.ModuleAggregate }

// OnAssign updates every set touched by l becoming true, propagating any
// consequence this triggers. It returns the conflicting reason (nil if
// none) exactly like sat.Solver.Propagate's ClauseRef return convention,
// translated to an explicit reason slice since theory conflicts have no
// arena-backed clause to point at.
func (p *Propagator) OnAssign(l sat.Literal) []sat.Literal {
	for _, rs := range p.varSets[l.VarID()] {
		if rs.rescanOnChange {
			rs.cc, rs.cp = rs.rescan(p.solver)
		} else {
			p.incrementalUpdate(rs, l)
		}
		if reason := p.propagateSet(rs); reason != nil {
			return reason
		}
	}
	return nil
}

// OnUnassign restores a set's bounds after l is undone by backtracking.
func (p *Propagator) OnUnassign(l sat.Literal) {
	for _, rs := range p.varSets[l.VarID()] {
		if rs.rescanOnChange {
			rs.cc, rs.cp = rs.rescan(p.solver)
		} else {
			p.incrementalUndo(rs, l)
		}
	}
}

func (p *Propagator) incrementalUpdate(rs *runtimeSet, l sat.Literal) {
	for _, wl := range rs.lits {
		if wl.Lit == l {
			rs.cc = rs.comb.combine(rs.cc, wl.Weight)
		} else if wl.Lit == l.Opposite() {
			rs.cp -= wl.Weight
		}
	}
}

func (p *Propagator) incrementalUndo(rs *runtimeSet, l sat.Literal) {
	for _, wl := range rs.lits {
		if wl.Lit == l {
			// Undoing an additive combine only works for SUM/CARDINALITY,
			// the only kinds that reach this path (rescanOnChange is false
			// for them); subtracting the weight exactly reverses the add.
			rs.cc -= wl.Weight
		} else if wl.Lit == l.Opposite() {
			rs.cp += wl.Weight
		}
	}
}

// propagateSet checks every aggregate over rs against its current cc/cp and
// enqueues any forced head or set literal, returning a conflict reason if
// one is found.
func (p *Propagator) propagateSet(rs *runtimeSet) []sat.Literal {
	for _, ra := range p.aggregates {
		if ra.set != rs {
			continue
		}
		if reason := p.propagateAggregate(ra); reason != nil {
			return reason
		}
	}
	return nil
}

func (p *Propagator) propagateAggregate(ra *runtimeAggregate) []sat.Literal {
	rs := ra.set
	bound := ra.effectiveBound
	headVal := p.solver.LitValue(ra.agg.Head)

	var certain, possible bool // certain: bound already forced true; possible: bound still reachable
	var certainMode, impossibleMode ReasonMode
	switch ra.agg.Sign {
	case problem.UpperBound:
		certain = rs.cp <= bound  // cannot exceed bound even in the best case -> UB holds
		possible = rs.cc <= bound // not yet certainly violated
		certainMode, impossibleMode = BasedOnCP, BasedOnCC
	case problem.LowerBound:
		certain = rs.cc >= bound  // already reached bound -> LB holds
		possible = rs.cp >= bound // still reachable
		certainMode, impossibleMode = BasedOnCC, BasedOnCP
	}

	switch {
	case certain && headVal == sat.False:
		return p.reasonFor(ra, certainMode, ra.agg.Head)
	case !possible && headVal == sat.True:
		return p.reasonFor(ra, impossibleMode, ra.agg.Head.Opposite())
	case certain && headVal == sat.Unknown:
		p.enqueue(ra.agg.Head, ra, certainMode)
	case !possible && headVal == sat.Unknown:
		p.enqueue(ra.agg.Head.Opposite(), ra, impossibleMode)
	}

	if headVal == sat.Unknown {
		return nil
	}

	// head-to-set direction: once the head is fixed, any single remaining
	// unknown literal whose both values would otherwise leave the bound
	// undetermined only in one direction gets forced.
	return p.propagateHeadToSet(ra, headVal)
}

func (p *Propagator) propagateHeadToSet(ra *runtimeAggregate, headVal sat.LBool) []sat.Literal {
	rs := ra.set

	// Only the watched subset is scanned: a partially-watched set's
	// watched indices are, by construction, its largest-weight literals,
	// the only ones that could possibly flip the bound on their own. When
	// one of them turns out to already be assigned, pull a replacement
	// from the reserve pool (ordered by descending weight via yagh) so
	// the invariant is preserved for the next call.
	for i := 0; i < len(rs.watched); i++ {
		idx := rs.watched[i]
		wl := rs.lits[idx]

		if p.solver.LitValue(wl.Lit) != sat.Unknown {
			if rs.reserve != nil {
				if next, ok := rs.reserve.Pop(); ok {
					rs.watched[i] = rs.reserveLit[next.Elem]
				}
			}
			continue
		}

		ccIfTrue := rs.comb.combine(rs.cc, wl.Weight)
		cpIfFalse := rs.cp - wl.Weight
		if rs.rescanOnChange {
			// MIN/MAX/PRODUCT lack a cheap "what-if" probe; head-to-set
			// propagation for these kinds is left to the next rescan
			// triggered once the literal is actually assigned.
			continue
		}

		wantTrue, wantFalse := false, false
		switch ra.agg.Sign {
		case problem.UpperBound:
			if headVal == sat.True && ccIfTrue > ra.effectiveBound && cpIfFalse <= ra.effectiveBound {
				wantFalse = true
			}
			if headVal == sat.False && cpIfFalse <= ra.effectiveBound && ccIfTrue > ra.effectiveBound {
				wantTrue = true
			}
		case problem.LowerBound:
			if headVal == sat.True && cpIfFalse < ra.effectiveBound && ccIfTrue >= ra.effectiveBound {
				wantTrue = true
			}
			if headVal == sat.False && ccIfTrue >= ra.effectiveBound && cpIfFalse < ra.effectiveBound {
				wantFalse = true
			}
		}
		switch {
		case wantTrue:
			p.enqueue(wl.Lit, ra, CCAndCP)
		case wantFalse:
			p.enqueue(wl.Lit.Opposite(), ra, CCAndCP)
		}
	}
	return nil
}

// enqueue pushes a consequence onto the trail with a theory antecedent
// tagging this aggregate so Explain can reconstruct the reason later.
func (p *Propagator) enqueue(l sat.Literal, ra *runtimeAggregate, mode ReasonMode) {
	tag := encodeTag(ra.agg.ID, mode)
	p.solver.Enqueue(l, sat.TheoryAntecedent(sat.ModuleAggregate, tag))
}

func encodeTag(aggID int, mode ReasonMode) int32 {
	return int32(aggID)<<2 | int32(mode)
}

func decodeTag(tag int32) (aggID int, mode ReasonMode) {
	return int(tag >> 2), ReasonMode(tag & 0x3)
}

// reasonFor builds the reason clause for l being forced by ra under mode:
// the asserted literal first, then each set literal that justifies it in its
// currently-false form (a true literal negated, a false literal as is).
// CCAndCP, used for head-to-set propagation, also lists the head in its
// currently-false form and skips l's own variable.
func (p *Propagator) reasonFor(ra *runtimeAggregate, mode ReasonMode, l sat.Literal) []sat.Literal {
	p.tmpReason = p.tmpReason[:0]
	p.tmpReason = append(p.tmpReason, l)
	if mode == CCAndCP {
		h := ra.agg.Head
		if p.solver.LitValue(h) == sat.True {
			h = h.Opposite()
		}
		p.tmpReason = append(p.tmpReason, h)
	}
	for _, wl := range ra.set.lits {
		switch mode {
		case BasedOnCC:
			if p.solver.LitValue(wl.Lit) == sat.True {
				p.tmpReason = append(p.tmpReason, wl.Lit.Opposite())
			}
		case BasedOnCP:
			if p.solver.LitValue(wl.Lit) == sat.False {
				p.tmpReason = append(p.tmpReason, wl.Lit)
			}
		case CCAndCP:
			if wl.Lit.VarID() == l.VarID() {
				continue
			}
			switch p.solver.LitValue(wl.Lit) {
			case sat.True:
				p.tmpReason = append(p.tmpReason, wl.Lit.Opposite())
			case sat.False:
				p.tmpReason = append(p.tmpReason, wl.Lit)
			}
		}
	}
	return append([]sat.Literal(nil), p.tmpReason...)
}

// Explain implements sat.TheoryExplainer for aggregate-caused literals.
func (p *Propagator) Explain(module sat.ModuleID, tag int32, l sat.Literal) []sat.Literal {
	aggID, mode := decodeTag(tag)
	ra := p.aggregates[aggID]
	return p.reasonFor(ra, mode, l)
}

// CurrentValue returns the aggregate's set's current cc ("best-certain"
// running value), used by internal/optimize to read off the sum a model
// just achieved before tightening the bound below it.
func (p *Propagator) CurrentValue(aggID int) int64 {
	return p.aggregates[aggID].set.cc
}

// TightenBound lowers a SUM-kind aggregate's bound to newBound (used by
// internal/optimize between successive Solve calls to drive minimization)
// and re-checks propagation against the new bound immediately; cc/cp are
// left as they are.
func (p *Propagator) TightenBound(aggID int, newBound int64) []sat.Literal {
	ra := p.aggregates[aggID]
	ra.agg.Bound = newBound
	ra.effectiveBound = newBound
	if ra.set.constant == newBound {
		ra.effectiveBound = newBound + 1
	}
	return p.propagateAggregate(ra)
}

// Propagate implements coordinator.Module's per-literal hook by forwarding
// to OnAssign.
func (p *Propagator) Propagate(l sat.Literal) []sat.Literal { return p.OnAssign(l) }

// PropagateFixpoint implements coordinator.Module. The aggregate propagator
// is entirely driven by Propagate's incremental cc/cp maintenance; it has
// nothing left to check once every assigned literal has been processed.
func (p *Propagator) PropagateFixpoint() []sat.Literal { return nil }

// NotifyNewDecisionLevel implements coordinator.Module. cc/cp bounds carry
// no per-level state beyond what OnUnassign already restores on backtrack.
func (p *Propagator) NotifyNewDecisionLevel() {}

// NotifyBacktrack implements coordinator.Module. The coordinator calls
// OnUnassign for every undone literal itself, in reverse trail order,
// before invoking this; there is nothing additional to release.
func (p *Propagator) NotifyBacktrack(level int) {}

// Relocate implements sat.Relocatable. The aggregate propagator never
// retains a ClauseRef: every reason is recomputed on demand from cc/cp
// state in Explain, so there is nothing to rewrite.
func (p *Propagator) Relocate(mapping map[sat.ClauseRef]sat.ClauseRef) {}
