package id

import (
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// FrequencyPolicy selects when unfounded-set search runs, per spec §4.3.
type FrequencyPolicy int8

const (
	// Always runs unfounded-set search at every SAT fixpoint.
	Always FrequencyPolicy = iota
	// Adaptive runs search only on every skip-th OnAssign call (it counts
	// assigned literals, not decisions), doubling skip after a run with no
	// cycle source to search and halving it after a run that searched one.
	Adaptive
	// Lazy runs search only once a total assignment is reached (sound
	// only under stable semantics, not well-founded).
	Lazy
)

// loopFormulaThreshold is the |U|*|external| product above which a loop
// formula is compacted behind a fresh Tseitin atom instead of listing every
// external literal in each falsified member's antecedent.
const loopFormulaThreshold = 64

type justKind int8

const (
	justNone justKind = iota
	justLiteral
	justConjunctive
)

// justification records the current witness for a defined atom's truth:
// either a single disjunct that is not false, or (for a conjunctive rule)
// the fact that its entire body currently holds.
type justification struct {
	kind justKind
	lit  sat.Literal // meaningful iff kind == justLiteral
}

// findSupport looks for a witness that r's head is supported: a body
// literal that is not currently false and whose var (if the literal is
// positive) is not excluded. It is used both by the cycle-free
// initialization pass (where "excluded" means "not yet proven safe") and
// by unfounded-set search (where it means "a member of the current
// candidate set U").
func (p *Propagator) findSupport(r problem.Rule, excluded func(sat.Var) bool) (justification, bool) {
	if !r.Conjunctive {
		for _, l := range r.Body {
			if p.solver.LitValue(l) == sat.False {
				continue
			}
			if l.IsPositive() && excluded(l.VarID()) {
				continue
			}
			return justification{kind: justLiteral, lit: l}, true
		}
		return justification{}, false
	}
	for _, l := range r.Body {
		if p.solver.LitValue(l) == sat.False {
			return justification{}, false
		}
		if l.IsPositive() && excluded(l.VarID()) {
			return justification{}, false
		}
	}
	return justification{kind: justConjunctive}, true
}

// Propagator enforces the chosen semantics for a dependency graph of
// one-rule-per-head inductive definitions. EmitCompletion must have been
// called on the same rules before NewPropagator's cycle-free
// initialization pass runs, so that root-level unit facts are already
// reflected in the solver's trail.
type Propagator struct {
	solver *sat.Solver
	graph  *DependencyGraph

	tracked []sat.Var
	just    map[sat.Var]justification

	cycleSources    sat.VarSet
	cycleSourceList []sat.Var

	policy      FrequencyPolicy
	skip        int
	sinceUseful int

	loopFormulas [][]sat.Literal
}

// NewPropagator builds a Propagator over graph and runs the cycle-free
// initialization pass (spec §4.3 step 4), forcing any atom that remains
// unjustified false at the root.
func NewPropagator(solver *sat.Solver, graph *DependencyGraph, policy FrequencyPolicy) *Propagator {
	p := &Propagator{
		solver: solver,
		graph:  graph,
		just:   make(map[sat.Var]justification),
		policy: policy,
		skip:   1,
	}
	for v := range graph.rules {
		if graph.Tracked(v) {
			p.tracked = append(p.tracked, v)
		}
	}
	for i := 0; i < solver.NumVariables(); i++ {
		p.cycleSources.Expand()
	}
	p.initJustifications()
	return p
}

func (p *Propagator) ModuleID() sat.ModuleID { return sat.ModuleDefinition }

// initJustifications runs the BFS cycle-free pass: every atom that is not
// tracked (not on a positive loop) is trivially safe; safety then
// propagates to dependents whose rule becomes justifiable using only
// already-safe atoms. Any tracked atom that never becomes safe is forced
// false at the root.
func (p *Propagator) initJustifications() {
	n := p.solver.NumVariables()
	safe := make([]bool, n)
	trackedSet := make(map[sat.Var]bool, len(p.tracked))
	for _, v := range p.tracked {
		trackedSet[v] = true
	}

	queue := newBFSQueue()
	for v := 0; v < n; v++ {
		if !trackedSet[sat.Var(v)] {
			safe[v] = true
			queue.push(sat.Var(v))
		}
	}

	excluded := func(v sat.Var) bool { return !(int(v) < len(safe) && safe[v]) }

	for {
		v, ok := queue.pop()
		if !ok {
			break
		}
		for _, h := range p.graph.dependents[v] {
			if safe[h] {
				continue
			}
			r := p.graph.rules[h]
			if j, ok := p.findSupport(r, excluded); ok {
				safe[h] = true
				p.just[h] = j
				queue.push(h)
			}
		}
	}

	for _, v := range p.tracked {
		if !safe[v] {
			p.solver.AddClause([]sat.Literal{sat.PositiveLiteral(v).Opposite()})
		}
	}
}

// OnAssign reacts to l being newly pushed onto the trail: every tracked
// head that mentions VarID(l) in its body gets its justification
// rechecked, possibly marking it a cycle source; depending on the
// frequency policy, unfounded-set search then runs over the accumulated
// cycle sources.
func (p *Propagator) OnAssign(l sat.Literal) []sat.Literal {
	for _, h := range p.graph.dependents[l.VarID()] {
		if p.graph.Tracked(h) {
			p.recheckJustification(h)
		}
	}
	if !p.shouldRun() {
		return nil
	}
	return p.runUnfoundedSetSearch()
}

// OnUnassign restores justifications after l is undone by backtracking.
func (p *Propagator) OnUnassign(l sat.Literal) {
	for _, h := range p.graph.dependents[l.VarID()] {
		if p.graph.Tracked(h) {
			p.recheckJustification(h)
		}
	}
}

func (p *Propagator) shouldRun() bool {
	switch p.policy {
	case Always:
		return true
	case Lazy:
		return p.solver.NumAssigns() == p.solver.NumVariables()
	case Adaptive:
		p.sinceUseful++
		if p.sinceUseful < p.skip {
			return false
		}
		p.sinceUseful = 0
		return true
	default:
		return true
	}
}

func (p *Propagator) adjustSkip(useful bool) {
	if p.policy != Adaptive {
		return
	}
	if useful {
		if p.skip > 1 {
			p.skip /= 2
		}
	} else {
		p.skip *= 2
	}
}

func (p *Propagator) markCycleSource(h sat.Var) {
	if p.cycleSources.Contains(h) {
		return
	}
	p.cycleSources.Add(h)
	p.cycleSourceList = append(p.cycleSourceList, h)
}

// justificationHolds reports whether j still witnesses r's head under the
// current trail.
func (p *Propagator) justificationHolds(r problem.Rule, j justification) bool {
	switch j.kind {
	case justLiteral:
		return p.solver.LitValue(j.lit) != sat.False
	case justConjunctive:
		for _, l := range r.Body {
			if p.solver.LitValue(l) == sat.False {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// support looks for a body witness that is not currently false, per spec
// §4.3 step 1: preferring one whose positive var (if any) lies outside h's
// own positive SCC, since such a witness cannot itself be undermined by an
// unfounded set containing h. sameSCCOnly reports whether every witness
// found is confined to h's positive SCC -- the cycle-source condition.
func (p *Propagator) support(h sat.Var, r problem.Rule) (j justification, sameSCCOnly bool, ok bool) {
	if !r.Conjunctive {
		for _, l := range r.Body {
			if p.solver.LitValue(l) == sat.False {
				continue
			}
			external := !l.IsPositive() || !p.graph.SameSCC(h, l.VarID())
			if !ok {
				j, ok = justification{kind: justLiteral, lit: l}, true
				sameSCCOnly = !external
			}
			if external {
				return justification{kind: justLiteral, lit: l}, false, true
			}
		}
		return j, sameSCCOnly, ok
	}

	sameSCCOnly = true
	for _, l := range r.Body {
		if p.solver.LitValue(l) == sat.False {
			return justification{}, false, false
		}
		if l.IsPositive() && !p.graph.SameSCC(h, l.VarID()) {
			sameSCCOnly = false
		}
	}
	return justification{kind: justConjunctive}, sameSCCOnly, true
}

// recheckJustification verifies h's current justification is still valid;
// if not, it looks for a replacement, marking h a cycle source when only a
// same-positive-SCC replacement exists (or none at all).
func (p *Propagator) recheckJustification(h sat.Var) {
	r, ok := p.graph.Rule(h)
	if !ok {
		return
	}
	if cur, ok := p.just[h]; ok && p.justificationHolds(r, cur) {
		return
	}

	j, sameSCCOnly, ok := p.support(h, r)
	if !ok {
		delete(p.just, h)
		p.markCycleSource(h)
		return
	}
	p.just[h] = j
	if sameSCCOnly {
		p.markCycleSource(h)
	}
}

// runUnfoundedSetSearch drains the accumulated cycle sources, searching an
// unfounded set from each of them that is a rule head, and returns
// the first conflict reason found (nil if every search resolved cleanly).
func (p *Propagator) runUnfoundedSetSearch() []sat.Literal {
	sources := p.cycleSourceList
	p.cycleSourceList = nil
	p.cycleSources.Clear()

	useful := false
	for _, cs := range sources {
		if _, ok := p.graph.Rule(cs); !ok {
			continue
		}
		reason := p.searchFrom(cs)
		useful = true
		if reason != nil {
			p.adjustSkip(true)
			return reason
		}
	}
	p.adjustSkip(useful)
	return nil
}

// searchFrom computes an unfounded set rooted at cs per spec §4.3 step 2:
// grow a candidate set over the positive SCC, then shrink it to its
// greatest fixpoint by repeatedly releasing members that find a witness
// outside what remains. Whatever survives is unfounded; emitLoopFormula
// turns it into the corresponding clauses.
func (p *Propagator) searchFrom(cs sat.Var) []sat.Literal {
	var U []sat.Var
	inU := make(map[sat.Var]bool)
	add := func(v sat.Var) {
		if inU[v] {
			return
		}
		inU[v] = true
		U = append(U, v)
	}
	add(cs)

	// Phase 1: grow U to the full positive-SCC closure of atoms that could
	// possibly need a member of U to justify them. This is a conservative
	// superset: an atom only belongs here if it has a non-false positive
	// body literal reaching back into the same loop, without yet asking
	// whether that literal is itself justifiable.
	queue := newBFSQueue()
	queue.push(cs)
	for {
		v, ok := queue.pop()
		if !ok {
			break
		}
		r, ok := p.graph.Rule(v)
		if !ok {
			continue
		}
		for _, l := range r.Body {
			if !l.IsPositive() {
				continue
			}
			bv := l.VarID()
			if inU[bv] || p.solver.LitValue(l) == sat.False {
				continue
			}
			if !p.graph.Tracked(bv) || !p.graph.SameSCC(v, bv) {
				continue
			}
			add(bv)
			queue.push(bv)
		}
	}

	// Phase 2: shrink U to its greatest fixpoint. A member leaves U as soon
	// as it finds a witness among what currently remains outside U; this
	// can enable a previously-stuck member to find one in turn, so the
	// whole set is re-scanned until a full pass makes no change. What
	// survives is the genuinely unfounded set.
	for changed := true; changed; {
		changed = false
		for _, v := range U {
			if !inU[v] {
				continue
			}
			r, _ := p.graph.Rule(v)
			excluded := func(x sat.Var) bool { return inU[x] }
			if j, ok := p.findSupport(r, excluded); ok {
				p.just[v] = j
				inU[v] = false
				changed = true
			}
		}
	}

	var unfounded []sat.Var
	for _, v := range U {
		if inU[v] {
			unfounded = append(unfounded, v)
		}
	}
	if len(unfounded) == 0 {
		return nil
	}
	return p.emitLoopFormula(unfounded)
}

// emitLoopFormula builds the external-support clause ¬v ∨ ⋁(external) for
// every v in U (spec §4.3 step 3), compacting external behind a Tseitin
// atom when |U|*|external| crosses loopFormulaThreshold. If some v in U is
// currently true the formula is a conflict and is returned as the reason;
// otherwise every ¬v is enqueued with the formula as antecedent.
func (p *Propagator) emitLoopFormula(U []sat.Var) []sat.Literal {
	inU := make(map[sat.Var]bool, len(U))
	for _, v := range U {
		inU[v] = true
	}

	seen := make(map[sat.Literal]bool)
	var ext []sat.Literal
	var trueMembers []sat.Var
	for _, v := range U {
		if p.solver.LitValue(sat.PositiveLiteral(v)) == sat.True {
			trueMembers = append(trueMembers, v)
		}
		r, _ := p.graph.Rule(v)
		for _, l := range r.Body {
			if l.IsPositive() && inU[l.VarID()] {
				continue
			}
			if seen[l] {
				continue
			}
			seen[l] = true
			ext = append(ext, l)
		}
	}

	if len(U)*len(ext) > loopFormulaThreshold {
		ext = []sat.Literal{p.tseitinFor(ext)}
	}

	if len(trueMembers) > 0 {
		reason := make([]sat.Literal, 0, len(trueMembers)+len(ext))
		for _, v := range trueMembers {
			reason = append(reason, sat.NegativeLiteral(v))
		}
		reason = append(reason, ext...)
		return reason
	}

	for _, v := range U {
		clause := make([]sat.Literal, 0, len(ext)+1)
		clause = append(clause, sat.NegativeLiteral(v))
		clause = append(clause, ext...)
		tag := int32(len(p.loopFormulas))
		p.loopFormulas = append(p.loopFormulas, clause)
		p.solver.Enqueue(sat.NegativeLiteral(v), sat.TheoryAntecedent(sat.ModuleDefinition, tag))
	}
	return nil
}

// tseitinFor introduces a fresh non-decidable atom t with t <-> ⋁(ext),
// using the same clause shapes as EmitCompletion's disjunctive case. It is
// reached mid-search (emitLoopFormula runs from OnAssign at whatever
// decision level the search is at), so it uses AddLearntClause throughout
// instead of AddClause, which only accepts clauses at decision level 0.
//
// Every l in ext is already false when tseitinFor is called (ext is
// exactly the external literals emitLoopFormula found unable to justify
// U), which makes both clause shapes safe to learn immediately rather
// than merely recorded for later: the defining clause ¬t ∨ ext... is unit
// on ¬t, so listing ¬t first makes AddLearntClause's enqueue assign t to
// the value the current trail already implies. Each l -> t clause, listed
// ¬l-first, is already satisfied by ¬l, so its own "enqueue position 0"
// is a no-op against an already-true literal instead of forcing t.
func (p *Propagator) tseitinFor(ext []sat.Literal) sat.Literal {
	v := p.solver.NewVariable(false, false)
	t := sat.PositiveLiteral(v)

	long := make([]sat.Literal, 0, len(ext)+1)
	long = append(long, t.Opposite())
	long = append(long, ext...)
	p.solver.AddLearntClause(long)

	for _, l := range ext {
		p.solver.AddLearntClause([]sat.Literal{l.Opposite(), t})
	}
	return t
}

// Explain implements sat.TheoryExplainer for definition-caused literals.
func (p *Propagator) Explain(module sat.ModuleID, tag int32, l sat.Literal) []sat.Literal {
	return append([]sat.Literal(nil), p.loopFormulas[tag]...)
}

// Propagate implements coordinator.Module's per-literal hook by forwarding
// to OnAssign.
func (p *Propagator) Propagate(l sat.Literal) []sat.Literal { return p.OnAssign(l) }

// PropagateFixpoint implements coordinator.Module. Unfounded-set search
// already runs from Propagate under the configured FrequencyPolicy; there
// is no separate coarser pass to run here.
func (p *Propagator) PropagateFixpoint() []sat.Literal { return nil }

// NotifyNewDecisionLevel implements coordinator.Module. Justifications
// carry no per-level state of their own; recheckJustification is driven
// entirely by OnAssign/OnUnassign.
func (p *Propagator) NotifyNewDecisionLevel() {}

// NotifyBacktrack implements coordinator.Module. The coordinator calls
// OnUnassign for every undone literal itself, in reverse trail order,
// before invoking this; there is nothing additional to release.
func (p *Propagator) NotifyBacktrack(level int) {}

// Relocate implements sat.Relocatable. The definition propagator never
// retains a ClauseRef: loop formulas are kept as literal slices in
// p.loopFormulas and resolved on demand by Explain, so there is nothing to
// rewrite.
func (p *Propagator) Relocate(mapping map[sat.ClauseRef]sat.ClauseRef) {}
