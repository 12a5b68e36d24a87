package agg

import (
	"testing"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

func newTestSolver(nVars int) (*sat.Solver, []sat.Var) {
	s := sat.NewDefaultSolver()
	vs := make([]sat.Var, nVars)
	for i := range vs {
		vs[i] = s.NewVariable(false, true)
	}
	return s, vs
}

// TestPropagateAggregate_SumUpperBound_ForcesHeadFalse checks that a SUM
// aggregate with sign UpperBound forces its head false as soon as the
// true-literal weight (cc) exceeds the bound.
func TestPropagateAggregate_SumUpperBound_ForcesHeadFalse(t *testing.T) {
	s, vs := newTestSolver(3)
	head := sat.PositiveLiteral(vs[0])
	a := sat.PositiveLiteral(vs[1])
	b := sat.PositiveLiteral(vs[2])

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		{Lit: a, Weight: 3},
		{Lit: b, Weight: 4},
	}}
	agg := problem.Aggregate{ID: 0, Head: head, Kind: problem.Sum, Sign: problem.UpperBound, Bound: 5, SetID: 0}

	p, err := NewPropagator(s, []problem.Set{set}, []problem.Aggregate{agg})
	if err != nil {
		t.Fatalf("NewPropagator() error: %v", err)
	}
	s.SetTheoryExplainer(p)

	s.NewDecisionLevel()
	if !s.Enqueue(a, sat.DecisionAntecedent) {
		t.Fatalf("Enqueue(a) failed")
	}
	if reason := p.OnAssign(a); reason != nil {
		t.Fatalf("OnAssign(a) unexpected conflict: %v", reason)
	}

	s.NewDecisionLevel()
	if !s.Enqueue(b, sat.DecisionAntecedent) {
		t.Fatalf("Enqueue(b) failed")
	}
	if reason := p.OnAssign(b); reason != nil {
		t.Fatalf("OnAssign(b) unexpected conflict: %v", reason)
	}

	if got := s.LitValue(head); got != sat.False {
		t.Errorf("head value = %v, want False (3+4=7 > bound 5)", got)
	}
}

// TestPropagateAggregate_SumLowerBound_ForcesHeadTrue mirrors the previous
// test for Sign LowerBound: cc reaching the bound forces the head true.
func TestPropagateAggregate_SumLowerBound_ForcesHeadTrue(t *testing.T) {
	s, vs := newTestSolver(3)
	head := sat.PositiveLiteral(vs[0])
	a := sat.PositiveLiteral(vs[1])
	b := sat.PositiveLiteral(vs[2])

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		{Lit: a, Weight: 3},
		{Lit: b, Weight: 4},
	}}
	agg := problem.Aggregate{ID: 0, Head: head, Kind: problem.Sum, Sign: problem.LowerBound, Bound: 5, SetID: 0}

	p, err := NewPropagator(s, []problem.Set{set}, []problem.Aggregate{agg})
	if err != nil {
		t.Fatalf("NewPropagator() error: %v", err)
	}
	s.SetTheoryExplainer(p)

	s.NewDecisionLevel()
	s.Enqueue(a, sat.DecisionAntecedent)
	p.OnAssign(a)
	s.NewDecisionLevel()
	s.Enqueue(b, sat.DecisionAntecedent)
	p.OnAssign(b)

	if got := s.LitValue(head); got != sat.True {
		t.Errorf("head value = %v, want True (3+4=7 >= bound 5)", got)
	}
}

// TestPropagateHeadToSet_ForcesRemainingLiteral checks the head-to-set
// direction: once the head is assigned and only one literal's value could
// flip the outcome, it gets forced.
func TestPropagateHeadToSet_ForcesRemainingLiteral(t *testing.T) {
	s, vs := newTestSolver(3)
	head := sat.PositiveLiteral(vs[0])
	a := sat.PositiveLiteral(vs[1])
	b := sat.PositiveLiteral(vs[2])

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		{Lit: a, Weight: 7},
		{Lit: b, Weight: 1},
	}}
	// UpperBound 6: once the head is true, a alone (weight 7) would push cc
	// past the bound while leaving cp within it if forced false -- the
	// textbook pivotal-literal case propagateHeadToSet exists for.
	agg := problem.Aggregate{ID: 0, Head: head, Kind: problem.Sum, Sign: problem.UpperBound, Bound: 6, SetID: 0}

	p, err := NewPropagator(s, []problem.Set{set}, []problem.Aggregate{agg})
	if err != nil {
		t.Fatalf("NewPropagator() error: %v", err)
	}
	s.SetTheoryExplainer(p)

	s.NewDecisionLevel()
	if !s.Enqueue(head, sat.DecisionAntecedent) {
		t.Fatalf("Enqueue(head) failed")
	}
	if reason := p.OnAssign(head); reason != nil {
		t.Fatalf("OnAssign(head) unexpected conflict: %v", reason)
	}

	if got := s.LitValue(a); got != sat.False {
		t.Errorf("a value = %v, want False (forced by head-to-set propagation)", got)
	}
	if got := s.LitValue(b); got != sat.Unknown {
		t.Errorf("b value = %v, want Unknown (its weight alone cannot cross the bound)", got)
	}
}

// TestPropagateAggregate_BoundaryCorrection exercises the SPAgg "+1"
// quirk flagged by spec §9: a set whose folded Constant exactly equals
// the aggregate's bound must not let the empty assignment (cc=cp=Constant)
// spuriously satisfy or violate an UpperBound aggregate on its own. This is
// the agg-level unit test mirroring scenario S1's boundary condition; the
// full multi-module S1 scenario lives in internal/coordinator.
func TestPropagateAggregate_BoundaryCorrection(t *testing.T) {
	s, vs := newTestSolver(2)
	head := sat.PositiveLiteral(vs[0])
	a := sat.PositiveLiteral(vs[1])

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{{Lit: a, Weight: 5}}}
	agg := problem.Aggregate{ID: 0, Head: head, Kind: problem.Sum, Sign: problem.UpperBound, Bound: 0, SetID: 0}

	p, err := NewPropagator(s, []problem.Set{set}, []problem.Aggregate{agg})
	if err != nil {
		t.Fatalf("NewPropagator() error: %v", err)
	}
	s.SetTheoryExplainer(p)

	ra := p.aggregates[0]
	if ra.set.constant != 0 {
		t.Fatalf("set constant = %d, want 0", ra.set.constant)
	}
	if ra.effectiveBound != ra.agg.Bound+1 {
		t.Errorf("effectiveBound = %d, want %d (Constant == Bound correction)", ra.effectiveBound, ra.agg.Bound+1)
	}

	// a unassigned: cc=0, cp=5. Bound is 0, effectiveBound is 1. cp=5 > 1
	// so the bound is not yet certain; cc=0 <= 1 so it's still possible.
	// head must remain unconstrained until a is assigned.
	if got := s.LitValue(head); got != sat.Unknown {
		t.Fatalf("head value = %v before any literal assigned, want Unknown", got)
	}

	s.NewDecisionLevel()
	s.Enqueue(a.Opposite(), sat.DecisionAntecedent)
	if reason := p.OnAssign(a.Opposite()); reason != nil {
		t.Fatalf("OnAssign(!a) unexpected conflict: %v", reason)
	}
	if got := s.LitValue(head); got != sat.True {
		t.Errorf("head value = %v, want True once a is false (cc=cp=0 <= effectiveBound 1)", got)
	}
}

func TestExplain_ReturnsFalsifiedReason(t *testing.T) {
	s, vs := newTestSolver(3)
	head := sat.PositiveLiteral(vs[0])
	a := sat.PositiveLiteral(vs[1])
	b := sat.PositiveLiteral(vs[2])

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		{Lit: a, Weight: 3},
		{Lit: b, Weight: 4},
	}}
	agg := problem.Aggregate{ID: 0, Head: head, Kind: problem.Sum, Sign: problem.UpperBound, Bound: 5, SetID: 0}

	p, err := NewPropagator(s, []problem.Set{set}, []problem.Aggregate{agg})
	if err != nil {
		t.Fatalf("NewPropagator() error: %v", err)
	}
	s.SetTheoryExplainer(p)

	s.NewDecisionLevel()
	s.Enqueue(a, sat.DecisionAntecedent)
	p.OnAssign(a)
	s.NewDecisionLevel()
	s.Enqueue(b, sat.DecisionAntecedent)
	p.OnAssign(b)

	if got := s.LitValue(head); got != sat.False {
		t.Fatalf("head value = %v, want False", got)
	}

	tag := encodeTag(agg.ID, BasedOnCC)
	reason := p.Explain(sat.ModuleAggregate, tag, head.Opposite())
	if len(reason) == 0 || reason[0] != head.Opposite() {
		t.Fatalf("Explain() = %v, want first literal %v", reason, head.Opposite())
	}
	for _, l := range reason[1:] {
		if s.LitValue(l) != sat.False {
			t.Errorf("Explain() reason literal %v not false", l)
		}
	}
}
