package optimize

import (
	"testing"

	"github.com/rhartert/satid/internal/agg"
	"github.com/rhartert/satid/internal/coordinator"
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// TestMinimizeSum_FindsSmallestReachableValue builds three literals with
// weights 5, 3, 2, at least one of which must hold, feeding a SUM aggregate
// whose head represents "sum <= bound" (spec §4.2's minimization shape):
// each model's sum is read off and the bound tightened to value-1, so the
// driver converges on the cheapest way to satisfy "at least one of a,b,c",
// which is c alone (weight 2).
func TestMinimizeSum_FindsSmallestReachableValue(t *testing.T) {
	s := sat.NewDefaultSolver()
	a := s.NewVariable(false, true)
	b := s.NewVariable(false, true)
	c := s.NewVariable(false, true)
	head := s.NewVariable(false, true)

	if err := s.AddClause([]sat.Literal{sat.PositiveLiteral(a), sat.PositiveLiteral(b), sat.PositiveLiteral(c)}); err != nil {
		t.Fatalf("AddClause() error: %v", err)
	}

	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		{Lit: sat.PositiveLiteral(a), Weight: 5},
		{Lit: sat.PositiveLiteral(b), Weight: 3},
		{Lit: sat.PositiveLiteral(c), Weight: 2},
	}}
	aggregate := problem.Aggregate{
		ID: 0, Head: sat.PositiveLiteral(head), Kind: problem.Sum,
		Sign: problem.UpperBound, Bound: 10, SetID: 0, DefiningID: -1,
	}
	prop, err := agg.NewPropagator(s, []problem.Set{set}, []problem.Aggregate{aggregate})
	if err != nil {
		t.Fatalf("agg.NewPropagator() error: %v", err)
	}

	coord := coordinator.New(s)
	coord.Register(prop, 0)

	assumptions := []sat.Literal{sat.PositiveLiteral(head)}
	result := MinimizeSum(coord, prop, 0, assumptions, coordinator.DefaultSolveOptions)

	if !result.Found {
		t.Fatalf("MinimizeSum() found no model")
	}
	if result.Value != 2 {
		t.Errorf("MinimizeSum() value = %d, want 2", result.Value)
	}
	if !result.Best.Model[c] || result.Best.Model[a] || result.Best.Model[b] {
		t.Errorf("best model a=%v b=%v c=%v, want only c", result.Best.Model[a], result.Best.Model[b], result.Best.Model[c])
	}
}

// TestSubsetMinimize_RecoversFromConflictingCandidate drives SubsetMinimize
// over a 3-literal clause plus an unrelated fourth candidate: negating a
// and b in turn stays satisfiable (c can still cover the clause), but
// negating c too is a direct conflict against the already-propagated unit
// fact "c must be true" — the exact already-forced-assumption path that
// must leave the coordinator backtracked to a clean root before the next
// candidate (d, unrelated to the clause) is probed. A coordinator that
// fails to backtrack after that conflict would carry a stray elevated
// decision level into the d trial and either mis-solve it or never
// complete.
func TestSubsetMinimize_RecoversFromConflictingCandidate(t *testing.T) {
	s := sat.NewDefaultSolver()
	a := s.NewVariable(false, true)
	b := s.NewVariable(false, true)
	c := s.NewVariable(false, true)
	d := s.NewVariable(false, true)

	if err := s.AddClause([]sat.Literal{sat.PositiveLiteral(a), sat.PositiveLiteral(b), sat.PositiveLiteral(c)}); err != nil {
		t.Fatalf("AddClause() error: %v", err)
	}

	coord := coordinator.New(s)
	candidates := []sat.Literal{
		sat.PositiveLiteral(a),
		sat.PositiveLiteral(b),
		sat.PositiveLiteral(c),
		sat.PositiveLiteral(d),
	}
	res := SubsetMinimize(coord, nil, candidates, coordinator.DefaultSolveOptions)

	if res.Status != coordinator.StatusSat {
		t.Fatalf("SubsetMinimize() status = %v, want StatusSat", res.Status)
	}
	if res.Model[a] || res.Model[b] || res.Model[d] {
		t.Errorf("model a=%v b=%v d=%v, want all false", res.Model[a], res.Model[b], res.Model[d])
	}
	if !res.Model[c] {
		t.Errorf("model c = false, want true (only literal left to satisfy the clause)")
	}

	// The coordinator must be left at a clean root: a further Solve call
	// (no assumptions at all) must still succeed rather than inherit a
	// stray decision level from the rejected c trial.
	again := coord.Solve(nil, coordinator.DefaultSolveOptions)
	if again.Status != coordinator.StatusSat {
		t.Fatalf("Solve() after SubsetMinimize status = %v, want StatusSat", again.Status)
	}
}
