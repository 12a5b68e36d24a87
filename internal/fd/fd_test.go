package fd

import (
	"testing"

	"github.com/rhartert/satid/internal/coordinator"
	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// TestAllDifferent_FindsPermutation checks that three variables each ranging
// over {0,1,2} under an all-different constraint can only be solved by some
// permutation of 0,1,2 (no value repeats).
func TestAllDifferent_FindsPermutation(t *testing.T) {
	s := sat.NewDefaultSolver()
	vars := make([]*IntVar, 3)
	for i := range vars {
		v, err := NewIntVar(s, 0, 2)
		if err != nil {
			t.Fatalf("NewIntVar() error: %v", err)
		}
		vars[i] = v
	}

	p := NewPropagator(s)
	p.AddAllDifferent(vars...)

	c := coordinator.New(s)
	c.Register(p, 0)

	res := c.Solve(nil, coordinator.DefaultSolveOptions)
	if res.Status != coordinator.StatusSat {
		t.Fatalf("Solve() status = %v, want StatusSat", res.Status)
	}

	seen := map[int]bool{}
	for _, v := range vars {
		val := valueOf(s, v)
		if seen[val] {
			t.Fatalf("value %d assigned to more than one variable", val)
		}
		seen[val] = true
	}
}

// TestAllDifferent_OverconstrainedIsUnsat checks that four variables each
// ranging over only {0,1,2} cannot all be pairwise distinct (pigeonhole).
func TestAllDifferent_OverconstrainedIsUnsat(t *testing.T) {
	s := sat.NewDefaultSolver()
	vars := make([]*IntVar, 4)
	for i := range vars {
		v, err := NewIntVar(s, 0, 2)
		if err != nil {
			t.Fatalf("NewIntVar() error: %v", err)
		}
		vars[i] = v
	}

	p := NewPropagator(s)
	p.AddAllDifferent(vars...)

	c := coordinator.New(s)
	c.Register(p, 0)

	res := c.Solve(nil, coordinator.DefaultSolveOptions)
	if res.Status != coordinator.StatusUnsat {
		t.Fatalf("Solve() status = %v, want StatusUnsat (pigeonhole)", res.Status)
	}
}

// TestLinearSum_ForcesHeadOnPropagation checks that x+y>=8 (reified against
// head) is forced true as soon as x>=5 and y>=5 are assumed, since 5+5=10
// already meets the bound regardless of how the rest of the search goes.
func TestLinearSum_ForcesHeadOnPropagation(t *testing.T) {
	s := sat.NewDefaultSolver()
	x, err := NewIntVar(s, 0, 5)
	if err != nil {
		t.Fatalf("NewIntVar(x) error: %v", err)
	}
	y, err := NewIntVar(s, 0, 5)
	if err != nil {
		t.Fatalf("NewIntVar(y) error: %v", err)
	}
	head := s.NewVariable(false, true)

	sumProp, err := LinearSum(s, []int64{1, 1}, []*IntVar{x, y}, problem.LowerBound, 8, sat.PositiveLiteral(head))
	if err != nil {
		t.Fatalf("LinearSum() error: %v", err)
	}

	c := coordinator.New(s)
	c.Register(sumProp, 0)

	assumptions := []sat.Literal{x.geLit(5), y.geLit(5)}
	res := c.Solve(assumptions, coordinator.DefaultSolveOptions)
	if res.Status != coordinator.StatusSat {
		t.Fatalf("Solve() status = %v, want StatusSat", res.Status)
	}
	if !res.Model[head] {
		t.Errorf("head = false, want true (5+5 >= 8)")
	}
}

// TestAllDifferent_SelfPairIsUnsat checks that posing v_i != v_j for every
// pair including i==j (so each variable is required to differ from itself)
// is immediately unsatisfiable, regardless of domain width: a single
// variable can never be Hall-interval-consistent with itself once counted
// twice against a one-wide interval covering its own singleton value.
func TestAllDifferent_SelfPairIsUnsat(t *testing.T) {
	s := sat.NewDefaultSolver()
	vars := make([]*IntVar, 3)
	for i := range vars {
		v, err := NewIntVar(s, 1, 3)
		if err != nil {
			t.Fatalf("NewIntVar() error: %v", err)
		}
		vars[i] = v
	}

	p := NewPropagator(s)
	// Pose every pair, including each variable against itself, the way S3
	// poses all 9 i,j pairs over 3 variables rather than the usual 3
	// distinct unordered pairs.
	for i := range vars {
		for j := range vars {
			p.AddAllDifferent(vars[i], vars[j])
		}
	}

	c := coordinator.New(s)
	c.Register(p, 0)

	res := c.Solve(nil, coordinator.DefaultSolveOptions)
	if res.Status != coordinator.StatusUnsat {
		t.Fatalf("Solve() status = %v, want StatusUnsat (self-pair)", res.Status)
	}
}

// valueOf reads the value an IntVar settled on in a satisfying assignment:
// the smallest k whose "x<=k" literal is true.
func valueOf(s *sat.Solver, v *IntVar) int {
	return v.UB(s)
}
