package agg

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

func wl(v int, sign bool, w int64) problem.WeightedLiteral {
	var l sat.Literal
	if sign {
		l = sat.PositiveLiteral(sat.Var(v))
	} else {
		l = sat.NegativeLiteral(sat.Var(v))
	}
	return problem.WeightedLiteral{Lit: l, Weight: w}
}

func TestReduce_SumBothsigns(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 5), wl(0, false, 2), wl(1, true, 3),
	}}
	got, err := Reduce(set, problem.Sum)
	if err != nil {
		t.Fatalf("Reduce() error: %v", err)
	}
	want := problem.Set{ID: 0, Constant: 2, Lits: []problem.WeightedLiteral{
		wl(0, true, 3), wl(1, true, 3),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_SumBothsigns_Equal(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 4), wl(0, false, 4), wl(1, true, 1),
	}}
	got, err := Reduce(set, problem.Sum)
	if err != nil {
		t.Fatalf("Reduce() error: %v", err)
	}
	want := problem.Set{ID: 0, Constant: 4, Lits: []problem.WeightedLiteral{
		wl(1, true, 1),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_MaxBothsigns(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 5), wl(0, false, 2), wl(1, true, 3),
	}}
	got, err := Reduce(set, problem.Max)
	if err != nil {
		t.Fatalf("Reduce() error: %v", err)
	}
	// Dominant literal (weight 5) kept at full weight; the floor folds
	// min(5,2)=2 into Constant, matching MAX's "lift the empty-set value"
	// rule.
	want := problem.Set{ID: 0, Constant: 2, Lits: []problem.WeightedLiteral{
		wl(0, true, 5), wl(1, true, 3),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_ProductBothsignsRejected(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 5), wl(0, false, 2),
	}}
	_, err := Reduce(set, problem.Product)
	if err == nil {
		t.Fatalf("Reduce() want error for PRODUCT bothsigns, got nil")
	}
}

func TestReduce_ProductZeroWeightRejected(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{wl(0, true, 0)}}
	_, err := Reduce(set, problem.Product)
	if err == nil {
		t.Fatalf("Reduce() want error for PRODUCT zero weight, got nil")
	}
}

func TestReduce_CoalesceDuplicateSameSign(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 3), wl(0, true, 4),
	}}
	got, err := Reduce(set, problem.Sum)
	if err != nil {
		t.Fatalf("Reduce() error: %v", err)
	}
	want := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{wl(0, true, 7)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce() mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_EmptySetRejected(t *testing.T) {
	set := problem.Set{ID: 0, Lits: []problem.WeightedLiteral{
		wl(0, true, 4), wl(0, false, 4),
	}}
	_, err := Reduce(set, problem.Sum)
	if err == nil {
		t.Fatalf("Reduce() want error for set reducing to empty, got nil")
	}
}
