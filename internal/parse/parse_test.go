package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instance.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	return path
}

func TestLoadCNF(t *testing.T) {
	path := writeFile(t, "c comment\np cnf 3 2\n1 2 3 0\n-1 -2 0\n")

	var got []sat.Var
	var clauses [][]sat.Literal
	b := fakeBuilder{
		addVariable: func() sat.Var {
			v := sat.Var(len(got))
			got = append(got, v)
			return v
		},
		addClause: func(lits []sat.Literal) error {
			clauses = append(clauses, append([]sat.Literal(nil), lits...))
			return nil
		},
	}

	if err := LoadCNF(path, false, b); err != nil {
		t.Fatalf("LoadCNF() error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d variables, want 3", len(got))
	}
	want := [][]sat.Literal{
		{sat.PositiveLiteral(0), sat.PositiveLiteral(1), sat.PositiveLiteral(2)},
		{sat.NegativeLiteral(0), sat.NegativeLiteral(1)},
	}
	if diff := cmp.Diff(want, clauses); diff != "" {
		t.Errorf("clauses mismatch (-want +got):\n%s", diff)
	}
}

type fakeBuilder struct {
	addVariable func() sat.Var
	addClause   func([]sat.Literal) error
}

func (f fakeBuilder) AddVariable() sat.Var           { return f.addVariable() }
func (f fakeBuilder) AddClause(l []sat.Literal) error { return f.addClause(l) }

func TestLoadExtended_RoundTrip(t *testing.T) {
	src := "" +
		"p cnf 4 1\n" +
		"1 2 0\n" +
		"r 3 1 1 -2 0\n" +
		"s 0 1 2 2 3 0\n" +
		"a 4 sum ub 3 compl 0 0\n"

	path := writeFile(t, src)
	p, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if p.NumVars != 4 {
		t.Errorf("NumVars = %d, want 4", p.NumVars)
	}
	if len(p.Clauses) != 1 || len(p.Rules) != 1 || len(p.Sets) != 1 || len(p.Aggregates) != 1 {
		t.Fatalf("unexpected shape: %+v", p)
	}
	if !p.Rules[0].Conjunctive {
		t.Errorf("rule should be conjunctive")
	}
	if p.Aggregates[0].Kind != problem.Sum {
		t.Errorf("aggregate kind = %v, want Sum", p.Aggregates[0].Kind)
	}
	if p.Aggregates[0].Sign != problem.UpperBound {
		t.Errorf("aggregate sign = %v, want UpperBound", p.Aggregates[0].Sign)
	}

	// Dump then reload, and check the structural content is stable.
	dumpPath := filepath.Join(t.TempDir(), "dump.txt")
	f, err := os.Create(dumpPath)
	if err != nil {
		t.Fatalf("create dump file: %v", err)
	}
	if err := Dump(f, p); err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	f.Close()

	reloaded, err := Load(dumpPath, false)
	if err != nil {
		t.Fatalf("reload dumped file: %v", err)
	}
	if diff := cmp.Diff(p, reloaded); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_RejectsNegativeWeight(t *testing.T) {
	path := writeFile(t, "p cnf 2 0\ns 0 1 -2 0\n")
	_, err := Load(path, false)
	if err == nil {
		t.Fatalf("Load() want error for negative weight, got nil")
	}
}

func TestLoad_RejectsMissingHeader(t *testing.T) {
	path := writeFile(t, "1 2 0\n")
	_, err := Load(path, false)
	if err == nil {
		t.Fatalf("Load() want error for missing header, got nil")
	}
}
