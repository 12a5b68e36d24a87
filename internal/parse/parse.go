// Package parse reads and writes the extended DIMACS-like text format: a
// plain DIMACS CNF intake (delegated to github.com/rhartert/dimacs, as the
// teacher's parsers package does) extended with directive lines for
// inductive-definition rules, aggregate sets, and aggregates.
package parse

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	extdimacs "github.com/rhartert/dimacs"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// Builder receives the plain-clause subset of an intake file; it is
// implemented by anything that can grow a SAT instance one variable and one
// clause at a time.
type Builder interface {
	AddVariable() sat.Var
	AddClause(lits []sat.Literal) error
}

// SolverBuilder adapts *sat.Solver to Builder: every parsed variable becomes
// a plain decidable Boolean variable with polarity hint false, and every
// parsed clause is added at the root decision level.
type SolverBuilder struct {
	Solver *sat.Solver
}

func (b SolverBuilder) AddVariable() sat.Var {
	return b.Solver.NewVariable(false, true)
}

func (b SolverBuilder) AddClause(lits []sat.Literal) error {
	return b.Solver.AddClause(lits)
}

func openReader(filename string, gzipped bool) (io.ReadCloser, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	rc := io.ReadCloser(file)
	if gzipped {
		rc, err = gzip.NewReader(rc)
		if err != nil {
			return nil, err
		}
	}
	return rc, nil
}

// LoadCNF parses a plain DIMACS CNF file (no rule/set/aggregate directives)
// by delegating entirely to github.com/rhartert/dimacs, exactly as the
// teacher's parsers.LoadDIMACS does.
func LoadCNF(filename string, gzipped bool, b Builder) error {
	r, err := openReader(filename, gzipped)
	if err != nil {
		return fmt.Errorf("error reading file %q: %s", filename, err)
	}
	defer r.Close()

	adapter := &cnfBuilder{b: b}
	return extdimacs.ReadBuilder(r, adapter)
}

// cnfBuilder adapts Builder to dimacs.Builder, translating 1-based signed
// DIMACS literals to sat.Literal the same way parsers.builder.Clause does.
type cnfBuilder struct {
	b Builder
}

func (a *cnfBuilder) Problem(kind string, nVars int, nClauses int) error {
	if kind != "cnf" {
		return fmt.Errorf("parse: instance of type %q is not supported", kind)
	}
	for i := 0; i < nVars; i++ {
		a.b.AddVariable()
	}
	return nil
}

func (a *cnfBuilder) Clause(tmp []int) error {
	lits := make([]sat.Literal, len(tmp))
	for i, l := range tmp {
		lits[i] = dimacsToLiteral(l)
	}
	return a.b.AddClause(lits)
}

func (a *cnfBuilder) Comment(_ string) error { return nil }

func dimacsToLiteral(l int) sat.Literal {
	if l < 0 {
		return sat.NegativeLiteral(sat.Var(-l - 1))
	}
	return sat.PositiveLiteral(sat.Var(l - 1))
}

func literalToDimacs(l sat.Literal) int {
	n := int(l.VarID()) + 1
	if !l.IsPositive() {
		n = -n
	}
	return n
}

// Load parses the full extended format (p/clause/r/s/a lines) into a
// problem.Problem. Unlike LoadCNF it does not delegate to the
// github.com/rhartert/dimacs tokenizer, since that library has no notion of
// the 'r'/'s'/'a' directive lines; it instead hand-scans the file the way
// the teacher's internal/dimacs/dimacs.go does for the plain-CNF case, and
// dispatches each line by its leading token.
func Load(filename string, gzipped bool) (*problem.Problem, error) {
	r, err := openReader(filename, gzipped)
	if err != nil {
		return nil, fmt.Errorf("error reading file %q: %s", filename, err)
	}
	defer r.Close()

	p := &problem.Problem{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	sawHeader := false
	heads := map[sat.Literal]bool{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == 'c' {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "p":
			if len(fields) != 4 || fields[1] != "cnf" {
				return nil, problem.Errorf(problem.MalformedInput, "bad_header", "malformed header line %q", line)
			}
			nVars, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, problem.Errorf(problem.MalformedInput, "bad_header", "bad variable count: %w", err)
			}
			p.NumVars = nVars
			sawHeader = true
		case "r":
			rule, err := parseRule(fields[1:])
			if err != nil {
				return nil, err
			}
			if heads[rule.Head] {
				return nil, problem.Errorf(problem.MalformedInput, "duplicate_head", "rule head %d defined twice", literalToDimacs(rule.Head))
			}
			heads[rule.Head] = true
			rule.ID = len(p.Rules)
			p.Rules = append(p.Rules, rule)
		case "s":
			set, err := parseSet(fields[1:])
			if err != nil {
				return nil, err
			}
			p.Sets = append(p.Sets, set)
		case "a":
			agg, err := parseAggregate(fields[1:])
			if err != nil {
				return nil, err
			}
			agg.ID = len(p.Aggregates)
			p.Aggregates = append(p.Aggregates, agg)
		default:
			if !sawHeader {
				return nil, problem.Errorf(problem.MalformedInput, "missing_header", "clause line %q before problem header", line)
			}
			lits, err := parseIntLits(fields)
			if err != nil {
				return nil, err
			}
			p.Clauses = append(p.Clauses, lits)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !sawHeader {
		return nil, problem.Errorf(problem.MalformedInput, "missing_header", "no problem header found")
	}
	return p, nil
}

// parseIntLits parses a clause line's fields (which, unlike a directive
// line, carry no leading letter token) into literals, dropping the
// trailing 0.
func parseIntLits(fields []string) ([]sat.Literal, error) {
	lits := make([]sat.Literal, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, problem.Errorf(problem.MalformedInput, "bad_literal", "bad literal %q: %w", f, err)
		}
		if n == 0 {
			continue
		}
		lits = append(lits, dimacsToLiteral(n))
	}
	return lits, nil
}

// parseRule parses "<head> <conj 0|1> <body...> 0".
func parseRule(fields []string) (problem.Rule, error) {
	if len(fields) < 3 {
		return problem.Rule{}, problem.Errorf(problem.MalformedInput, "short_rule", "rule line too short")
	}
	head, err := strconv.Atoi(fields[0])
	if err != nil {
		return problem.Rule{}, problem.Errorf(problem.MalformedInput, "bad_literal", "bad rule head: %w", err)
	}
	conjInt, err := strconv.Atoi(fields[1])
	if err != nil {
		return problem.Rule{}, problem.Errorf(problem.MalformedInput, "bad_literal", "bad conjunctive flag: %w", err)
	}
	body, err := parseIntLits(fields[2:])
	if err != nil {
		return problem.Rule{}, err
	}
	return problem.Rule{
		Head:        dimacsToLiteral(head),
		Body:        body,
		Conjunctive: conjInt != 0,
	}, nil
}

// parseSet parses "<set-id> <lit> <weight> ... 0".
func parseSet(fields []string) (problem.Set, error) {
	if len(fields) < 1 {
		return problem.Set{}, problem.Errorf(problem.MalformedInput, "short_set", "set line too short")
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return problem.Set{}, problem.Errorf(problem.MalformedInput, "bad_literal", "bad set id: %w", err)
	}
	rest := fields[1:]
	var lits []problem.WeightedLiteral
	for i := 0; i < len(rest); i += 2 {
		l, err := strconv.Atoi(rest[i])
		if err != nil {
			return problem.Set{}, problem.Errorf(problem.MalformedInput, "bad_literal", "bad set literal: %w", err)
		}
		if l == 0 {
			break
		}
		if i+1 >= len(rest) {
			return problem.Set{}, problem.Errorf(problem.MalformedInput, "unpaired_weight", "set %d has an unpaired literal/weight", id)
		}
		w, err := strconv.ParseInt(rest[i+1], 10, 64)
		if err != nil {
			return problem.Set{}, problem.Errorf(problem.MalformedInput, "bad_weight", "bad weight for set %d: %w", id, err)
		}
		if w < 0 {
			return problem.Set{}, problem.Errorf(problem.MalformedInput, "negative_weight", "set %d: negative weight %d", id, w)
		}
		if w > problem.MaxWeight {
			return problem.Set{}, problem.Errorf(problem.MalformedInput, "weight_out_of_precision", "set %d: weight %d exceeds MaxWeight", id, w)
		}
		lits = append(lits, problem.WeightedLiteral{Lit: dimacsToLiteral(l), Weight: w})
	}
	if len(lits) == 0 {
		return problem.Set{}, problem.Errorf(problem.MalformedInput, "empty_set", "set %d is empty", id)
	}
	return problem.Set{ID: id, Lits: lits}, nil
}

var aggregateKinds = map[string]problem.AggregateKind{
	"sum":  problem.Sum,
	"prod": problem.Product,
	"card": problem.Cardinality,
	"min":  problem.Min,
	"max":  problem.Max,
}

var aggregateSemantics = map[string]problem.Semantics{
	"compl": problem.Completion,
	"def":   problem.Definitional,
	"impl":  problem.Implication,
}

// parseAggregate parses
// "<head> <kind> <sign> <bound> <sem> <set-id> [<defining-id>] 0".
func parseAggregate(fields []string) (problem.Aggregate, error) {
	if len(fields) < 6 {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "short_aggregate", "aggregate line too short")
	}
	head, err := strconv.Atoi(fields[0])
	if err != nil || head <= 0 {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_head", "aggregate head must be a positive literal")
	}
	kind, ok := aggregateKinds[fields[1]]
	if !ok {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_kind", "unknown aggregate kind %q", fields[1])
	}
	var sign problem.Sign
	switch fields[2] {
	case "ub":
		sign = problem.UpperBound
	case "lb":
		sign = problem.LowerBound
	default:
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_sign", "unknown sign %q", fields[2])
	}
	bound, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_bound", "bad bound: %w", err)
	}
	sem, ok := aggregateSemantics[fields[4]]
	if !ok {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_semantics", "unknown semantics %q", fields[4])
	}
	setID, err := strconv.Atoi(fields[5])
	if err != nil {
		return problem.Aggregate{}, problem.Errorf(problem.MalformedInput, "bad_set_id", "bad set id: %w", err)
	}
	// fields includes the line's trailing "0" terminator: 7 tokens means no
	// defining-id ("...<set-id> 0"), 8 means one is present
	// ("...<set-id> <defining-id> 0").
	definingID := -1
	if len(fields) >= 8 {
		if v, err := strconv.Atoi(fields[6]); err == nil {
			definingID = v
		}
	}
	return problem.Aggregate{
		Head:       dimacsToLiteral(head),
		Kind:       kind,
		Sign:       sign,
		Bound:      bound,
		Semantics:  sem,
		SetID:      setID,
		DefiningID: definingID,
	}, nil
}

// Dump writes p back out in the extended format, satisfying the round-trip
// law of "load(dump(p)) == p up to set/aggregate/rule reordering".
func Dump(w io.Writer, p *problem.Problem) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "p cnf %d %d\n", p.NumVars, len(p.Clauses))
	for _, c := range p.Clauses {
		for _, l := range c {
			fmt.Fprintf(bw, "%d ", literalToDimacs(l))
		}
		fmt.Fprintln(bw, "0")
	}
	for _, r := range p.Rules {
		conj := 0
		if r.Conjunctive {
			conj = 1
		}
		fmt.Fprintf(bw, "r %d %d", literalToDimacs(r.Head), conj)
		for _, l := range r.Body {
			fmt.Fprintf(bw, " %d", literalToDimacs(l))
		}
		fmt.Fprintln(bw, " 0")
	}
	for _, s := range p.Sets {
		fmt.Fprintf(bw, "s %d", s.ID)
		for _, wl := range s.Lits {
			fmt.Fprintf(bw, " %d %d", literalToDimacs(wl.Lit), wl.Weight)
		}
		fmt.Fprintln(bw, " 0")
	}
	for _, a := range p.Aggregates {
		sign := "ub"
		if a.Sign == problem.LowerBound {
			sign = "lb"
		}
		var kind string
		for k, v := range aggregateKinds {
			if v == a.Kind {
				kind = k
			}
		}
		var sem string
		for k, v := range aggregateSemantics {
			if v == a.Semantics {
				sem = k
			}
		}
		fmt.Fprintf(bw, "a %d %s %s %d %s %d", literalToDimacs(a.Head), kind, sign, a.Bound, sem, a.SetID)
		if a.DefiningID >= 0 {
			fmt.Fprintf(bw, " %d", a.DefiningID)
		}
		fmt.Fprintln(bw, " 0")
	}
	return bw.Flush()
}

// ParseModels parses a file of blank-line-separated models, each a sequence
// of signed 1-based literals terminated by 0, in the teacher's
// ParseModels/dimacs.ReadBuilder model-file convention.
func ParseModels(filename string) ([][]bool, error) {
	r, err := openReader(filename, false)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var models [][]bool
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		model := make([]bool, 0, len(fields))
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("error parsing literal %s: %w", f, err)
			}
			if n == 0 {
				continue
			}
			model = append(model, n > 0)
		}
		models = append(models, model)
	}
	return models, scanner.Err()
}
