// Package problem defines the data model shared by every component that
// reads or writes a problem instance: plain clauses, inductive-definition
// rules, pseudo-Boolean aggregate sets, and the aggregates themselves.
package problem

import "github.com/rhartert/satid/internal/sat"

// Semantics distinguishes why an aggregate was introduced.
type Semantics int8

const (
	// Completion means the aggregate participates in a Clark completion
	// equivalence (head <-> set constraint) with no inductive meaning.
	Completion Semantics = iota
	// Definitional means the aggregate's head is an inductively defined
	// atom, justified through internal/id's unfounded-set machinery.
	Definitional
	// Implication means only head -> set (or set -> head) holds, not the
	// full equivalence.
	Implication
)

func (s Semantics) String() string {
	switch s {
	case Completion:
		return "completion"
	case Definitional:
		return "definitional"
	case Implication:
		return "implication"
	default:
		return "unknown"
	}
}

// AggregateKind selects the combiner and bothsigns rule used to reduce an
// aggregate's set (see internal/agg).
type AggregateKind int8

const (
	Sum AggregateKind = iota
	Product
	Cardinality
	Min
	Max
)

func (k AggregateKind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Product:
		return "product"
	case Cardinality:
		return "cardinality"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "unknown"
	}
}

// Sign is the comparison direction of an aggregate's bound.
type Sign int8

const (
	UpperBound Sign = iota
	LowerBound
)

func (s Sign) String() string {
	if s == LowerBound {
		return "lb"
	}
	return "ub"
}

// WeightedLiteral is one element of an aggregate set: a literal paired with
// its non-negative contribution weight (weights are forbidden to be
// negative; PRODUCT additionally forbids zero).
type WeightedLiteral struct {
	Lit    sat.Literal
	Weight int64
}

// Set is an ordered, parse-time-reduced list of weighted literals shared by
// every aggregate that references it (aggregates reference sets by ID so
// that several bounds can reuse the same underlying weighted collection).
type Set struct {
	ID   int
	Lits []WeightedLiteral
	// Constant folds in the contribution from bothsigns-rule reduction and
	// from any literal fixed at parse time (see internal/agg's reduction
	// pass). It is per-(set,kind), since the same set ID can in principle
	// be reduced differently for different aggregate kinds.
	Constant int64
}

// Aggregate is a pseudo-Boolean bound over a Set, optionally tied to an
// inductive definition. The head is always a positive literal.
type Aggregate struct {
	ID         int
	Head       sat.Literal
	Kind       AggregateKind
	Sign       Sign
	Bound      int64
	Semantics  Semantics
	SetID      int
	// DefiningID is the rule or aggregate ID that this aggregate defines
	// the head for, when Semantics == Definitional. It is -1 otherwise.
	DefiningID int
}

// Rule is one inductive-definition rule: exactly one rule per defined atom.
// Body is conjunctive (all literals must hold) when Conjunctive is true,
// disjunctive (any one literal suffices) otherwise.
type Rule struct {
	ID          int
	Head        sat.Literal
	Body        []sat.Literal
	Conjunctive bool
}

// Problem is the fully parsed instance: the plain CNF clauses plus the
// inductive-definition and aggregate directives layered on top of it.
type Problem struct {
	NumVars    int
	Clauses    [][]sat.Literal
	Rules      []Rule
	Sets       []Set
	Aggregates []Aggregate
}
