package sat

// ModuleID identifies a registered theory module (aggregate propagator,
// definition propagator, finite-domain propagator, ...) to the SAT kernel.
// The kernel never dereferences a ModuleID itself; it only carries it inside
// an Antecedent so that conflict analysis can route an explanation request
// back to the owning module via a TheoryExplainer.
type ModuleID int8

// The well-known module IDs shared by every theory package, so that
// internal/agg, internal/id, and internal/fd can each tag their own
// TheoryAntecedents without the SAT kernel importing any of them.
const (
	ModuleAggregate ModuleID = iota
	ModuleDefinition
	ModuleFiniteDomain
)

// AntecedentKind distinguishes why a trail literal was asserted.
type AntecedentKind uint8

const (
	// AntecedentDecision marks a literal chosen by the search heuristic.
	AntecedentDecision AntecedentKind = iota
	// AntecedentClause marks a literal forced by unit propagation on a
	// clause owned by the SAT kernel's arena.
	AntecedentClause
	// AntecedentTheory marks a literal forced by a theory module outside
	// the SAT kernel (aggregate, definition, or finite-domain propagator).
	AntecedentTheory
)

// Antecedent records why a trail literal was asserted true. Exactly one of
// Clause (for AntecedentClause) or (Module, Tag) (for AntecedentTheory) is
// meaningful, selected by Kind.
type Antecedent struct {
	Kind   AntecedentKind
	Clause ClauseRef
	Module ModuleID
	Tag    int32
}

// DecisionAntecedent is the antecedent of every decision literal.
var DecisionAntecedent = Antecedent{Kind: AntecedentDecision, Clause: NilClauseRef}

// ClauseAntecedent builds the antecedent for a literal forced by the given
// clause.
func ClauseAntecedent(ref ClauseRef) Antecedent {
	return Antecedent{Kind: AntecedentClause, Clause: ref}
}

// TheoryAntecedent builds the antecedent for a literal forced by a theory
// module. tag is an opaque payload interpreted only by that module (e.g. an
// aggregate or rule id) and is handed back verbatim on Explain.
func TheoryAntecedent(module ModuleID, tag int32) Antecedent {
	return Antecedent{Kind: AntecedentTheory, Clause: NilClauseRef, Module: module, Tag: tag}
}

// TheoryExplainer resolves the reason for a literal asserted by a theory
// module. The SAT kernel calls it on demand during conflict analysis; it
// must never be called for a literal whose current antecedent is not
// AntecedentTheory. Implementations must return a clause (as a slice of
// literals) whose first literal is l and whose remaining literals are all
// false at the moment of the call, per spec invariant 3.
type TheoryExplainer interface {
	Explain(module ModuleID, tag int32, l Literal) []Literal
}
