// Package coordinator drives the joint fixpoint across the SAT kernel
// (internal/sat) and its registered theory modules (internal/agg,
// internal/id, internal/fd), per spec §4.4. It owns module registration and
// priorities, the newDecisionLevel/notify_backtrack broadcasts, and the
// top-level search loop (decide, propagate to joint fixpoint, analyze,
// backjump) that internal/sat's own Solve only performs for plain CNF.
package coordinator

import "github.com/rhartert/satid/internal/sat"

// Module is the interface every theory propagator implements to be
// registered with a Coordinator, matching spec §4.4's module contract:
//
//	propagate(literal)                 // incremental, per assignment
//	propagate_fixpoint() -> Ok|Conflict // called at SAT fixpoint
//	explain(literal) -> clause
//	notify_new_decision_level()
//	notify_backtrack(level)
//	relocate(old_arena -> new_arena)
//
// internal/agg.Propagator and internal/id.Propagator both implement it.
type Module interface {
	sat.TheoryExplainer
	sat.Relocatable

	// ModuleID reports the ModuleID this module tags its theory
	// antecedents with, so the Coordinator can route Explain calls back
	// to it.
	ModuleID() sat.ModuleID

	// Propagate reacts to l having just been assigned true, returning a
	// conflict reason (first literal l, the rest false) or nil.
	Propagate(l sat.Literal) []sat.Literal

	// OnUnassign reacts to l being undone by a backtrack.
	OnUnassign(l sat.Literal)

	// PropagateFixpoint runs once the SAT kernel and every module's
	// Propagate calls have jointly quiesced, for checks that are cheaper
	// to run once per fixpoint than once per literal. It returns a
	// conflict reason or nil.
	PropagateFixpoint() []sat.Literal

	// NotifyNewDecisionLevel reacts to the coordinator opening a new
	// decision level, before the decision literal itself is enqueued.
	NotifyNewDecisionLevel()

	// NotifyBacktrack reacts to the coordinator backtracking to level.
	// The coordinator has already called OnUnassign (in reverse trail
	// order) for every literal above level by the time this is called.
	NotifyBacktrack(level int)
}
