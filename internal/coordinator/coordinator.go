package coordinator

import (
	"sort"
	"time"

	"github.com/rhartert/satid/internal/sat"
)

// registration pairs a Module with the priority it was registered under,
// lower values polled first by PropagateFixpoint.
type registration struct {
	module   Module
	priority int
}

// Coordinator drives the combined SAT + theory search loop described by
// spec §4.4, generalizing internal/sat.Solver.Solve (which only drives the
// plain CNF kernel) to poll registered theory modules to a joint fixpoint
// between decisions.
type Coordinator struct {
	solver *sat.Solver

	// regOrder holds every registered module in registration order. It is
	// the order used for the per-literal Propagate dispatch and, reversed,
	// for OnUnassign/NotifyBacktrack, per spec §4.4.
	regOrder []Module
	// byPriority holds the same modules sorted by ascending priority, the
	// order PropagateFixpoint is polled in.
	byPriority []registration
	byModuleID map[sat.ModuleID]Module

	// dispatched is the trail position up to which every registered
	// module has already received a Propagate call for that literal.
	dispatched int

	// baseVars is the variable count at construction time, i.e. before any
	// module can introduce an internal (Tseitin) variable at runtime.
	// Solve's returned model only covers variables below this count.
	baseVars int
}

// New returns a Coordinator driving s. Register every module before the
// first call to Solve; s must already hold the full problem (variables and
// root clauses) the modules were built against, since New captures the
// current variable count as the boundary between problem variables and any
// Tseitin auxiliary a module introduces later.
func New(s *sat.Solver) *Coordinator {
	c := &Coordinator{
		solver:     s,
		byModuleID: make(map[sat.ModuleID]Module),
		baseVars:   s.NumVariables(),
	}
	s.SetTheoryExplainer(c)
	return c
}

// Register adds m to the coordinator under the given propagate_fixpoint
// poll priority (lower runs first).
func (c *Coordinator) Register(m Module, priority int) {
	c.regOrder = append(c.regOrder, m)
	c.byModuleID[m.ModuleID()] = m
	c.byPriority = append(c.byPriority, registration{module: m, priority: priority})
	sort.SliceStable(c.byPriority, func(i, j int) bool {
		return c.byPriority[i].priority < c.byPriority[j].priority
	})
}

// Explain implements sat.TheoryExplainer by routing to the module that
// tagged the antecedent.
func (c *Coordinator) Explain(module sat.ModuleID, tag int32, l sat.Literal) []sat.Literal {
	m, ok := c.byModuleID[module]
	if !ok {
		panic("coordinator: Explain for an unregistered module")
	}
	return m.Explain(module, tag, l)
}

// newDecisionLevel opens a new decision level and broadcasts it to every
// module in registration order, per spec §4.4.
func (c *Coordinator) newDecisionLevel() {
	c.solver.NewDecisionLevel()
	for _, m := range c.regOrder {
		m.NotifyNewDecisionLevel()
	}
}

// backtrack undoes every assignment above level, notifying modules of each
// unassignment (and then of the backtrack itself) in reverse registration
// order before truncating the trail, per spec §4.4 and §5's ordering
// guarantee ("a module must release any antecedent it attached to literals
// falling above level before returning").
func (c *Coordinator) backtrack(level int) {
	boundary := c.solver.TrailBoundary(level)
	for i := c.solver.NumAssigns() - 1; i >= boundary; i-- {
		l := c.solver.TrailAt(i)
		for j := len(c.regOrder) - 1; j >= 0; j-- {
			c.regOrder[j].OnUnassign(l)
		}
	}
	for j := len(c.regOrder) - 1; j >= 0; j-- {
		c.regOrder[j].NotifyBacktrack(level)
	}
	c.solver.CancelUntil(level)
	if c.dispatched > boundary {
		c.dispatched = boundary
	}
}

// propagateJointFixpoint drives clause-watch propagation and every
// module's Propagate/PropagateFixpoint until nothing more can fire,
// returning the reason clause for a conflict (first literal the one that
// was falsified, the rest false at the time of the call) or nil.
//
// The outer loop models spec §4.4: "if any module propagates, the loop
// restarts at the SAT kernel". Per-literal Propagate calls are dispatched
// to every module, in registration order, as soon as a literal lands on
// the trail (including literals other modules themselves just enqueued);
// PropagateFixpoint is only polled, in priority order, once that per-
// literal dispatch has nothing left to deliver.
func (c *Coordinator) propagateJointFixpoint() []sat.Literal {
	for {
		if conflict := c.solver.Propagate(); conflict != sat.NilClauseRef {
			return c.solver.ExplainClauseConflict(conflict)
		}

		grew := false
		for c.dispatched < c.solver.NumAssigns() {
			l := c.solver.TrailAt(c.dispatched)
			c.dispatched++
			grew = true
			for _, m := range c.regOrder {
				if reason := m.Propagate(l); reason != nil {
					return reason
				}
			}
		}
		if grew {
			continue
		}

		progressed := false
		for _, r := range c.byPriority {
			if reason := r.module.PropagateFixpoint(); reason != nil {
				return reason
			}
			if c.dispatched < c.solver.NumAssigns() || c.solver.HasPendingPropagations() {
				progressed = true
				break
			}
		}
		if !progressed {
			return nil
		}
	}
}

func (c *Coordinator) visibleModel() []bool {
	model := make([]bool, c.baseVars)
	for i := range model {
		model[i] = c.solver.VarValue(sat.Var(i)) == sat.True
	}
	return model
}

// Solve runs the coordinated CDCL + theory search loop to completion,
// optionally under the given assumption literals, per spec §4.4/§6.2. It
// mirrors internal/sat.Solver.search's decide/propagate/analyze/backjump
// structure, replacing the plain-kernel-only Propagate call with
// propagateJointFixpoint and the plain CancelUntil with backtrack.
func (c *Coordinator) Solve(assumptions []sat.Literal, opts SolveOptions) Result {
	s := c.solver
	if s.IsUnsat() {
		return unsatResult(nil)
	}

	deadline := opts.deadline()
	for {
		if reason := c.propagateJointFixpoint(); reason != nil {
			if s.DecisionLevel() == 0 {
				return unsatResult(coreFrom(reason, assumptions))
			}
			learnt, backtrackLevel := s.Analyze(reason)
			c.backtrack(backtrackLevel)
			if !s.AddLearntClause(learnt) {
				return unsatResult(coreFrom(learnt, assumptions))
			}
			continue
		}

		if s.NumAssigns() == s.NumVariables() {
			model := c.visibleModel()
			c.backtrack(0)
			return satResult(model)
		}

		if opts.MaxConflicts >= 0 && s.Stats().Conflicts >= opts.MaxConflicts {
			return unknownResult()
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return unknownResult()
		}

		var next sat.Literal
		assumptionIdx := s.DecisionLevel()
		isAssumption := assumptionIdx < len(assumptions)
		if isAssumption {
			next = assumptions[assumptionIdx]
		} else {
			next = s.NextDecision()
		}
		if next == sat.LiteralNone {
			model := c.visibleModel()
			c.backtrack(0)
			return satResult(model)
		}

		c.newDecisionLevel()
		if !s.Enqueue(next, sat.DecisionAntecedent) {
			if isAssumption {
				core := append([]sat.Literal(nil), assumptions[:assumptionIdx+1]...)
				c.backtrack(0)
				return unsatResult(core)
			}
			c.backtrack(0)
			return unsatResult(nil)
		}
	}
}

// coreFrom restricts clause (a conflict or learnt clause, every literal of
// which is false under the current assignment) to the user's assumptions,
// per spec §6.2's "final conflict clause restricted to the user's
// assumptions (an unsat core)": a literal of clause is false exactly when
// its opposite was assigned, so an assumption whose opposite appears in
// clause is a member of the core.
func coreFrom(clause []sat.Literal, assumptions []sat.Literal) []sat.Literal {
	if len(clause) == 0 || len(assumptions) == 0 {
		return nil
	}
	assumed := make(map[sat.Literal]bool, len(assumptions))
	for _, a := range assumptions {
		assumed[a] = true
	}
	var core []sat.Literal
	for _, l := range clause {
		if assumed[l.Opposite()] {
			core = append(core, l.Opposite())
		}
	}
	return core
}

// SolveOptions configures a single Solve call: stop conditions layered on
// top of the modules and clauses already registered, generalizing the
// teacher's inline numConflicts/timeout fields into an explicit struct per
// spec §9's "configuration threaded explicitly" translation note.
type SolveOptions struct {
	MaxConflicts int64
	Timeout      time.Duration
}

func (o SolveOptions) deadline() time.Time {
	if o.Timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(o.Timeout)
}

// DefaultSolveOptions imposes no stop condition beyond what the registered
// modules and the underlying Solver's own Options already enforce.
var DefaultSolveOptions = SolveOptions{MaxConflicts: -1, Timeout: -1}
