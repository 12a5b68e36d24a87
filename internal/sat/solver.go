// Package sat implements the CDCL kernel of the solver: the trail, the
// clause arena, the watch index, the decision heuristic, restarts, conflict
// analysis, and clause-database reduction described in spec §4.1. It is
// usable on its own for plain CNF problems; internal/coordinator builds the
// combined SAT + theory search loop on top of the primitives exported here.
package sat

import (
	"fmt"
	"sort"
	"time"
)

// watcher represents a clause attached to the watch list of a literal.
type watcher struct {
	// clause is the watching clause, to be examined when the watched
	// literal becomes false.
	clause ClauseRef
	// guard is one of the clause's other literals; if it is already true
	// the clause needs no examination at all. It must differ from the
	// watched literal.
	guard Literal
}

// Solver is the CDCL kernel: it owns the trail, the clause arena, and the
// watch index, and performs unit propagation, conflict analysis, and
// backjumping. Theory modules observe and extend the trail only through the
// Enqueue/NewDecisionLevel/CancelUntil primitives exported here.
type Solver struct {
	opts Options

	arena       *Arena
	constraints []ClauseRef
	learnts     []ClauseRef
	clauseInc   float64

	order     *VarOrder
	decidable []bool

	watchers  [][]watcher // indexed by Literal
	propQueue *Queue[Literal]

	assigns []LBool // indexed by Literal

	trail      []Literal
	trailLim   []int
	antecedent []Antecedent // indexed by Var
	level      []int        // indexed by Var

	unsat bool

	explainer TheoryExplainer

	restarts *restartSchedule

	TotalConflicts  int64
	TotalRestarts   int64
	TotalIterations int64
	startTime       time.Time

	maxConflicts int64
	timeout      time.Duration
	interrupted  bool

	// Models accumulates every total assignment found by Solve, in the
	// teacher's convention of supporting repeated Solve calls to enumerate
	// models (see spec §8's "solve -> add-model-as-clause -> solve" law).
	Models [][]bool

	seenVar *VarSet

	tmpWatchers []watcher
	tmpLearnts  []Literal
	tmpReason   []Literal

	// lastAssumptions and finalConflictReason back UnsatCore: they record,
	// respectively, the assumption literals passed to the most recent
	// Solve call and the reason clause for the root-level conflict that
	// proved the problem unsatisfiable under them.
	lastAssumptions     []Literal
	finalConflictReason []Literal
}

// NewSolver returns a Solver configured with the given options.
func NewSolver(opts Options) *Solver {
	s := &Solver{
		opts:         opts,
		arena:        NewArena(1024),
		clauseInc:    1,
		order:        NewVarOrder(opts.VariableDecay, opts.PhaseSaving),
		propQueue:    NewQueue[Literal](128),
		seenVar:      &VarSet{},
		restarts:     newRestartSchedule(opts.RestartPolicy, opts.RestartBase, opts.RestartFactor),
		maxConflicts: opts.MaxConflicts,
		timeout:      opts.Timeout,
	}
	return s
}

// NewDefaultSolver returns a Solver configured with DefaultOptions.
func NewDefaultSolver() *Solver {
	return NewSolver(DefaultOptions)
}

// SetTheoryExplainer installs the callback used to resolve explanations for
// literals whose antecedent is a theory module. The coordinator calls this
// once, at setup, with a dispatcher that routes to the right registered
// module by ModuleID.
func (s *Solver) SetTheoryExplainer(e TheoryExplainer) {
	s.explainer = e
}

// Interrupt cooperatively requests that the search stop at the next
// opportunity (spec §5 "cancellation").
func (s *Solver) Interrupt() {
	s.interrupted = true
}

func (s *Solver) shouldStop() bool {
	if s.interrupted {
		return true
	}
	if s.maxConflicts >= 0 && s.maxConflicts <= s.TotalConflicts {
		return true
	}
	if s.timeout >= 0 && s.timeout <= time.Since(s.startTime) {
		return true
	}
	return false
}

// NumVariables returns the number of variables declared so far.
func (s *Solver) NumVariables() int { return len(s.level) }

// NumAssigns returns the number of literals currently on the trail.
func (s *Solver) NumAssigns() int { return len(s.trail) }

// NumConstraints returns the number of root-level clauses.
func (s *Solver) NumConstraints() int { return len(s.constraints) }

// NumLearnts returns the number of learnt clauses currently retained.
func (s *Solver) NumLearnts() int { return len(s.learnts) }

// TrailAt returns the literal at trail position i. internal/coordinator
// uses this to fan newly-assigned literals out to registered theory
// modules incrementally, since Propagate only drives clause-watch
// propagation and has no notion of theory modules itself.
func (s *Solver) TrailAt(i int) Literal { return s.trail[i] }

// TrailBoundary returns the trail length immediately before decision level
// level+1 began, i.e. the position CancelUntil(level) truncates to. The
// coordinator walks the literals from this boundary to the current trail
// end, in reverse, to notify modules of the unassignments a backtrack to
// level is about to perform before it actually truncates the trail.
func (s *Solver) TrailBoundary(level int) int {
	if level >= len(s.trailLim) {
		return len(s.trail)
	}
	return s.trailLim[level]
}

// VarValue returns the current truth value of variable v.
func (s *Solver) VarValue(v Var) LBool { return s.assigns[PositiveLiteral(v)] }

// LitValue returns the current truth value of literal l.
func (s *Solver) LitValue(l Literal) LBool { return s.assigns[l] }

// DecisionLevel returns the current decision level (0 at the root).
func (s *Solver) DecisionLevel() int { return len(s.trailLim) }

// IsUnsat reports whether the problem was found unsatisfiable at the root.
func (s *Solver) IsUnsat() bool { return s.unsat }

// NewVariable allocates a fresh variable. polarityHint seeds its saved
// phase; decidable controls whether the search heuristic ever branches on
// it directly (non-decidable variables, such as Tseitin atoms introduced by
// loop-formula compaction, can only be assigned by propagation).
func (s *Solver) NewVariable(polarityHint bool, decidable bool) Var {
	v := Var(len(s.level))

	s.watchers = append(s.watchers, nil, nil)
	s.antecedent = append(s.antecedent, Antecedent{})
	s.seenVar.Expand()
	s.assigns = append(s.assigns, Unknown, Unknown)
	s.level = append(s.level, -1)
	s.decidable = append(s.decidable, decidable)
	s.order.AddVar(0, polarityHint, decidable)

	return v
}

// Watch registers clause ref to be examined when watch becomes true (i.e.
// its opposite, the literal it watches, becomes false).
func (s *Solver) Watch(ref ClauseRef, watch Literal, guard Literal) {
	s.watchers[watch] = append(s.watchers[watch], watcher{clause: ref, guard: guard})
}

// Unwatch removes ref from watch's watch list.
func (s *Solver) Unwatch(ref ClauseRef, watch Literal) {
	ws := s.watchers[watch]
	j := 0
	for i := range ws {
		if ws[i].clause != ref {
			ws[j] = ws[i]
			j++
		}
	}
	s.watchers[watch] = ws[:j]
}

// AddClause adds a root-level clause, simplifying it against the current
// (root-level) assignment. It must only be called at decision level 0.
func (s *Solver) AddClause(lits []Literal) error {
	if s.DecisionLevel() != 0 {
		return fmt.Errorf("sat: AddClause called at decision level %d, must be 0", s.DecisionLevel())
	}
	ref, ok := NewClause(s, lits, false)
	if ref != NilClauseRef {
		s.constraints = append(s.constraints, ref)
	}
	if !ok {
		s.unsat = true
	}
	return nil
}

// AddLearntClause records a clause learnt by conflict analysis (or by a
// theory module, e.g. internal/id's loop formulas),
// attaching it with its asserting literal in position 0 and immediately
// enqueuing that literal.
func (s *Solver) AddLearntClause(lits []Literal) bool {
	ref, ok := NewClause(s, lits, true)
	if !ok {
		return false
	}
	if ref == NilClauseRef {
		// Unit clause: already enqueued by NewClause.
		return true
	}
	s.learnts = append(s.learnts, ref)
	return s.Enqueue(lits[0], ClauseAntecedent(ref))
}

// Enqueue pushes l onto the trail with the given antecedent. It returns
// false if l's variable is already assigned to the opposite value
// (conflict) and true otherwise (including when l was already assigned to
// the same value).
func (s *Solver) Enqueue(l Literal, ant Antecedent) bool {
	return s.enqueue(l, ant)
}

func (s *Solver) enqueue(l Literal, ant Antecedent) bool {
	switch s.LitValue(l) {
	case False:
		return false
	case True:
		return true
	default:
		v := l.VarID()
		s.assigns[l] = True
		s.assigns[l.Opposite()] = False
		s.level[v] = s.DecisionLevel()
		s.antecedent[v] = ant
		s.trail = append(s.trail, l)
		s.propQueue.Push(l)
		return true
	}
}

// NewDecisionLevel opens a new decision level without assigning anything.
// Per spec §4.4 the coordinator calls this, broadcasts notify_new_decision_
// level to every module, and only then enqueues the decision literal.
func (s *Solver) NewDecisionLevel() {
	s.trailLim = append(s.trailLim, len(s.trail))
}

// Propagate runs unit propagation over clauses to a fixpoint (it does not
// poll theory modules; that is internal/coordinator's job) and returns the
// conflicting clause, or NilClauseRef if none was found.
func (s *Solver) Propagate() ClauseRef {
	for s.propQueue.Size() > 0 {
		l := s.propQueue.Pop()

		s.tmpWatchers = s.tmpWatchers[:0]
		s.tmpWatchers = append(s.tmpWatchers, s.watchers[l]...)
		s.watchers[l] = s.watchers[l][:0]

		for i, w := range s.tmpWatchers {
			if s.LitValue(w.guard) == True {
				s.watchers[l] = append(s.watchers[l], w)
				continue
			}

			c := s.arena.Get(w.clause)
			if c.Propagate(s, w.clause, l) {
				continue
			}

			s.watchers[l] = append(s.watchers[l], s.tmpWatchers[i+1:]...)
			s.propQueue.Clear()
			return w.clause
		}
	}
	return NilClauseRef
}

// HasPendingPropagations reports whether the propagation queue is
// non-empty; coordinator uses this to decide whether to re-run Propagate
// after a theory module enqueues a literal.
func (s *Solver) HasPendingPropagations() bool {
	return s.propQueue.Size() > 0
}

// ExplainClauseConflict returns the reason clause for ref being the current
// conflicting clause (every literal false).
func (s *Solver) ExplainClauseConflict(ref ClauseRef) []Literal {
	c := s.arena.Get(ref)
	return append([]Literal(nil), c.ExplainFailure(s)...)
}

// explainAssignment returns the reason literals for why v's currently-true
// literal was asserted, resolving theory antecedents through the installed
// TheoryExplainer.
func (s *Solver) explainAssignment(v Var) []Literal {
	ant := s.antecedent[v]
	switch ant.Kind {
	case AntecedentClause:
		c := s.arena.Get(ant.Clause)
		return c.ExplainAssign(s)
	case AntecedentTheory:
		if s.explainer == nil {
			panic("sat: theory antecedent without a registered TheoryExplainer")
		}
		return s.explainer.Explain(ant.Module, ant.Tag, s.trueLiteral(v))
	default:
		return nil // decision literals are never resolved further
	}
}

func (s *Solver) trueLiteral(v Var) Literal {
	if s.assigns[PositiveLiteral(v)] == True {
		return PositiveLiteral(v)
	}
	return NegativeLiteral(v)
}

// Analyze performs first-UIP conflict analysis starting from conflictReason,
// the reason clause for the current conflict (either a SAT clause's
// ExplainFailure or a theory module's conflict reason). It returns the
// learnt clause (asserting literal first) and the backjump level.
func (s *Solver) Analyze(conflictReason []Literal) ([]Literal, int) {
	nImplicationPoints := 0

	s.tmpLearnts = s.tmpLearnts[:0]
	s.tmpLearnts = append(s.tmpLearnts, LiteralNone)

	nextLiteral := len(s.trail) - 1
	s.seenVar.Clear()
	backtrackLevel := 0

	reason := conflictReason
	l := LiteralNone

	for {
		for _, q := range reason {
			v := q.VarID()
			if s.seenVar.Contains(v) {
				continue
			}
			s.seenVar.Add(v)

			if s.level[v] == s.DecisionLevel() {
				nImplicationPoints++
				continue
			}

			s.tmpLearnts = append(s.tmpLearnts, q.Opposite())
			if lvl := s.level[v]; lvl > backtrackLevel {
				backtrackLevel = lvl
			}
		}

		for {
			l = s.trail[nextLiteral]
			nextLiteral--
			if s.seenVar.Contains(l.VarID()) {
				break
			}
		}

		nImplicationPoints--
		if nImplicationPoints <= 0 {
			break
		}
		reason = s.explainAssignment(l.VarID())
	}

	s.tmpLearnts[0] = l.Opposite()
	learnt := append([]Literal(nil), s.tmpLearnts...)
	return learnt, backtrackLevel
}

// BumpClauseActivity increases c's activity, rescaling all learnt clause
// activities if it would otherwise overflow.
func (s *Solver) BumpClauseActivity(c *Clause) {
	c.activity += s.clauseInc
	if c.activity > 1e100 {
		s.clauseInc *= 1e-100
		for _, ref := range s.learnts {
			s.arena.Get(ref).activity *= 1e-100
		}
	}
}

// BumpVarActivity increases the activity of l's variable in the decision
// heuristic.
func (s *Solver) BumpVarActivity(l Literal) {
	s.order.BumpScore(l.VarID())
}

// DecayClauseActivity decays the clause activity increment.
func (s *Solver) DecayClauseActivity() {
	s.clauseInc *= s.opts.ClauseDecay
}

// DecayVarActivity decays the variable activity increment.
func (s *Solver) DecayVarActivity() {
	s.order.DecayScores()
}

// ReduceDB halves the learnt clause database, keeping locked clauses
// (current antecedents) and the more active half, following the teacher's
// scheme. Binary clauses (length 2) are exempt from removal entirely.
func (s *Solver) ReduceDB() {
	if len(s.learnts) == 0 {
		return
	}
	lim := s.clauseInc / float64(len(s.learnts))

	sort.Slice(s.learnts, func(i, j int) bool {
		return s.arena.Get(s.learnts[i]).activity < s.arena.Get(s.learnts[j]).activity
	})

	i, j := 0, 0
	for ; i < len(s.learnts)/2; i++ {
		ref := s.learnts[i]
		c := s.arena.Get(ref)
		if len(c.literals) <= 2 || c.locked(s, ref) || c.IsProtected() {
			s.learnts[j] = ref
			j++
		} else {
			c.Delete(s, ref)
		}
	}
	for ; i < len(s.learnts); i++ {
		ref := s.learnts[i]
		c := s.arena.Get(ref)
		if len(c.literals) > 2 && !c.locked(s, ref) && !c.IsProtected() && c.activity < lim {
			c.Delete(s, ref)
		} else {
			s.learnts[j] = ref
			j++
		}
	}
	s.learnts = s.learnts[:j]
}

// Simplify removes root-level-satisfied clauses from the constraint and
// learnt databases. It must be called at decision level 0 with an empty
// propagation queue.
func (s *Solver) Simplify() bool {
	if s.DecisionLevel() != 0 {
		panic("sat: Simplify called at non-root decision level")
	}
	if s.unsat || s.Propagate() != NilClauseRef {
		s.unsat = true
		return false
	}
	s.simplifyDB(&s.learnts)
	s.simplifyDB(&s.constraints)
	return true
}

func (s *Solver) simplifyDB(refsPtr *[]ClauseRef) {
	refs := *refsPtr
	j := 0
	for i := 0; i < len(refs); i++ {
		c := s.arena.Get(refs[i])
		if c.Simplify(s) {
			c.Delete(s, refs[i])
		} else {
			refs[j] = refs[i]
			j++
		}
	}
	*refsPtr = refs[:j]
}

func (s *Solver) undoOne() {
	l := s.trail[len(s.trail)-1]
	v := l.VarID()

	if s.decidable[v] {
		s.order.Reinsert(v, s.assigns[l])
	}
	s.assigns[l] = Unknown
	s.assigns[l.Opposite()] = Unknown
	s.antecedent[v] = Antecedent{}
	s.level[v] = -1

	s.trail = s.trail[:len(s.trail)-1]
}

// CancelUntil undoes every assignment made above the given decision level.
func (s *Solver) CancelUntil(level int) {
	for s.DecisionLevel() > level {
		c := len(s.trail) - s.trailLim[len(s.trailLim)-1]
		for ; c != 0; c-- {
			s.undoOne()
		}
		s.trailLim = s.trailLim[:len(s.trailLim)-1]
	}
}

// NextDecision returns the next literal the search heuristic would branch
// on, or LiteralNone if every decidable variable is already assigned.
func (s *Solver) NextDecision() Literal {
	return s.order.NextDecision(s)
}

// UnsatCore returns the subset of the assumption literals passed to the
// most recent Solve call that the final root-level conflict actually
// depended on. It returns nil if the last Solve call did not return False.
// If the dependency could not be narrowed down (e.g. Unsat was reached by
// AddClause at decision level 0 outside of a Solve call), it conservatively
// returns every assumption.
func (s *Solver) UnsatCore() []Literal {
	if !s.unsat {
		return nil
	}
	assumed := make(map[Literal]bool, len(s.lastAssumptions))
	for _, a := range s.lastAssumptions {
		assumed[a] = true
	}
	var core []Literal
	for _, l := range s.finalConflictReason {
		if assumed[l.Opposite()] {
			core = append(core, l.Opposite())
		}
	}
	if len(core) == 0 {
		core = append(core, s.lastAssumptions...)
	}
	return core
}

func (s *Solver) saveModel() {
	model := make([]bool, s.NumVariables())
	for i := range model {
		lb := s.VarValue(Var(i))
		if lb == Unknown {
			panic("sat: saveModel called on a partial assignment")
		}
		model[i] = lb == True
	}
	s.Models = append(s.Models, model)
}

// Solve runs the plain-kernel CDCL loop (no theory modules) to completion,
// optionally under the given assumption literals. It returns True with a
// model appended to s.Models, False (with s.unsat set) if the problem (or
// the assumptions) are unsatisfiable, or Unknown if a configured stop
// condition (max conflicts / timeout / interrupt) was hit first.
func (s *Solver) Solve(assumptions []Literal) LBool {
	if s.unsat {
		return False
	}
	s.startTime = time.Now()
	s.lastAssumptions = append(s.lastAssumptions[:0], assumptions...)

	numLearnts := s.NumConstraints() / 3
	if d := s.opts.InitialLearntsDivisor; d > 0 {
		numLearnts = s.NumConstraints() / d
	}

	status := Unknown
	for status == Unknown {
		status = s.search(assumptions, s.restarts.Next(), numLearnts)
		numLearnts += int(float64(numLearnts) * s.opts.LearntsGrowth)
		if s.shouldStop() {
			break
		}
	}
	s.CancelUntil(0)
	return status
}

func (s *Solver) search(assumptions []Literal, nConflicts int64, nLearnts int) LBool {
	if s.unsat {
		return False
	}
	s.TotalRestarts++
	var conflictCount int64

	for !s.shouldStop() {
		s.TotalIterations++

		if conflict := s.Propagate(); conflict != NilClauseRef {
			conflictCount++
			s.TotalConflicts++

			if s.DecisionLevel() == 0 {
				s.finalConflictReason = s.ExplainClauseConflict(conflict)
				s.unsat = true
				return False
			}

			reason := s.ExplainClauseConflict(conflict)
			learnt, backtrackLevel := s.Analyze(reason)

			s.CancelUntil(backtrackLevel)
			s.AddLearntClause(learnt)
			if s.unsat {
				return False
			}

			s.DecayClauseActivity()
			s.DecayVarActivity()
			continue
		}

		if s.DecisionLevel() == 0 {
			s.Simplify()
		}

		if len(s.learnts)-s.NumAssigns() >= nLearnts {
			s.ReduceDB()
		}

		if s.NumAssigns() == s.NumVariables() {
			s.saveModel()
			s.CancelUntil(0)
			return True
		}

		if conflictCount > nConflicts {
			s.CancelUntil(0)
			return Unknown
		}

		var next Literal
		if s.DecisionLevel() < len(assumptions) {
			next = assumptions[s.DecisionLevel()]
		} else {
			next = s.NextDecision()
		}
		if next == LiteralNone {
			s.saveModel()
			s.CancelUntil(0)
			return True
		}

		s.NewDecisionLevel()
		if !s.Enqueue(next, DecisionAntecedent) {
			s.CancelUntil(0)
			s.unsat = true
			return False
		}
	}

	return Unknown
}
