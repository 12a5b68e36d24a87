package sat

import "github.com/rhartert/yagh"

// VarOrder maintains the order in which unassigned variables are offered to
// the search as decisions. It is a thin, activity-ordered wrapper around a
// binary heap (github.com/rhartert/yagh): the heap breaks ties using the
// order in which variables were declared, matching the teacher solver's
// decision heuristic.
//
// Not every solver variable is a candidate decision: spec §4.1's
// new_variable(polarity_hint, decidable) lets a caller mark a variable (e.g.
// a Tseitin atom introduced by the definition propagator's loop-formula
// compaction) as non-decidable. Such variables never get a heap slot; they
// can only become assigned via propagation.
type VarOrder struct {
	heap *yagh.IntMap[float64]

	scores []float64 // indexed by solver Var, in [0, 1e100)
	phases []LBool   // indexed by solver Var

	// heapID maps a solver Var to its slot in heap, or -1 if the
	// variable is not decidable and therefore has no slot.
	heapID []int32
	// varOf is the inverse of heapID: it maps a heap slot back to the
	// solver Var it represents.
	varOf []Var

	scoreInc float64 // in (0, 1e100)
	decay    float64 // in (0, 1]

	phaseSaving bool
}

// NewVarOrder returns an empty VarOrder. decay controls how quickly past
// activity bumps fade relative to recent ones; phaseSaving controls whether
// a variable is re-offered with its last assigned polarity or always with
// the initial phase given to AddVar.
func NewVarOrder(decay float64, phaseSaving bool) *VarOrder {
	return &VarOrder{
		heap:        yagh.New[float64](0),
		scoreInc:    1,
		decay:       decay,
		phaseSaving: phaseSaving,
	}
}

// AddVar registers a new variable with the order. If decidable is false the
// variable is never offered by NextDecision.
func (vo *VarOrder) AddVar(initScore float64, initPhase bool, decidable bool) {
	v := Var(len(vo.scores))
	vo.scores = append(vo.scores, initScore)
	vo.phases = append(vo.phases, Lift(initPhase))

	if !decidable {
		vo.heapID = append(vo.heapID, -1)
		return
	}
	hid := int32(len(vo.varOf))
	vo.varOf = append(vo.varOf, v)
	vo.heap.GrowBy(1)
	vo.heap.Put(int(hid), -initScore)
	vo.heapID = append(vo.heapID, hid)
}

// Reinsert makes variable v a decision candidate again (called when v is
// unassigned by a backtrack), remembering val as its saved phase. It is a
// no-op for non-decidable variables.
func (vo *VarOrder) Reinsert(v Var, val LBool) {
	if vo.phaseSaving {
		vo.phases[v] = val
	}
	if hid := vo.heapID[v]; hid >= 0 {
		vo.heap.Put(int(hid), -vo.scores[v])
	}
}

// DecayScores shrinks the effective weight of past activity bumps relative
// to future ones.
func (vo *VarOrder) DecayScores() {
	vo.scoreInc /= vo.decay
	if vo.scoreInc > 1e100 {
		vo.rescale()
	}
}

// BumpScore increases v's activity score, re-ordering the heap if v is
// currently a decision candidate.
func (vo *VarOrder) BumpScore(v Var) {
	newScore := vo.scores[v] + vo.scoreInc
	vo.scores[v] = newScore
	if hid := vo.heapID[v]; hid >= 0 && vo.heap.Contains(int(hid)) {
		vo.heap.Put(int(hid), -newScore)
	}
	if newScore > 1e100 {
		vo.rescale()
	}
}

// NextDecision pops the highest-activity unassigned decidable variable and
// returns the literal to assign in its saved phase: the initial phase given
// to AddVar, replaced by the last assigned polarity when phase saving is
// on. It returns
// LiteralNone once every decidable variable is assigned.
func (vo *VarOrder) NextDecision(s *Solver) Literal {
	for {
		next, ok := vo.heap.Pop()
		if !ok {
			return LiteralNone
		}
		v := vo.varOf[next.Elem]
		if s.VarValue(v) != Unknown {
			continue // already assigned, stale heap entry
		}
		if vo.phases[v] == False {
			return NegativeLiteral(v)
		}
		return PositiveLiteral(v)
	}
}

func (vo *VarOrder) rescale() {
	vo.scoreInc *= 1e-100
	for i, sc := range vo.scores {
		rescaled := sc * 1e-100
		vo.scores[i] = rescaled
		if hid := vo.heapID[i]; hid >= 0 && vo.heap.Contains(int(hid)) {
			vo.heap.Put(int(hid), -rescaled)
		}
	}
}
