package sat

import "time"

// Options configures a Solver. It generalizes the teacher's Options struct
// (clause/variable decay, stop conditions) with the restart-schedule choice
// and arena-relocation threshold that spec §4.1/§5 require to be threaded
// explicitly rather than kept as global mutable state (spec §9).
type Options struct {
	ClauseDecay   float64
	VariableDecay float64
	MaxConflicts  int64
	Timeout       time.Duration
	PhaseSaving   bool

	RestartPolicy RestartPolicyKind
	RestartBase   int64
	RestartFactor float64

	// InitialLearntsDivisor sets ReduceDB's first budget (the number of
	// root clauses divided by it) and LearntsGrowth how much that budget
	// grows between search rounds.
	InitialLearntsDivisor int
	LearntsGrowth         float64

	// MinFreeArenaFraction triggers arena relocation once the fraction of
	// freed (tombstoned) bytes reaches this threshold.
	MinFreeArenaFraction float64
}

// DefaultOptions mirrors the teacher's tuned defaults, extended with the new
// fields' conservative defaults.
var DefaultOptions = Options{
	ClauseDecay:           0.999,
	VariableDecay:         0.95,
	MaxConflicts:          -1,
	Timeout:               -1,
	PhaseSaving:           false,
	RestartPolicy:         RestartLuby,
	RestartBase:           100,
	RestartFactor:         1.5,
	InitialLearntsDivisor: 3,
	LearntsGrowth:         0.05,
	MinFreeArenaFraction:  0.25,
}
