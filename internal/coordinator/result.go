package coordinator

import "github.com/rhartert/satid/internal/sat"

// Status is the outcome of a Coordinator.Solve call, per spec §6.2.
type Status int8

const (
	StatusUnknown Status = iota
	StatusSat
	StatusUnsat
)

// Result is the outcome of a Coordinator.Solve call: exactly one of Model
// (Status == StatusSat) or Core (Status == StatusUnsat) is meaningful.
type Result struct {
	Status Status

	// Model is the total assignment over the problem's original
	// variables (spec §6.2), Tseitin auxiliaries introduced at runtime by
	// internal/id's loop-formula compaction are never included.
	Model []bool

	// Core is the subset of the assumption literals passed to Solve that
	// the final conflict actually depended on (spec §6.2's unsat core).
	Core []sat.Literal
}

func satResult(model []bool) Result        { return Result{Status: StatusSat, Model: model} }
func unsatResult(core []sat.Literal) Result { return Result{Status: StatusUnsat, Core: core} }
func unknownResult() Result                 { return Result{Status: StatusUnknown} }
