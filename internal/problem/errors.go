package problem

import "fmt"

// ErrorKind classifies a SolverError so that callers (in particular
// cmd/satid) can decide whether a failure is the caller's fault, the
// problem's fault, or the solver's own.
type ErrorKind int8

const (
	// Internal signals a bug: an invariant the solver itself is supposed
	// to maintain was violated.
	Internal ErrorKind = iota
	// MalformedInput signals a problem with the intake text: duplicate
	// rule head, empty set, negative/out-of-range weight, or a reference
	// to an undeclared set/aggregate ID.
	MalformedInput
	// Unsat signals that the instance (or the current assumption set) was
	// proven unsatisfiable; this is not a failure of the solver, but
	// callers that only expect a model may still want to distinguish it.
	Unsat
	// Resource signals that a configured resource limit (conflict budget,
	// timeout, memory) was hit before a definite answer could be reached.
	Resource
)

func (k ErrorKind) String() string {
	switch k {
	case Internal:
		return "internal"
	case MalformedInput:
		return "malformed_input"
	case Unsat:
		return "unsat"
	case Resource:
		return "resource"
	default:
		return "unknown"
	}
}

// SolverError wraps an underlying error with an ErrorKind, so that it can be
// inspected with errors.As without string matching.
type SolverError struct {
	Kind ErrorKind
	// Reason further classifies MalformedInput errors (e.g.
	// "duplicate_head", "empty_set", "weight_out_of_precision",
	// "undeclared_set"), mirroring spec-level error taxonomies without
	// needing a full sub-enum per kind.
	Reason string
	Err    error
}

func (e *SolverError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// Errorf builds a SolverError of the given kind and reason.
func Errorf(kind ErrorKind, reason string, format string, args ...any) *SolverError {
	return &SolverError{Kind: kind, Reason: reason, Err: fmt.Errorf(format, args...)}
}

// MaxWeight is the largest aggregate weight magnitude accepted at parse
// time: 2^53, the largest integer exactly representable as a float64.
// internal/agg itself keeps weights and running values in int64.
const MaxWeight int64 = 1 << 53
