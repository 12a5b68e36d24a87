package agg

import "github.com/rhartert/satid/internal/problem"

// combiner dispatches the per-kind arithmetic used both by set reduction
// (internal/agg/reduce.go) and by incremental cc/cp maintenance
// (internal/agg/propagator.go): how two weights combine, and the identity
// element of that combination.
type combiner struct {
	zero     int64
	combine  func(acc, w int64) int64
	// incremental reports whether Add has a matching additive Remove (true
	// for SUM/CARDINALITY only); PRODUCT/MIN/MAX are recomputed by a full
	// scan whenever a literal of the set changes, since the propagator's
	// incremental update and undo only add and subtract weights.
	incremental bool
}

func combinerFor(kind problem.AggregateKind) combiner {
	switch kind {
	case problem.Sum, problem.Cardinality:
		return combiner{zero: 0, combine: func(acc, w int64) int64 { return acc + w }, incremental: true}
	case problem.Product:
		return combiner{zero: 1, combine: func(acc, w int64) int64 { return acc * w }}
	case problem.Min:
		return combiner{zero: maxInt64, combine: func(acc, w int64) int64 {
			if w < acc {
				return w
			}
			return acc
		}}
	case problem.Max:
		return combiner{zero: minInt64, combine: func(acc, w int64) int64 {
			if w > acc {
				return w
			}
			return acc
		}}
	default:
		panic("agg: unknown aggregate kind")
	}
}

const maxInt64 = int64(1)<<63 - 1
const minInt64 = -maxInt64 - 1
