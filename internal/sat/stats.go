package sat

import (
	"fmt"
	"time"
)

// Stats is a snapshot of the search counters, printed by the CLI driver in
// the teacher's own tabular style (see cmd/satid).
type Stats struct {
	Elapsed     time.Duration
	Iterations  int64
	Conflicts   int64
	Restarts    int64
	Learnts     int
	Constraints int
}

// Stats returns a snapshot of the solver's current search counters.
func (s *Solver) Stats() Stats {
	elapsed := time.Duration(0)
	if !s.startTime.IsZero() {
		elapsed = time.Since(s.startTime)
	}
	return Stats{
		Elapsed:     elapsed,
		Iterations:  s.TotalIterations,
		Conflicts:   s.TotalConflicts,
		Restarts:    s.TotalRestarts,
		Learnts:     len(s.learnts),
		Constraints: len(s.constraints),
	}
}

func (st Stats) String() string {
	return fmt.Sprintf(
		"c %14.3fs %14d %14d %14d %14d",
		st.Elapsed.Seconds(), st.Iterations, st.Conflicts, st.Restarts, st.Learnts,
	)
}

// PrintHeader returns the column header for a sequence of Stats lines, in the
// teacher's own format.
func PrintHeader() string {
	return "c            time     iterations      conflicts       restarts        learnts"
}

// PrintSeparator returns the horizontal rule the teacher prints around the
// search log.
func PrintSeparator() string {
	return "c ---------------------------------------------------------------------------"
}
