package sat

import "strings"

// clauseStatus is a small bitset of per-clause flags, generalizing the
// teacher's separate learnt/isProtected bools into one mask so that a
// deleted clause can be tombstoned in place (its arena slot is reused only
// after the next relocation, keeping outstanding ClauseRefs valid until
// then).
type clauseStatus uint8

const (
	statusLearnt    clauseStatus = 0b001
	statusProtected clauseStatus = 0b010
	statusDeleted   clauseStatus = 0b100
)

// Clause is an arena-owned disjunction of literals. Positions 0 and 1 are
// always the two watched literals (spec §3's watch invariant); for a learnt
// clause position 0 is the asserting (first-UIP) literal.
type Clause struct {
	literals []Literal
	activity float64
	lbd      uint32
	status   clauseStatus

	// prevPos remembers where the last search for a replacement watch
	// left off, so Propagate need not always rescan from position 2.
	prevPos int
}

func (c *Clause) isLearnt() bool    { return c.status&statusLearnt != 0 }
func (c *Clause) isDeleted() bool   { return c.status&statusDeleted != 0 }
func (c *Clause) IsProtected() bool { return c.status&statusProtected != 0 }
func (c *Clause) Protect()          { c.status |= statusProtected }
func (c *Clause) Unprotect()        { c.status &^= statusProtected }
func (c *Clause) Literals() []Literal {
	return c.literals
}
func (c *Clause) Activity() float64 { return c.activity }
func (c *Clause) approxSize() int64 { return int64(40 + 4*len(c.literals)) }

// NewClause builds, watches, and allocates a clause from tmpLiterals. It
// returns (NilClauseRef, true) when the clause was a trivial tautology or
// (for root clauses) already satisfied, (NilClauseRef, false) when the
// clause reduces to the empty clause (unsat) or a conflicting unit, and
// otherwise the clause's ref and true. For root-level (non-learnt) clauses,
// duplicate literals are coalesced, tautologies (containing both l and ¬l)
// short-circuit to "always true", and literals already false at the root are
// dropped (mirrors the teacher's NewClause root-level simplification pass).
func NewClause(s *Solver, tmpLiterals []Literal, learnt bool) (ClauseRef, bool) {
	size := len(tmpLiterals)

	if !learnt {
		seen := map[Literal]struct{}{}
		for i := size - 1; i >= 0; i-- {
			if _, ok := seen[tmpLiterals[i].Opposite()]; ok {
				return NilClauseRef, true // tautology
			}
			if _, ok := seen[tmpLiterals[i]]; ok {
				size--
				tmpLiterals[i], tmpLiterals[size] = tmpLiterals[size], tmpLiterals[i]
				continue
			}
			seen[tmpLiterals[i]] = struct{}{}

			switch s.LitValue(tmpLiterals[i]) {
			case True:
				return NilClauseRef, true
			case False:
				size--
				tmpLiterals[i], tmpLiterals[size] = tmpLiterals[size], tmpLiterals[i]
			}
		}
		tmpLiterals = tmpLiterals[:size]
	}

	switch size {
	case 0:
		return NilClauseRef, false
	case 1:
		return NilClauseRef, s.enqueue(tmpLiterals[0], ClauseAntecedent(NilClauseRef))
	default:
		c := &Clause{
			literals: append([]Literal(nil), tmpLiterals...),
			prevPos:  2,
		}
		if learnt {
			c.status |= statusLearnt
			maxLevel, wl := -1, -1
			for i, lit := range c.literals {
				if level := s.level[lit.VarID()]; level > maxLevel {
					maxLevel = level
					wl = i
				}
			}
			c.literals[wl], c.literals[1] = c.literals[1], c.literals[wl]
		}

		ref := s.arena.Alloc(c)
		s.Watch(ref, c.literals[0].Opposite(), c.literals[1])
		s.Watch(ref, c.literals[1].Opposite(), c.literals[0])
		return ref, true
	}
}

func (c *Clause) locked(s *Solver, self ClauseRef) bool {
	ant := s.antecedent[c.literals[0].VarID()]
	return ant.Kind == AntecedentClause && ant.Clause == self
}

// Delete tombstones the clause and removes it from the watch index. The
// arena slot itself is only reclaimed on the next relocation pass.
func (c *Clause) Delete(s *Solver, self ClauseRef) {
	s.arena.MarkFreed(self)
	c.status |= statusDeleted
	s.Unwatch(self, c.literals[0].Opposite())
	s.Unwatch(self, c.literals[1].Opposite())
}

// Simplify drops literals already false at the root and reports whether the
// clause is already satisfied (and can thus be removed entirely).
func (c *Clause) Simplify(s *Solver) bool {
	k := 0
	for _, lit := range c.literals {
		switch s.LitValue(lit) {
		case True:
			return true
		case False:
			// drop
		default:
			c.literals[k] = lit
			k++
		}
	}
	c.literals = c.literals[:k]
	return false
}

// Propagate is invoked when l, the opposite of one of the clause's watched
// literals, has just become true. It returns false (and leaves the clause as
// the conflict) when no replacement watch and no satisfying literal can be
// found and the clause's first literal is itself false.
func (c *Clause) Propagate(s *Solver, self ClauseRef, l Literal) bool {
	opp := l.Opposite()
	if c.literals[0] == opp {
		c.literals[0], c.literals[1] = c.literals[1], opp
	}
	if s.LitValue(c.literals[0]) == True {
		s.Watch(self, l, c.literals[0])
		return true
	}

	if c.prevPos >= len(c.literals) {
		c.prevPos = 2
	}
	for i := c.prevPos; i < len(c.literals); i++ {
		if s.LitValue(c.literals[i]) != False {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], opp
			s.Watch(self, c.literals[1].Opposite(), c.literals[0])
			return true
		}
	}
	for i := 2; i < c.prevPos; i++ {
		if s.LitValue(c.literals[i]) != False {
			c.prevPos = i
			c.literals[1], c.literals[i] = c.literals[i], opp
			s.Watch(self, c.literals[1].Opposite(), c.literals[0])
			return true
		}
	}

	s.Watch(self, l, c.literals[0])
	return s.enqueue(c.literals[0], ClauseAntecedent(self))
}

// ExplainFailure returns the reason clause for c being the current conflict:
// the negation of every one of c's literals (all are false).
func (c *Clause) ExplainFailure(s *Solver) []Literal {
	s.tmpReason = s.tmpReason[:0]
	for _, l := range c.literals {
		s.tmpReason = append(s.tmpReason, l.Opposite())
	}
	if c.isLearnt() {
		s.BumpClauseActivity(c)
	}
	return s.tmpReason
}

// ExplainAssign returns the reason clause for c having asserted its first
// literal: the negation of every other literal (all are false).
func (c *Clause) ExplainAssign(s *Solver) []Literal {
	s.tmpReason = s.tmpReason[:0]
	for _, l := range c.literals[1:] {
		s.tmpReason = append(s.tmpReason, l.Opposite())
	}
	if c.isLearnt() {
		s.BumpClauseActivity(c)
	}
	return s.tmpReason
}

func (c *Clause) String() string {
	if len(c.literals) == 0 {
		return "Clause[]"
	}
	sb := strings.Builder{}
	sb.WriteString("Clause[")
	sb.WriteString(c.literals[0].String())
	for _, l := range c.literals[1:] {
		sb.WriteByte(' ')
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
