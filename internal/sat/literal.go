package sat

import "fmt"

// Var is a dense integer identifier for a Boolean variable. Variables are
// allocated monotonically by Solver.NewVariable and are never reclaimed.
type Var int32

// Literal packs a variable and its polarity into a single integer: the low
// bit carries the sign, the remaining bits carry the variable id. Opposite
// toggles the low bit. LiteralNone is reserved as a sentinel for "no
// literal" (used e.g. as the synthetic pivot literal during conflict
// analysis).
type Literal int32

// LiteralNone is the sentinel empty literal.
const LiteralNone Literal = -1

// PositiveLiteral returns the literal asserting that v is true.
func PositiveLiteral(v Var) Literal {
	return Literal(v) * 2
}

// NegativeLiteral returns the literal asserting that v is false.
func NegativeLiteral(v Var) Literal {
	return PositiveLiteral(v) ^ 1
}

// VarID returns the variable underlying the literal.
func (l Literal) VarID() Var {
	return Var(l >> 1)
}

// IsPositive reports whether l asserts the positive polarity of its
// variable.
func (l Literal) IsPositive() bool {
	return l&1 == 0
}

// Opposite returns the complementary literal (¬l).
func (l Literal) Opposite() Literal {
	return l ^ 1
}

func (l Literal) String() string {
	if l == LiteralNone {
		return "<none>"
	}
	if l.IsPositive() {
		return fmt.Sprintf("%d", l.VarID())
	}
	return fmt.Sprintf("!%d", l.VarID())
}
