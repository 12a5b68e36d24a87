// Package id implements the inductive-definition theory: Clark completion,
// dependency-graph SCC classification, and runtime unfounded-set search
// enforcing completion/stable/well-founded semantics over a set of rules
// with one rule per defined atom, per spec §4.3. It is grounded on the
// pack's gonum.org/v1/gonum/graph/topo.TarjanSCC 2-SAT example for the SCC
// machinery and on internal/agg's Propagator shape for the runtime module
// structure (tagged theory antecedents, incremental OnAssign/OnUnassign).
package id

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/rhartert/satid/internal/problem"
	"github.com/rhartert/satid/internal/sat"
)

// DefinedOccurrence classifies how a rule head participates in the
// dependency graph's cycles. Atoms classified NoLoop need no runtime
// unfounded-set tracking: their Clark completion alone is sufficient.
type DefinedOccurrence int8

const (
	// NotDefined means v is not the head of any rule.
	NotDefined DefinedOccurrence = iota
	// NoLoop means v is a rule head but does not lie on any cycle of the
	// full signed dependency graph.
	NoLoop
	// PosLoopOnly means v lies on a cycle made entirely of positive
	// dependency edges.
	PosLoopOnly
	// MixedLoopOnly means v lies on a cycle of the full signed graph, but
	// not one restricted to positive edges (a stratified negative cycle).
	MixedLoopOnly
	// Both means v lies on a positive cycle whose full-graph SCC also
	// contains a negative edge between two of its members.
	Both
)

func (o DefinedOccurrence) String() string {
	switch o {
	case NotDefined:
		return "NotDefined"
	case NoLoop:
		return "NoLoop"
	case PosLoopOnly:
		return "PosLoopOnly"
	case MixedLoopOnly:
		return "MixedLoopOnly"
	case Both:
		return "Both"
	default:
		return "Unknown"
	}
}

// DependencyGraph holds the full signed dependency graph (a directed edge
// from a rule's head to each of its body variables, tagged positive or
// negative by the body literal's sign) and the positive subgraph (edges
// for positively-occurring body literals only), plus their SCC partitions.
type DependencyGraph struct {
	rules map[sat.Var]problem.Rule

	// dependents maps a variable to every rule head whose body mentions it
	// (either sign), letting the runtime propagator react to an
	// assignment by revisiting exactly the heads it can affect.
	dependents map[sat.Var][]sat.Var

	fullSCC  map[sat.Var]int
	posSCC   map[sat.Var]int
	fullLoop map[sat.Var]bool
	posLoop  map[sat.Var]bool
	// mixedEdge marks a var whose full-graph SCC contains a negative edge
	// between two of its own members (used to distinguish PosLoopOnly
	// from Both).
	mixedEdge map[sat.Var]bool

	occurrence map[sat.Var]DefinedOccurrence
}

// BuildDependencyGraph computes the dependency graph and SCC-based
// classification for a set of rules (one rule per defined atom, per
// spec §3/§4.3).
func BuildDependencyGraph(rules []problem.Rule) *DependencyGraph {
	dg := &DependencyGraph{
		rules:      make(map[sat.Var]problem.Rule, len(rules)),
		dependents: make(map[sat.Var][]sat.Var),
		fullSCC:    make(map[sat.Var]int),
		posSCC:     make(map[sat.Var]int),
		fullLoop:   make(map[sat.Var]bool),
		posLoop:    make(map[sat.Var]bool),
		mixedEdge:  make(map[sat.Var]bool),
		occurrence: make(map[sat.Var]DefinedOccurrence),
	}

	full := simple.NewDirectedGraph()
	pos := simple.NewDirectedGraph()

	ensure := func(g *simple.DirectedGraph, v sat.Var) {
		if g.Node(int64(v)) == nil {
			g.AddNode(simple.Node(int64(v)))
		}
	}

	type edge struct {
		head, body sat.Var
		positive   bool
	}
	var edges []edge

	for _, r := range rules {
		h := r.Head.VarID()
		dg.rules[h] = r
		ensure(full, h)
		ensure(pos, h)
		for _, b := range r.Body {
			bv := b.VarID()
			ensure(full, bv)
			ensure(pos, bv)
			dg.dependents[bv] = append(dg.dependents[bv], h)
			full.SetEdge(simple.Edge{F: simple.Node(int64(h)), T: simple.Node(int64(bv))})
			edges = append(edges, edge{h, bv, b.IsPositive()})
			if b.IsPositive() {
				pos.SetEdge(simple.Edge{F: simple.Node(int64(h)), T: simple.Node(int64(bv))})
			}
		}
	}

	assignSCC := func(g *simple.DirectedGraph, dst map[sat.Var]int, loop map[sat.Var]bool) {
		for i, comp := range topo.TarjanSCC(g) {
			nontrivial := len(comp) > 1
			if !nontrivial && len(comp) == 1 {
				n := comp[0]
				if g.HasEdgeFromTo(n.ID(), n.ID()) {
					nontrivial = true
				}
			}
			for _, n := range comp {
				v := sat.Var(n.ID())
				dst[v] = i
				if nontrivial {
					loop[v] = true
				}
			}
		}
	}
	assignSCC(full, dg.fullSCC, dg.fullLoop)
	assignSCC(pos, dg.posSCC, dg.posLoop)

	for _, e := range edges {
		if e.positive || !dg.fullLoop[e.head] {
			continue
		}
		if dg.fullSCC[e.head] == dg.fullSCC[e.body] {
			dg.mixedEdge[e.head] = true
			dg.mixedEdge[e.body] = true
		}
	}

	for h := range dg.rules {
		switch {
		case !dg.fullLoop[h]:
			dg.occurrence[h] = NoLoop
		case dg.posLoop[h] && !dg.mixedEdge[h]:
			dg.occurrence[h] = PosLoopOnly
		case !dg.posLoop[h]:
			dg.occurrence[h] = MixedLoopOnly
		default:
			dg.occurrence[h] = Both
		}
	}

	return dg
}

// Occurrence reports v's DefinedOccurrence, or NotDefined if v is not a
// rule head.
func (dg *DependencyGraph) Occurrence(v sat.Var) DefinedOccurrence {
	if o, ok := dg.occurrence[v]; ok {
		return o
	}
	return NotDefined
}

// Tracked reports whether v needs runtime unfounded-set tracking: only
// atoms that can lie on a positive loop do (spec §4.3 step 3).
func (dg *DependencyGraph) Tracked(v sat.Var) bool {
	switch dg.Occurrence(v) {
	case PosLoopOnly, Both:
		return true
	default:
		return false
	}
}

// Rule returns the rule defining v, if v is a rule head.
func (dg *DependencyGraph) Rule(v sat.Var) (problem.Rule, bool) {
	r, ok := dg.rules[v]
	return r, ok
}

// SameSCC reports whether a and b are in the same SCC of the positive
// subgraph (both must have a positive-graph membership).
func (dg *DependencyGraph) SameSCC(a, b sat.Var) bool {
	ai, aok := dg.posSCC[a]
	bi, bok := dg.posSCC[b]
	return aok && bok && ai == bi
}
