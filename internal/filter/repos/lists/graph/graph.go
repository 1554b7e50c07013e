package graph

import (
	"fmt"
	"sort"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

// Graph is a read-only trie over phrase bytes. Nodes live in an arena and
// are addressed by index; node 0 is the root. Edges and outputs are stored
// in compressed rows so the whole graph is a handful of flat slices that a
// cache can write out directly.
type Graph struct {
	edgeStart []uint32 // len(nodes)+1
	edgeLabel []byte
	edgeChild []uint32
	outStart  []uint32 // len(nodes)+1
	outputs   []uint32
	root      [256]uint32
	maxDepth  int
}

// Parts is the flat form of a Graph.
type Parts struct {
	EdgeStart []uint32
	EdgeLabel []byte
	EdgeChild []uint32
	OutStart  []uint32
	Outputs   []uint32
}

// Nodes returns the number of nodes including the root.
func (g *Graph) Nodes() int { return len(g.edgeStart) - 1 }

// MaxDepth returns the length of the longest phrase.
func (g *Graph) MaxDepth() int { return g.maxDepth }

// Parts exposes the graph's slices. Callers must not modify them.
func (g *Graph) Parts() Parts {
	return Parts{
		EdgeStart: g.edgeStart,
		EdgeLabel: g.edgeLabel,
		EdgeChild: g.edgeChild,
		OutStart:  g.outStart,
		Outputs:   g.outputs,
	}
}

// FromParts validates p and rebuilds a Graph. Output ids must be below
// entries. Every non-root node must have exactly one parent with a lower
// index, which keeps the structure a tree.
func FromParts(p Parts, entries int) (*Graph, error) {
	n := len(p.EdgeStart) - 1
	if n < 1 {
		return nil, fmt.Errorf("graph has no root")
	}
	if len(p.OutStart) != n+1 {
		return nil, fmt.Errorf("output rows %d, want %d", len(p.OutStart), n+1)
	}
	if len(p.EdgeLabel) != len(p.EdgeChild) {
		return nil, fmt.Errorf("edge labels %d, children %d", len(p.EdgeLabel), len(p.EdgeChild))
	}
	if err := checkRows(p.EdgeStart, len(p.EdgeChild)); err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}
	if err := checkRows(p.OutStart, len(p.Outputs)); err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	for _, id := range p.Outputs {
		if int(id) >= entries {
			return nil, fmt.Errorf("output %d out of range", id)
		}
	}

	depth := make([]int, n)
	hasParent := make([]bool, n)
	g := &Graph{
		edgeStart: p.EdgeStart,
		edgeLabel: p.EdgeLabel,
		edgeChild: p.EdgeChild,
		outStart:  p.OutStart,
		outputs:   p.Outputs,
	}
	for node := 0; node < n; node++ {
		if node > 0 && !hasParent[node] {
			return nil, fmt.Errorf("node %d is unreachable", node)
		}
		lo, hi := p.EdgeStart[node], p.EdgeStart[node+1]
		for e := lo; e < hi; e++ {
			if e > lo && p.EdgeLabel[e] <= p.EdgeLabel[e-1] {
				return nil, fmt.Errorf("node %d edges not sorted", node)
			}
			child := int(p.EdgeChild[e])
			if child <= node || child >= n || hasParent[child] {
				return nil, fmt.Errorf("node %d has invalid child %d", node, child)
			}
			hasParent[child] = true
			depth[child] = depth[node] + 1
			g.maxDepth = max(g.maxDepth, depth[child])
		}
	}
	g.fillRoot()
	return g, nil
}

func checkRows(start []uint32, total int) error {
	if start[0] != 0 || int(start[len(start)-1]) != total {
		return fmt.Errorf("row bounds do not cover %d items", total)
	}
	for i := 1; i < len(start); i++ {
		if start[i] < start[i-1] {
			return fmt.Errorf("row %d starts before row %d", i, i-1)
		}
	}
	return nil
}

// fillRoot indexes the root's edges by byte. Zero means no edge since the
// root is never a child.
func (g *Graph) fillRoot() {
	for e := g.edgeStart[0]; e < g.edgeStart[1]; e++ {
		g.root[g.edgeLabel[e]] = g.edgeChild[e]
	}
}

// child follows the edge labelled c out of node, returning 0 when absent.
func (g *Graph) child(node uint32, c byte) uint32 {
	lo, hi := int(g.edgeStart[node]), int(g.edgeStart[node+1])
	if hi-lo <= 8 {
		for e := lo; e < hi; e++ {
			if g.edgeLabel[e] == c {
				return g.edgeChild[e]
			}
		}
		return 0
	}
	labels := g.edgeLabel[lo:hi]
	i := sort.Search(len(labels), func(i int) bool { return labels[i] >= c })
	if i < len(labels) && labels[i] == c {
		return g.edgeChild[lo+i]
	}
	return 0
}

// Scan walks doc once and calls visit for every phrase occurrence, in end
// position order. The same id is visited once per occurrence.
func (g *Graph) Scan(doc []byte, visit func(domain.EntryID)) {
	g.scan(doc, visit)
}

// scan returns the largest active set seen, which never exceeds MaxDepth.
func (g *Graph) scan(doc []byte, visit func(domain.EntryID)) int {
	if g.maxDepth == 0 || len(doc) == 0 {
		return 0
	}
	cur := make([]uint32, 0, g.maxDepth)
	next := make([]uint32, 0, g.maxDepth)
	peak := 0
	for _, c := range doc {
		next = next[:0]
		for _, node := range cur {
			if ch := g.child(node, c); ch != 0 {
				next = append(next, ch)
				g.emit(ch, visit)
			}
		}
		if ch := g.root[c]; ch != 0 {
			next = append(next, ch)
			g.emit(ch, visit)
		}
		cur, next = next, cur
		peak = max(peak, len(cur))
	}
	return peak
}

func (g *Graph) emit(node uint32, visit func(domain.EntryID)) {
	for i := g.outStart[node]; i < g.outStart[node+1]; i++ {
		visit(domain.EntryID(g.outputs[i]))
	}
}
