package graph

import (
	"sort"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

type buildNode struct {
	children map[byte]int
	outs     []uint32
}

// Builder assembles a Graph. Phrases sharing a prefix share nodes.
type Builder struct {
	nodes []buildNode
}

// NewBuilder returns a Builder holding only the root.
func NewBuilder() *Builder {
	return &Builder{nodes: []buildNode{{}}}
}

// Add inserts phrase as the text of entry id. Empty phrases are ignored.
func (b *Builder) Add(phrase string, id domain.EntryID) {
	if phrase == "" {
		return
	}
	node := 0
	for i := 0; i < len(phrase); i++ {
		c := phrase[i]
		n := &b.nodes[node]
		if n.children == nil {
			n.children = make(map[byte]int)
		}
		next, ok := n.children[c]
		if !ok {
			next = len(b.nodes)
			n.children[c] = next
			b.nodes = append(b.nodes, buildNode{})
		}
		node = next
	}
	b.nodes[node].outs = append(b.nodes[node].outs, uint32(id))
}

// Build flattens the trie breadth first so every child has a larger index
// than its parent.
func (b *Builder) Build() *Graph {
	order := make([]int, 0, len(b.nodes))
	newIndex := make([]uint32, len(b.nodes))
	order = append(order, 0)
	for i := 0; i < len(order); i++ {
		for _, c := range sortedLabels(b.nodes[order[i]].children) {
			child := b.nodes[order[i]].children[c]
			newIndex[child] = uint32(len(order))
			order = append(order, child)
		}
	}

	g := &Graph{
		edgeStart: make([]uint32, 0, len(order)+1),
		outStart:  make([]uint32, 0, len(order)+1),
	}
	depth := make([]int, len(b.nodes))
	for _, old := range order {
		n := b.nodes[old]
		g.edgeStart = append(g.edgeStart, uint32(len(g.edgeChild)))
		g.outStart = append(g.outStart, uint32(len(g.outputs)))
		for _, c := range sortedLabels(n.children) {
			child := n.children[c]
			depth[child] = depth[old] + 1
			g.maxDepth = max(g.maxDepth, depth[child])
			g.edgeLabel = append(g.edgeLabel, c)
			g.edgeChild = append(g.edgeChild, newIndex[child])
		}
		g.outputs = append(g.outputs, n.outs...)
	}
	g.edgeStart = append(g.edgeStart, uint32(len(g.edgeChild)))
	g.outStart = append(g.outStart, uint32(len(g.outputs)))
	g.fillRoot()
	return g
}

func sortedLabels(m map[byte]int) []byte {
	labels := make([]byte, 0, len(m))
	for c := range m {
		labels = append(labels, c)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}
