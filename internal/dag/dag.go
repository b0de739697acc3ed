// SPDX-License-Identifier: MPL-2.0

// Package dag provides cycle detection over directed graphs of record
// identifiers. It is used by integrity checking to find group inclusion
// loops and required-dependency loops.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError describes one cycle. The first node is repeated at the end,
	// e.g. [a b a].
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph keyed by node name.
	// An edge from A to B means A refers to B.
	Graph struct {
		// adjacency maps each node to its outgoing neighbors.
		adjacency map[string][]string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}

	color uint8
)

const (
	white color = iota
	gray
	black
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	g.nodeSet[name] = true
}

// AddEdge adds a directed edge from -> to. Both nodes are added implicitly.
// Parallel edges are collapsed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if !slices.Contains(g.adjacency[from], to) {
		g.adjacency[from] = append(g.adjacency[from], to)
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodeSet)
}

// Cycles returns the cycles reachable by depth-first search, visiting nodes
// and neighbors in lexical order. Each cycle is rotated to start at its
// smallest node and repeats that node at the end. A cycle is reported once
// regardless of which of its nodes the search entered it from; the result
// is sorted.
func (g *Graph) Cycles() []*CycleError {
	nodes := make([]string, 0, len(g.nodeSet))
	for n := range g.nodeSet {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)

	colors := make(map[string]color, len(nodes))
	seen := make(map[string]bool)
	var cycles []*CycleError
	var stack []string

	var visit func(n string)
	visit = func(n string) {
		colors[n] = gray
		stack = append(stack, n)

		neighbors := slices.Clone(g.adjacency[n])
		slices.Sort(neighbors)
		for _, next := range neighbors {
			switch colors[next] {
			case white:
				visit(next)
			case gray:
				start := slices.Index(stack, next)
				cycle := normalize(stack[start:])
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, &CycleError{Cycle: cycle})
				}
			case black:
			}
		}

		stack = stack[:len(stack)-1]
		colors[n] = black
	}

	for _, n := range nodes {
		if colors[n] == white {
			visit(n)
		}
	}

	slices.SortFunc(cycles, func(a, b *CycleError) int {
		return slices.Compare(a.Cycle, b.Cycle)
	})
	return cycles
}

// normalize rotates path so its smallest node comes first and closes the loop.
func normalize(path []string) []string {
	minIdx := 0
	for i, n := range path {
		if n < path[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, 0, len(path)+1)
	out = append(out, path[minIdx:]...)
	out = append(out, path[:minIdx]...)
	return append(out, out[0])
}
