// SPDX-License-Identifier: MPL-2.0

// Package dag records which chains include which other chains. A chain that
// includes itself, directly or through nested chains, would otherwise recurse
// without end while it is being constructed.
package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel error wrapped by CycleError.
var ErrCycle = errors.New("chain inclusion cycle")

type (
	// CycleError lists the chains that take part in an inclusion cycle.
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph of chain names. An edge from A to B means
	// chain A includes chain B as a nested entry.
	Graph struct {
		adjacency map[string][]string
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("chain inclusion cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrCycle so callers can use errors.Is.
func (e *CycleError) Unwrap() error { return ErrCycle }

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a chain. Adding an existing chain is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
}

// AddEdge records that chain from includes chain to.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Include records an inclusion and reports a CycleError when it closes a
// cycle. The offending edge stays in the graph.
func (g *Graph) Include(parent, child string) error {
	g.AddEdge(parent, child)
	if path := g.pathFrom(child, parent, map[string]bool{}); path != nil {
		return &CycleError{Cycle: append([]string{parent}, path...)}
	}
	return nil
}

// pathFrom returns the chain names from start to target along the edges, or
// nil if target is unreachable.
func (g *Graph) pathFrom(start, target string, seen map[string]bool) []string {
	if start == target {
		return []string{start}
	}
	if seen[start] {
		return nil
	}
	seen[start] = true
	for _, next := range g.adjacency[start] {
		if rest := g.pathFrom(next, target, seen); rest != nil {
			return append([]string{start}, rest...)
		}
	}
	return nil
}
