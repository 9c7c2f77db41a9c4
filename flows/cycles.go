package flows

import (
	"slices"

	"nodeflow"
)

// DetectCycles walks the graph depth-first in node declaration order and
// returns one cycle per back edge, as node ids starting and ending at the
// same node. The scheduler only reports cycles; it still executes each node
// once.
func DetectCycles(nodes []nodeflow.Node, edges []nodeflow.Edge) [][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		if !slices.Contains(adj[e.Source], e.Target) {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int)
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		state[id] = visiting
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch state[next] {
			case unvisited:
				visit(next)
			case visiting:
				idx := slices.Index(stack, next)
				cycle := append(slices.Clone(stack[idx:]), next)
				cycles = append(cycles, cycle)
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = visited
	}

	for _, n := range nodes {
		if state[n.ID] == unvisited {
			visit(n.ID)
		}
	}
	return cycles
}
