package nodeflow

import (
	"fmt"
)

// Graph is an immutable snapshot of a flow: its nodes, its edges and the
// node a run starts from.
type Graph struct {
	StartNodeID string `json:"startNodeId"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Validate checks the structural rules a loader can enforce: every node has
// a unique id and a known type, and every edge joins two declared nodes.
// Socket names are not checked.
func (g Graph) Validate() error {
	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("node of type %q: %w", n.Type, ErrEmptyNodeID)
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("node %s: %w", n.ID, ErrDuplicateNodeID)
		}
		seen[n.ID] = struct{}{}
		if _, err := ParseNodeType(string(n.Type)); err != nil {
			return fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range g.Edges {
		for _, id := range []string{e.Source, e.Target} {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("edge %s: %w", EdgeLabel(e), &NodeNotFoundError{ID: id})
			}
		}
	}
	if g.StartNodeID != "" {
		if _, ok := seen[g.StartNodeID]; !ok {
			return fmt.Errorf("start: %w", &NodeNotFoundError{ID: g.StartNodeID})
		}
	}
	return nil
}

// EdgeLabel renders e as "source.handle->target.handle", which is also the
// id given to edges that are declared without one.
func EdgeLabel(e Edge) string {
	return fmt.Sprintf("%s.%s->%s.%s", e.Source, e.SourceHandle, e.Target, e.TargetHandle)
}
