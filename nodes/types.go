package nodes

import (
	"context"
	"time"

	"nodeflow"
)

type (
	Node             = nodeflow.Node
	Edge             = nodeflow.Edge
	Outputs          = nodeflow.Outputs
	Services         = nodeflow.Services
	ExecutionContext = nodeflow.ExecutionContext
)

func socket(name string, t nodeflow.SocketType, label string) nodeflow.Socket {
	return nodeflow.Socket{Name: name, Type: t, Label: label}
}

// inputOrConfig resolves an input socket and falls back to the node's config
// under the same key when nothing connected has produced a value.
func inputOrConfig(ec *ExecutionContext, node Node, key string, edges []Edge, nodes []Node) (any, bool) {
	if v, ok := ec.GetInput(node.ID, key, edges, nodes); ok {
		return v, true
	}
	return node.ConfigValue(key)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
