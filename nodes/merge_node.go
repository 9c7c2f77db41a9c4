package nodes

import (
	"context"
	"fmt"

	"nodeflow"
)

// MergeExecutor pairs its two streams as [stream1, stream2]. Unresolved
// streams appear as nil.
type MergeExecutor struct{}

func (MergeExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, edges []Edge, nodes []Node) (Outputs, error) {
	stream1, _ := ec.GetInput(node.ID, "stream1", edges, nodes)
	stream2, _ := ec.GetInput(node.ID, "stream2", edges, nodes)

	ec.AddLog(fmt.Sprintf("MergeNode '%s': Executing with Stream 1: %s, Stream 2: %s", node.ID, toString(stream1), toString(stream2)), node.ID,
		map[string]any{"stream1Value": stream1, "stream2Value": stream2})

	merged := []any{stream1, stream2}
	ec.AddLog(fmt.Sprintf("MergeNode '%s': Outputting merged array.", node.ID), node.ID, map[string]any{"merged": merged})
	return Outputs{"merged": merged}, nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeMerge,
		Label:       "Merge",
		Description: "Merges two data streams into one.",
		Category:    "Transform",
		Inputs: []nodeflow.Socket{
			socket("stream1", nodeflow.SocketAny, "Stream 1"),
			socket("stream2", nodeflow.SocketAny, "Stream 2"),
		},
		Outputs: []nodeflow.Socket{socket("merged", nodeflow.SocketAny, "Merged Data")},
	})
}
