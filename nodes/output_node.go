package nodes

import (
	"context"
	"fmt"

	"nodeflow"
)

// OutputExecutor publishes its content input as the node's live output.
type OutputExecutor struct{}

func (OutputExecutor) Execute(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error) {
	content, _ := ec.GetInput(node.ID, "content", edges, nodes)
	ec.AddLog(fmt.Sprintf("OutputNode '%s' received content:", node.ID), node.ID, content)
	svc.RecordLiveOutput(ctx, node.ID, content)
	return Outputs{}, nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeOutput,
		Label:       "Output Display",
		Description: "Renders incoming content (HTML, Markdown, Image, Text).",
		Category:    "Output",
		Inputs:      []nodeflow.Socket{socket("content", nodeflow.SocketAny, "Content")},
		Defaults:    map[string]any{"renderType": "text"},
	})
}
