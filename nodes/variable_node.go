package nodes

import (
	"context"
	"fmt"

	"nodeflow"
)

// VariableExecutor outputs its configured value, or the connected inputValue
// when one has been produced.
type VariableExecutor struct{}

func (VariableExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, edges []Edge, nodes []Node) (Outputs, error) {
	name := "Unnamed"
	if v, ok := node.ConfigValue("name"); ok && !falsy(v) {
		name = toString(v)
	}

	value, _ := node.ConfigValue("value")
	if connected, ok := ec.GetInput(node.ID, "inputValue", edges, nodes); ok && connected != nil {
		value = connected
		ec.AddLog(fmt.Sprintf("VariableNode '%s' (%s): Using connected input value.", node.ID, name), node.ID, map[string]any{"connectedValue": value})
	} else {
		ec.AddLog(fmt.Sprintf("VariableNode '%s' (%s): Using configured value.", node.ID, name), node.ID, map[string]any{"configuredValue": value})
	}

	ec.AddLog(fmt.Sprintf("VariableNode '%s' outputting:", node.ID), node.ID, value)
	return Outputs{"value": value}, nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeVariable,
		Label:       "Variable",
		Description: "Stores and outputs a configurable value.",
		Category:    "Input",
		Inputs:      []nodeflow.Socket{socket("inputValue", nodeflow.SocketAny, "Set Value")},
		Outputs:     []nodeflow.Socket{socket("value", nodeflow.SocketAny, "Value")},
		Defaults:    map[string]any{"name": "myVariable", "value": "", "valueType": "string"},
	})
}
