package nodes

import (
	"context"
	"fmt"

	"nodeflow"
)

// SwitchExecutor forwards dataIn to dataOut only while status is on. When
// off it fires nothing at all.
type SwitchExecutor struct{}

func (SwitchExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, edges []Edge, nodes []Node) (Outputs, error) {
	dataIn, _ := ec.GetInput(node.ID, "dataIn", edges, nodes)
	status, _ := ec.GetInput(node.ID, "status", edges, nodes)

	ec.AddLog(fmt.Sprintf("SwitchNode '%s': Executing with dataIn: %s, status: %s", node.ID, toString(dataIn), toString(status)), node.ID,
		map[string]any{"dataIn": dataIn, "status": status})

	if truthyStatus(status) {
		ec.AddLog(fmt.Sprintf("SwitchNode '%s': Status is TRUE. Passing dataOut.", node.ID), node.ID, map[string]any{"dataOut": dataIn})
		return Outputs{"dataOut": dataIn}, nil
	}
	ec.AddLog(fmt.Sprintf("SwitchNode '%s': Status is FALSE. Not passing dataOut.", node.ID), node.ID, nil)
	return Outputs{}, nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeSwitch,
		Label:       "Switch",
		Description: `Passes data through only if its status is "on".`,
		Category:    "Logic",
		Inputs: []nodeflow.Socket{
			socket("dataIn", nodeflow.SocketAny, "Input Data"),
			socket("status", nodeflow.SocketBoolean, "Status (On/Off)"),
		},
		Outputs: []nodeflow.Socket{socket("dataOut", nodeflow.SocketAny, "Output Data")},
	})
}
