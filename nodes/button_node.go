package nodes

import (
	"context"
	"fmt"

	"nodeflow"
)

// ButtonExecutor fires the trigger signal. Running it is the button press.
type ButtonExecutor struct{}

func (ButtonExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, _ []Edge, _ []Node) (Outputs, error) {
	text := "Unnamed Button"
	if v, ok := node.ConfigValue("buttonText"); ok && !falsy(v) {
		text = toString(v)
	}
	ec.AddLog(fmt.Sprintf("ButtonNode '%s' (%s) triggered.", node.ID, text), node.ID, nil)
	return nodeflow.Signal("trigger"), nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeButton,
		Label:       "Button",
		Description: "Triggers the flow when clicked.",
		Category:    "Input",
		Outputs:     []nodeflow.Socket{socket("trigger", nodeflow.SocketSignal, "Trigger")},
		Defaults:    map[string]any{"buttonText": "Start Flow"},
	})
}
