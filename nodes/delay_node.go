package nodes

import (
	"context"
	"fmt"
	"math"
	"time"

	"nodeflow"
)

// DefaultDelay is used when delayMs is missing, zero or not a number.
const DefaultDelay = 1000 * time.Millisecond

// DelayExecutor waits for the configured delayMs and then fires signalOut.
// It carries no payload.
type DelayExecutor struct{}

func (DelayExecutor) Execute(ctx context.Context, node Node, ec *ExecutionContext, _ Services, _ []Edge, _ []Node) (Outputs, error) {
	raw, _ := node.ConfigValue("delayMs")
	delay := delayDuration(raw)
	if ms := toNumber(raw); ms == 0 || math.IsNaN(ms) {
		ec.AddLog(fmt.Sprintf("DelayNode '%s': Invalid or missing delayMs (%s). Defaulting to %dms.", node.ID, toString(raw), DefaultDelay.Milliseconds()), node.ID, map[string]any{"delayMs": raw})
	}

	ec.AddLog(fmt.Sprintf("DelayNode '%s': Starting delay of %dms.", node.ID, delay.Milliseconds()), node.ID, map[string]any{"delayMs": delay.Milliseconds()})
	if err := sleep(ctx, delay); err != nil {
		ec.AddLog(fmt.Sprintf("DelayNode '%s': Delay interrupted: %v", node.ID, err), node.ID, nil)
		return nil, err
	}
	ec.AddLog(fmt.Sprintf("DelayNode '%s': Delay finished after %dms. Outputting signal.", node.ID, delay.Milliseconds()), node.ID, nil)
	return nodeflow.Signal("signalOut"), nil
}

func delayDuration(raw any) time.Duration {
	ms := toNumber(raw)
	switch {
	case ms == 0 || math.IsNaN(ms):
		return DefaultDelay
	case ms < 0:
		return 0
	}
	ns := ms * float64(time.Millisecond)
	if ns >= 1<<63 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeDelay,
		Label:       "Delay",
		Description: "Adds a specified delay before passing a signal.",
		Category:    "Utility",
		Inputs:      []nodeflow.Socket{socket("signalIn", nodeflow.SocketSignal, "Start Delay")},
		Outputs:     []nodeflow.Socket{socket("signalOut", nodeflow.SocketSignal, "After Delay")},
		Defaults:    map[string]any{"delayMs": 1000},
	})
}
