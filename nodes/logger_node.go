package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nodeflow"
)

// LoggerExecutor writes logData to the run log under a label. It has no
// outputs.
type LoggerExecutor struct{}

func (LoggerExecutor) Execute(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error) {
	data, _ := ec.GetInput(node.ID, "logData", edges, nodes)

	label := fmt.Sprintf("Log from %s", node.ID)
	if v, ok := node.ConfigValue("logLabel"); ok && !falsy(v) {
		label = toString(v)
	}
	rawLevel, _ := node.ConfigValue("logLevel")
	level, ok := parseLogLevel(rawLevel)
	if !ok {
		ec.AddLog(fmt.Sprintf("LoggerNode '%s': Unknown log level '%s'. Using info.", node.ID, toString(rawLevel)), node.ID, nil)
	}

	message := label + ":"
	ec.AddLog(message, node.ID, data)
	svc.SlogLogger().Log(ctx, level, message, "node", node.ID, "data", data)
	return Outputs{}, nil
}

func parseLogLevel(raw any) (slog.Level, bool) {
	if raw == nil || raw == "" {
		return slog.LevelInfo, true
	}
	switch strings.ToLower(toString(raw)) {
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	case "debug":
		return slog.LevelDebug, true
	}
	return slog.LevelInfo, false
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeLogger,
		Label:       "Logger",
		Description: "Logs incoming data to the console.",
		Category:    "Output",
		Inputs:      []nodeflow.Socket{socket("logData", nodeflow.SocketAny, "Data to Log")},
		Defaults:    map[string]any{"logLevel": "info", "logLabel": "Log"},
	})
}
