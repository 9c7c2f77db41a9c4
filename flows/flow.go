package flows

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"nodeflow"
)

// FlowEventType enumerates observable lifecycle hooks emitted by a run.
type FlowEventType string

const (
	FlowEventTypeFlowStart    FlowEventType = "flow_start"
	FlowEventTypeNodeStart    FlowEventType = "node_start"
	FlowEventTypeNodeEnd      FlowEventType = "node_end"
	FlowEventTypeNodeError    FlowEventType = "node_error"
	FlowEventTypeNodeSkipped  FlowEventType = "node_skipped"
	FlowEventTypeNodeQueued   FlowEventType = "node_queued"
	FlowEventTypeFlowComplete FlowEventType = "flow_complete"
)

// FlowEvent carries metadata that observability hooks can use.
type FlowEvent struct {
	Type      FlowEventType     `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	RunID     string            `json:"runId"`
	Node      string            `json:"node,omitempty"`
	NodeType  nodeflow.NodeType `json:"nodeType,omitempty"`
	Socket    string            `json:"socket,omitempty"`
	Outputs   nodeflow.Outputs  `json:"outputs,omitempty"`
	Status    nodeflow.Status   `json:"status,omitempty"`
	Err       error             `json:"-"`
}

// FlowMonitor observes lifecycle events emitted by FlowExecutor.Run.
type FlowMonitor interface {
	Notify(ctx context.Context, event FlowEvent)
}

// FlowOption configures a FlowExecutor.
type FlowOption func(*FlowExecutor)

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(logger *slog.Logger) FlowOption {
	return func(f *FlowExecutor) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTimeout bounds every run. Zero keeps runs unbounded.
func WithTimeout(timeout time.Duration) FlowOption {
	return func(f *FlowExecutor) {
		f.timeout = timeout
	}
}

// WithMonitors registers observability hooks.
func WithMonitors(monitors ...FlowMonitor) FlowOption {
	return func(f *FlowExecutor) {
		for _, m := range monitors {
			f.AddMonitor(m)
		}
	}
}

// WithClock overrides the clock used for log timestamps.
func WithClock(now func() time.Time) FlowOption {
	return func(f *FlowExecutor) {
		if now != nil {
			f.now = now
		}
	}
}

// FlowExecutor drives a queue-based traversal of a node graph.
type FlowExecutor struct {
	registry *nodeflow.Registry
	services nodeflow.Services
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	monitors   []FlowMonitor
	monitorMux sync.RWMutex
}

// NewFlowExecutor builds a scheduler over a registry and the services handed
// to every executor.
func NewFlowExecutor(registry *nodeflow.Registry, services nodeflow.Services, opts ...FlowOption) *FlowExecutor {
	f := &FlowExecutor{
		registry: registry,
		services: services,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.services.Logger == nil {
		f.services.Logger = f.logger
	}
	return f
}

// AddMonitor registers a FlowMonitor.
func (f *FlowExecutor) AddMonitor(monitor FlowMonitor) *FlowExecutor {
	if monitor == nil {
		return f
	}
	f.monitorMux.Lock()
	f.monitors = append(f.monitors, monitor)
	f.monitorMux.Unlock()
	return f
}

// Run executes the graph from startNodeID and returns the finished context.
// Configuration problems and executor errors end in FAILED; Run never
// returns an error itself.
func (f *FlowExecutor) Run(ctx context.Context, nodes []nodeflow.Node, edges []nodeflow.Edge, startNodeID string) *nodeflow.ExecutionContext {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	ec := nodeflow.NewExecutionContext(
		nodeflow.WithContextLogger(f.logger),
		nodeflow.WithNow(f.now),
	)
	_ = ec.Start()
	ec.AddLog("Flow execution started.", "", nil)
	logger := f.logger.With("run_id", ec.RunID())
	logger.Info("flow execution started", "start_node", startNodeID, "nodes", len(nodes), "edges", len(edges))

	f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeFlowStart, RunID: ec.RunID(), Node: startNodeID, Status: nodeflow.StatusRunning})
	defer func() {
		f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeFlowComplete, RunID: ec.RunID(), Status: ec.Status(), Err: ec.Err()})
	}()

	if startNodeID == "" {
		ec.AddLog("Error: Flow execution requires a startNodeId.", "", map[string]any{"nodes": len(nodes), "edges": len(edges)})
		_ = ec.Fail(nodeflow.ErrMissingStartNode)
		logger.Error("flow execution failed", "error", nodeflow.ErrMissingStartNode)
		return ec
	}
	start, ok := findNode(nodes, startNodeID)
	if !ok {
		err := &nodeflow.NodeNotFoundError{ID: startNodeID}
		ec.AddLog(fmt.Sprintf("Error: Provided startNodeId '%s' not found in nodes list.", startNodeID), "", map[string]any{"nodes": nodeIDs(nodes)})
		_ = ec.Fail(err)
		logger.Error("flow execution failed", "error", err)
		return ec
	}
	ec.AddLog(fmt.Sprintf("Starting execution with node: %s (%s)", start.ID, start.Type), "", nil)

	for _, cycle := range DetectCycles(nodes, edges) {
		ec.AddLog(fmt.Sprintf("Warning: graph contains a cycle (%s); each node executes at most once per run, so the cycle will not iterate.", strings.Join(cycle, " -> ")), "", cycle)
	}

	if err := f.drain(ctx, ec, nodes, edges, start.ID); err != nil {
		ec.AddLog(fmt.Sprintf("Error during flow execution: %s", err.Error()), "", map[string]any{"error": err.Error()})
		_ = ec.Fail(err)
		logger.Error("flow execution failed", "error", err)
		return ec
	}

	ec.AddLog("Flow execution completed successfully.", "", nil)
	_ = ec.Complete()
	logger.Info("flow execution completed")
	return ec
}

func (f *FlowExecutor) drain(ctx context.Context, ec *nodeflow.ExecutionContext, nodes []nodeflow.Node, edges []nodeflow.Edge, startID string) error {
	queue := []string{startID}
	processed := make(map[string]struct{})

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled with %d node(s) pending: %w", len(queue), err)
		}

		currentID := queue[0]
		queue = queue[1:]

		if _, done := processed[currentID]; done {
			ec.AddLog(fmt.Sprintf("Node %s already processed, skipping. (Cycle or multiple paths to node)", currentID), currentID, nil)
			f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeNodeSkipped, RunID: ec.RunID(), Node: currentID})
			continue
		}

		node, ok := findNode(nodes, currentID)
		if !ok {
			ec.AddLog(fmt.Sprintf("Error: Node with ID %s not found in graph.", currentID), "", map[string]any{"currentNodeId": currentID})
			return &nodeflow.NodeNotFoundError{ID: currentID}
		}

		outputs, err := f.executeStep(ctx, ec, node, nodes, edges)
		if err != nil {
			return err
		}
		processed[node.ID] = struct{}{}
		ec.AddLog(fmt.Sprintf("Node %s executed. Outputs:", node.ID), node.ID, outputs)

		for _, socket := range outputs.Sockets() {
			ec.SetOutput(node.ID, socket, outputs[socket])
			for _, edge := range edges {
				if edge.Source != node.ID || edge.SourceHandle != socket {
					continue
				}
				next := edge.Target
				if _, done := processed[next]; done {
					ec.AddLog(fmt.Sprintf("Edge %s.%s -> %s not followed: %s already executed in this run and is not re-executed.", node.ID, socket, next, next), node.ID, nil)
					continue
				}
				if slices.Contains(queue, next) {
					continue
				}
				ec.AddLog(fmt.Sprintf("Queueing next node %s from %s.%s", next, node.ID, socket), node.ID, nil)
				queue = append(queue, next)
				f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeNodeQueued, RunID: ec.RunID(), Node: next, Socket: socket})
			}
		}
	}
	return nil
}

func (f *FlowExecutor) executeStep(ctx context.Context, ec *nodeflow.ExecutionContext, node nodeflow.Node, nodes []nodeflow.Node, edges []nodeflow.Edge) (outputs nodeflow.Outputs, err error) {
	ec.AddLog(fmt.Sprintf("Executing node: %s (%s)", node.ID, node.Type), node.ID, nil)
	f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeNodeStart, RunID: ec.RunID(), Node: node.ID, NodeType: node.Type})

	defer func() {
		if err != nil {
			f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeNodeError, RunID: ec.RunID(), Node: node.ID, NodeType: node.Type, Err: err})
			return
		}
		f.emitEvent(ctx, FlowEvent{Type: FlowEventTypeNodeEnd, RunID: ec.RunID(), Node: node.ID, NodeType: node.Type, Outputs: outputs})
	}()

	exec, err := f.registry.Lookup(node.Type)
	if err != nil {
		ec.AddLog(fmt.Sprintf("Error: No executor found for node type: %s", node.Type), node.ID, nil)
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			ec.AddLog(fmt.Sprintf("Error Stack: %s", debug.Stack()), node.ID, nil)
			err = fmt.Errorf("node %s (%s) panicked: %v", node.ID, node.Type, r)
		}
	}()

	outputs, err = exec.Execute(ctx, node, ec, f.services, edges, nodes)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", node.ID, node.Type, err)
	}
	if outputs == nil {
		outputs = nodeflow.Outputs{}
	}
	return outputs, nil
}

func findNode(nodes []nodeflow.Node, id string) (nodeflow.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nodeflow.Node{}, false
}

func nodeIDs(nodes []nodeflow.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
