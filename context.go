package nodeflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one run.
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// LogEntry is one immutable line of the execution trace.
type LogEntry struct {
	Time    time.Time `json:"timestamp"`
	NodeID  string    `json:"nodeId,omitempty"`
	Message string    `json:"message"`
	Payload any       `json:"data,omitempty"`
}

type outputKey struct {
	node   string
	socket string
}

// ExecutionContext is the per-run ledger of outputs, logs and status. A run
// is its only writer; readers may inspect it concurrently.
type ExecutionContext struct {
	mu      sync.RWMutex
	runID   string
	outputs map[outputKey]any
	logs    []LogEntry
	status  Status
	err     error
	logger  *slog.Logger
	now     func() time.Time
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithContextLogger mirrors every log entry to logger at debug level.
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(ec *ExecutionContext) {
		if logger != nil {
			ec.logger = logger
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) ContextOption {
	return func(ec *ExecutionContext) {
		if id != "" {
			ec.runID = id
		}
	}
}

// WithNow overrides the clock used for log timestamps.
func WithNow(now func() time.Time) ContextOption {
	return func(ec *ExecutionContext) {
		if now != nil {
			ec.now = now
		}
	}
}

// NewExecutionContext returns an IDLE context with a fresh run id.
func NewExecutionContext(opts ...ContextOption) *ExecutionContext {
	ec := &ExecutionContext{
		runID:   uuid.NewString(),
		outputs: make(map[outputKey]any),
		status:  StatusIdle,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ec)
	}
	ec.logger = ec.logger.With("run_id", ec.runID)
	return ec
}

// RunID identifies the run this context belongs to.
func (ec *ExecutionContext) RunID() string {
	return ec.runID
}

// Status returns the current lifecycle state.
func (ec *ExecutionContext) Status() Status {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.status
}

// Err returns the error that failed the run, if any.
func (ec *ExecutionContext) Err() error {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.err
}

// Start moves the context from IDLE to RUNNING.
func (ec *ExecutionContext) Start() error {
	return ec.transition(StatusRunning, nil, StatusIdle)
}

// Complete moves the context from RUNNING to COMPLETED.
func (ec *ExecutionContext) Complete() error {
	return ec.transition(StatusCompleted, nil, StatusRunning)
}

// Fail moves the context to FAILED and records cause.
func (ec *ExecutionContext) Fail(cause error) error {
	return ec.transition(StatusFailed, cause, StatusIdle, StatusRunning)
}

func (ec *ExecutionContext) transition(to Status, cause error, from ...Status) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for _, allowed := range from {
		if ec.status == allowed {
			ec.status = to
			ec.err = cause
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ec.status, to)
}

// AddLog appends a timestamped entry. nodeID and payload are optional.
func (ec *ExecutionContext) AddLog(message, nodeID string, payload any) {
	ec.mu.Lock()
	if ec.status.Terminal() {
		ec.mu.Unlock()
		ec.logger.Warn("log entry dropped after run finished", "message", message, "node", nodeID)
		return
	}
	entry := LogEntry{Time: ec.now(), NodeID: nodeID, Message: message, Payload: payload}
	ec.logs = append(ec.logs, entry)
	ec.mu.Unlock()

	ec.logger.Debug(message, "node", nodeID)
}

// Logs returns a copy of the trace in append order.
func (ec *ExecutionContext) Logs() []LogEntry {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return append([]LogEntry(nil), ec.logs...)
}

// SetOutput records value for the node's output socket, replacing any
// earlier value.
func (ec *ExecutionContext) SetOutput(nodeID, socket string, value any) {
	ec.mu.Lock()
	if ec.status.Terminal() {
		ec.mu.Unlock()
		ec.logger.Warn("output dropped after run finished", "node", nodeID, "socket", socket)
		return
	}
	ec.outputs[outputKey{node: nodeID, socket: socket}] = value
	ec.mu.Unlock()

	ec.AddLog(fmt.Sprintf("Output set for %s_%s", nodeID, socket), nodeID, value)
}

// GetOutput returns the recorded value of the node's output socket.
func (ec *ExecutionContext) GetOutput(nodeID, socket string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.outputs[outputKey{node: nodeID, socket: socket}]
	return v, ok
}

// GetInput resolves the value feeding the node's input socket. It reports
// false when no edge ends there, when that edge names no source socket, or
// when the source has not produced that output yet.
func (ec *ExecutionContext) GetInput(nodeID, socket string, edges []Edge, nodes []Node) (any, bool) {
	for _, edge := range edges {
		if edge.Target != nodeID || edge.TargetHandle != socket {
			continue
		}
		if edge.SourceHandle == "" {
			ec.AddLog(fmt.Sprintf("Input for %s.%s has connected edge but no sourceHandle specified.", nodeID, socket), nodeID, nil)
			return nil, false
		}
		v, ok := ec.GetOutput(edge.Source, edge.SourceHandle)
		if !ok {
			ec.AddLog(fmt.Sprintf("Input for %s.%s is connected to %s.%s, which has not produced a value.", nodeID, socket, edge.Source, edge.SourceHandle), nodeID, nil)
		}
		return v, ok
	}
	ec.AddLog(fmt.Sprintf("No input connection found for %s.%s", nodeID, socket), nodeID, nil)
	return nil, false
}

// Outputs returns a copy of every recorded output grouped by node id.
func (ec *ExecutionContext) Outputs() map[string]Outputs {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]Outputs)
	for key, v := range ec.outputs {
		if out[key.node] == nil {
			out[key.node] = Outputs{}
		}
		out[key.node][key.socket] = v
	}
	return out
}
