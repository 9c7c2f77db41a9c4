package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"nodeflow"
	"nodeflow/flows"
	kvstore "nodeflow/kv"
	"nodeflow/live"
	"nodeflow/llm"
	"nodeflow/nodes"
	"nodeflow/runlog"
	"nodeflow/telemetry"
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// commonFlags are shared by run and serve.
type commonFlags struct {
	logLevel     string
	logFormat    string
	timeout      time.Duration
	history      string
	otelEndpoint string
	socketIOURL  string
	mockLatency  time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.logLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&c.logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")
	fs.DurationVar(&c.timeout, "timeout", 0, "Abort a run after this long. 0 means no limit.")
	fs.StringVar(&c.history, "history", "", "JSON file that keeps the history of finished runs.")
	fs.StringVar(&c.otelEndpoint, "otel-endpoint", os.Getenv("NODEFLOW_OTEL_ENDPOINT"), "OTLP collector endpoint for traces.")
	fs.StringVar(&c.socketIOURL, "socketio", "", "socket.io server URL that receives live outputs.")
	fs.DurationVar(&c.mockLatency, "mock-latency", llm.DefaultMockLatency, "Latency of the mock AI backend used without OPENAI_API_KEY.")
}

func (c *commonFlags) validate() error {
	c.logFormat = strings.ToLower(c.logFormat)
	if c.logFormat != "text" && c.logFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	c.logLevel = strings.ToLower(c.logLevel)
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	return nil
}

func parseFlags(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, &ExitError{Code: 2, Message: err.Error()}
	}
	return false, nil
}

// maxRunStates bounds how many finished runs keep their live outputs and
// events in memory.
const maxRunStates = 100

// engine is everything a run needs, built from the common flags.
type engine struct {
	logger   *slog.Logger
	registry *nodeflow.Registry
	sinks    live.Fanout
	options  []flows.FlowOption
	recorder runlog.Recorder
	closers  []func(context.Context) error

	mu    sync.Mutex
	runs  map[string]*runState
	order []string
}

// runState holds what a single run surfaced while it executed.
type runState struct {
	live   *live.Store
	events *flows.RecordingMonitor
}

func newEngine(ctx context.Context, c *commonFlags, stderr io.Writer) (*engine, error) {
	logger := newLogger(c.logLevel, c.logFormat, stderr)
	e := &engine{logger: logger, runs: make(map[string]*runState)}

	registry, err := nodes.DefaultRegistry(llm.FromEnv(llm.WithLatency(c.mockLatency)))
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	e.registry = registry

	if c.socketIOURL != "" {
		pub, err := live.DialSocketIO(ctx, c.socketIOURL, "/", logger)
		if err != nil {
			return nil, err
		}
		e.sinks = append(e.sinks, pub)
		e.closers = append(e.closers, func(context.Context) error { return pub.Close() })
	}

	shutdown, err := telemetry.Setup(c.otelEndpoint, "nodeflow")
	if err != nil {
		e.close(ctx)
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	e.closers = append(e.closers, shutdown)

	if c.history != "" {
		store, err := kvstore.NewFileBasedKVStore(c.history)
		if err != nil {
			e.close(ctx)
			return nil, err
		}
		e.recorder = runlog.NewKVRecorder(store)
		e.closers = append(e.closers, func(context.Context) error { return store.Close() })
	} else {
		e.recorder = runlog.NewMemoryRecorder()
	}

	e.options = []flows.FlowOption{
		flows.WithLogger(logger),
		flows.WithTimeout(c.timeout),
		flows.WithMonitors(telemetry.NewMonitor(nil)),
	}
	return e, nil
}

// execute runs g with its own live store and event log, then records the
// outcome.
func (e *engine) execute(ctx context.Context, flowID string, g nodeflow.Graph) (runlog.Record, error) {
	state := &runState{live: live.NewStore(), events: &flows.RecordingMonitor{}}
	services := nodeflow.Services{
		Logger: e.logger,
		Live:   append(live.Fanout{state.live}, e.sinks...),
	}
	opts := append(slices.Clone(e.options), flows.WithMonitors(state.events))
	ec := flows.NewFlowExecutor(e.registry, services, opts...).Run(ctx, g.Nodes, g.Edges, g.StartNodeID)
	e.keep(ec.RunID(), state)

	rec := runlog.FromContext(flowID, g.StartNodeID, ec)
	if err := e.recorder.Save(ctx, rec); err != nil {
		return rec, fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	return rec, nil
}

func (e *engine) keep(runID string, state *runState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runs[runID] = state
	e.order = append(e.order, runID)
	if len(e.order) > maxRunStates {
		delete(e.runs, e.order[0])
		e.order = e.order[1:]
	}
}

// state returns what was kept for runID.
func (e *engine) state(runID string) (*runState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.runs[runID]
	return state, ok
}

func (e *engine) close(ctx context.Context) {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil {
			e.logger.Warn("shutdown", "error", err)
		}
	}
}

// newLogger builds a slog.Logger without installing it as the default.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}
	return slog.New(handler)
}
