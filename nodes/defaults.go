package nodes

import (
	"math/rand/v2"
	"time"

	"nodeflow"
)

type registryConfig struct {
	rng      *rand.Rand
	timeouts map[nodeflow.NodeType]time.Duration
	extra    []nodeflow.Binding
}

// RegistryOption customizes DefaultRegistry.
type RegistryOption func(*registryConfig)

// WithRand makes Random nodes draw from rng.
func WithRand(rng *rand.Rand) RegistryOption {
	return func(c *registryConfig) { c.rng = rng }
}

// WithNodeTimeout bounds every execution of nodes of type t.
func WithNodeTimeout(t nodeflow.NodeType, d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.timeouts[t] = d }
}

// WithBindings adds executors for custom node types.
func WithBindings(bindings ...nodeflow.Binding) RegistryOption {
	return func(c *registryConfig) { c.extra = append(c.extra, bindings...) }
}

// DefaultRegistry binds every built-in node type. A nil ai uses the mock
// backend.
func DefaultRegistry(ai AIService, opts ...RegistryOption) (*nodeflow.Registry, error) {
	cfg := &registryConfig{timeouts: make(map[nodeflow.NodeType]time.Duration)}
	for _, opt := range opts {
		opt(cfg)
	}

	builtins := map[nodeflow.NodeType]nodeflow.Executor{
		nodeflow.TypeVariable:    VariableExecutor{},
		nodeflow.TypeIfStatement: IfStatementExecutor{},
		nodeflow.TypeAI:          NewAIExecutor(ai),
		nodeflow.TypeSwitch:      SwitchExecutor{},
		nodeflow.TypeButton:      ButtonExecutor{},
		nodeflow.TypeDelay:       DelayExecutor{},
		nodeflow.TypeMerge:       MergeExecutor{},
		nodeflow.TypeLogger:      LoggerExecutor{},
		nodeflow.TypeRandom:      NewRandomExecutor(cfg.rng),
		nodeflow.TypeOutput:      OutputExecutor{},
	}

	bindings := make([]nodeflow.Binding, 0, len(builtins)+len(cfg.extra))
	for _, t := range nodeflow.BuiltinTypes() {
		bindings = append(bindings, nodeflow.Bind(t, WithTimeout(builtins[t], cfg.timeouts[t])))
	}
	for _, b := range cfg.extra {
		bindings = append(bindings, nodeflow.Bind(b.Type, WithTimeout(b.Executor, cfg.timeouts[b.Type])))
	}
	return nodeflow.NewRegistry(bindings...)
}
