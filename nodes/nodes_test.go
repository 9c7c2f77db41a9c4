package nodes

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow"
	"nodeflow/llm"
)

// harness runs one executor against a node whose inputs are fed by a single
// upstream node "src".
type harness struct {
	ec    *ExecutionContext
	nodes []Node
	edges []Edge
}

func newHarness(t *testing.T, node Node) *harness {
	t.Helper()
	ec := nodeflow.NewExecutionContext()
	require.NoError(t, ec.Start())
	return &harness{ec: ec, nodes: []Node{{ID: "src", Type: "src"}, node}}
}

// feed connects src.<socket> to the node's input and records value for it.
func (h *harness) feed(target, input string, value any) *harness {
	h.edges = append(h.edges, Edge{Source: "src", SourceHandle: input, Target: target, TargetHandle: input})
	h.ec.SetOutput("src", input, value)
	return h
}

// connect adds an edge to the node's input that has not produced a value.
func (h *harness) connect(target, input string) *harness {
	h.edges = append(h.edges, Edge{Source: "src", SourceHandle: "pending_" + input, Target: target, TargetHandle: input})
	return h
}

func (h *harness) run(t *testing.T, exec nodeflow.Executor) Outputs {
	t.Helper()
	out, err := exec.Execute(context.Background(), h.nodes[1], h.ec, nodeflow.Services{}, h.edges, h.nodes)
	require.NoError(t, err)
	return out
}

func (h *harness) logged(substr string) bool {
	for _, e := range h.ec.Logs() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestButtonExecutor(t *testing.T) {
	h := newHarness(t, NewNode("b", nodeflow.TypeButton, nil))
	assert.Equal(t, Outputs{"trigger": true}, h.run(t, ButtonExecutor{}))
	assert.True(t, h.logged("ButtonNode 'b' (Start Flow) triggered."))
}

func TestVariableExecutor(t *testing.T) {
	t.Run("configured value", func(t *testing.T) {
		h := newHarness(t, NewNode("v", nodeflow.TypeVariable, map[string]any{"value": "cfg"}))
		assert.Equal(t, Outputs{"value": "cfg"}, h.run(t, VariableExecutor{}))
	})
	t.Run("connected value wins", func(t *testing.T) {
		h := newHarness(t, NewNode("v", nodeflow.TypeVariable, map[string]any{"value": "cfg"})).feed("v", "inputValue", 12)
		assert.Equal(t, Outputs{"value": 12}, h.run(t, VariableExecutor{}))
		assert.True(t, h.logged("Using connected input value."))
	})
	t.Run("nil connected value falls back", func(t *testing.T) {
		h := newHarness(t, NewNode("v", nodeflow.TypeVariable, map[string]any{"value": "cfg"})).feed("v", "inputValue", nil)
		assert.Equal(t, Outputs{"value": "cfg"}, h.run(t, VariableExecutor{}))
	})
	t.Run("unproduced connection falls back", func(t *testing.T) {
		h := newHarness(t, NewNode("v", nodeflow.TypeVariable, map[string]any{"value": false})).connect("v", "inputValue")
		assert.Equal(t, Outputs{"value": false}, h.run(t, VariableExecutor{}))
	})
	t.Run("no value at all", func(t *testing.T) {
		h := newHarness(t, Node{ID: "v", Type: nodeflow.TypeVariable})
		out := h.run(t, VariableExecutor{})
		assert.True(t, out.Fired("value"))
		assert.Nil(t, out["value"])
	})
}

func TestIfStatementBranchExclusivity(t *testing.T) {
	tests := []struct {
		a, b any
		op   string
		want bool
	}{
		{5, 3, ">", true},
		{3, 5, ">", false},
		{3, 5, "<", true},
		{5, 5, ">=", true},
		{5, 5, "≥", true},
		{4, 5, "<=", true},
		{6, 5, "≤", false},
		{5, 5, "===", true},
		{5.0, 5, "==", true},
		{"5", 5, "===", false},
		{"5", 5, "!==", true},
		{"a", "b", "≠", true},
		{"x", "x", "=", true},
		{"hello world", "world", "contains", true},
		{"hello", "he", "startsWith", true},
		{"hello", "lo", "endsWith", true},
		{"hello", "xx", "endsWith", false},
		{"b", "a", ">", true},
		{"10", 9, ">", true},
		{"abc", 1, ">", false},
		{"abc", 1, "<", false},
		{nil, nil, "===", true},
		{nil, 1, ">", false},
		{[]any{1, 2}, "1,2", "contains", true},
		{1, 2, "~", false},
	}
	for _, tt := range tests {
		t.Run(toString(tt.a)+" "+tt.op+" "+toString(tt.b), func(t *testing.T) {
			h := newHarness(t, NewNode("if", nodeflow.TypeIfStatement, map[string]any{"operator": tt.op})).
				feed("if", "var1", tt.a).feed("if", "var2", tt.b)
			out := h.run(t, IfStatementExecutor{})

			require.Len(t, out, 1, "exactly one branch fires")
			assert.Equal(t, tt.want, out.Fired("true"))
			assert.Equal(t, !tt.want, out.Fired("false"))
		})
	}
}

func TestIfStatementOperandSources(t *testing.T) {
	t.Run("config fallback", func(t *testing.T) {
		h := newHarness(t, NewNode("if", nodeflow.TypeIfStatement, map[string]any{"var1": 5, "var2": 3, "operator": ">"}))
		assert.Equal(t, Outputs{"true": true}, h.run(t, IfStatementExecutor{}))
	})
	t.Run("input beats config", func(t *testing.T) {
		h := newHarness(t, NewNode("if", nodeflow.TypeIfStatement, map[string]any{"var1": 5, "var2": 3, "operator": ">"})).feed("if", "var1", 1)
		assert.Equal(t, Outputs{"false": true}, h.run(t, IfStatementExecutor{}))
	})
	t.Run("undefined operand warns", func(t *testing.T) {
		h := newHarness(t, Node{ID: "if", Type: nodeflow.TypeIfStatement, Config: map[string]any{"operator": "==="}})
		assert.Equal(t, Outputs{"true": true}, h.run(t, IfStatementExecutor{}))
		assert.True(t, h.logged("One or both operands are undefined."))
	})
	t.Run("unknown operator warns", func(t *testing.T) {
		h := newHarness(t, NewNode("if", nodeflow.TypeIfStatement, map[string]any{"var1": 1, "var2": 1, "operator": "<>"}))
		assert.Equal(t, Outputs{"false": true}, h.run(t, IfStatementExecutor{}))
		assert.True(t, h.logged("Unknown operator '<>'"))
	})
}

func TestParseOperator(t *testing.T) {
	for _, op := range Operators() {
		got, ok := ParseOperator(string(op))
		assert.True(t, ok)
		assert.Equal(t, op, got)
	}
	got, ok := ParseOperator(" >= ")
	assert.True(t, ok)
	assert.Equal(t, OpGreaterEq, got)
	_, ok = ParseOperator("like")
	assert.False(t, ok)
}

func TestSwitchGating(t *testing.T) {
	on := []any{true, "true", "TRUE", "True", 1, 1.0, "1"}
	for _, status := range on {
		h := newHarness(t, NewNode("sw", nodeflow.TypeSwitch, nil)).feed("sw", "dataIn", "payload").feed("sw", "status", status)
		assert.Equal(t, Outputs{"dataOut": "payload"}, h.run(t, SwitchExecutor{}), "status %#v", status)
	}

	off := []any{false, "false", 0, 2, "yes", nil, ""}
	for _, status := range off {
		h := newHarness(t, NewNode("sw", nodeflow.TypeSwitch, nil)).feed("sw", "dataIn", "payload").feed("sw", "status", status)
		assert.Empty(t, h.run(t, SwitchExecutor{}), "status %#v", status)
	}

	h := newHarness(t, NewNode("sw", nodeflow.TypeSwitch, nil)).feed("sw", "status", true)
	out := h.run(t, SwitchExecutor{})
	assert.True(t, out.Fired("dataOut"), "an undefined payload still passes")
	assert.Nil(t, out["dataOut"])
}

func TestMergeExecutor(t *testing.T) {
	h := newHarness(t, NewNode("m", nodeflow.TypeMerge, nil)).feed("m", "stream1", "a").feed("m", "stream2", 2)
	assert.Equal(t, Outputs{"merged": []any{"a", 2}}, h.run(t, MergeExecutor{}))

	h = newHarness(t, NewNode("m", nodeflow.TypeMerge, nil)).feed("m", "stream1", "a")
	assert.Equal(t, Outputs{"merged": []any{"a", nil}}, h.run(t, MergeExecutor{}))

	h = newHarness(t, NewNode("m", nodeflow.TypeMerge, nil))
	assert.Equal(t, Outputs{"merged": []any{nil, nil}}, h.run(t, MergeExecutor{}))
}

func TestRandomBounds(t *testing.T) {
	exec := NewRandomExecutor(rand.New(rand.NewPCG(1, 2)))
	tests := []struct {
		min, max any
		lo, hi   int64
	}{
		{0, 100, 0, 100},
		{5, 5, 5, 5},
		{-3, 3, -3, 3},
		{10, 1, 1, 10},
		{"2", "4", 2, 4},
		{"abc", 7, 0, 7},
		{nil, nil, 0, 100},
		{0.5, 2.5, 1, 2},
		{-5e18, 5e18, -5e18, 5e18},
		{0, 1e20, 0, math.MaxInt64},
		{-1e20, 1e20, math.MinInt64, math.MaxInt64},
		{1e20, 1e21, math.MaxInt64, math.MaxInt64},
		{-1e21, -1e20, math.MinInt64, math.MinInt64},
	}
	for _, tt := range tests {
		seen := make(map[int64]bool)
		for i := 0; i < 300; i++ {
			h := newHarness(t, Node{ID: "r", Type: nodeflow.TypeRandom, Config: map[string]any{"min": tt.min, "max": tt.max}})
			out := h.run(t, exec)
			n, ok := out["randomNumber"].(int64)
			require.True(t, ok, "%#v", out["randomNumber"])
			require.GreaterOrEqual(t, n, tt.lo)
			require.LessOrEqual(t, n, tt.hi)
			seen[n] = true
		}
		if tt.lo >= -10 && tt.hi <= 100 && tt.hi-tt.lo <= 10 {
			assert.Len(t, seen, int(tt.hi-tt.lo+1), "every value in [%d, %d] appears", tt.lo, tt.hi)
		}
	}
}

func TestRandomDegradesWithLog(t *testing.T) {
	h := newHarness(t, Node{ID: "r", Type: nodeflow.TypeRandom, Config: map[string]any{"min": 9, "max": 1}})
	h.run(t, NewRandomExecutor(nil))
	assert.True(t, h.logged("is greater than 'max' value"))

	h = newHarness(t, Node{ID: "r", Type: nodeflow.TypeRandom, Config: map[string]any{"min": "x"}})
	h.run(t, NewRandomExecutor(nil))
	assert.True(t, h.logged("Invalid 'min' value (x). Defaulting to 0."))
	assert.True(t, h.logged("Invalid 'max' value (undefined). Defaulting to 100."))

	h = newHarness(t, Node{ID: "r", Type: nodeflow.TypeRandom, Config: map[string]any{"min": -1e20, "max": 1e20}})
	h.run(t, NewRandomExecutor(nil))
	assert.True(t, h.logged("'min' value (-100000000000000000000) is outside the integer range. Clamping to -9223372036854775808."))
	assert.True(t, h.logged("'max' value (100000000000000000000) is outside the integer range. Clamping to 9223372036854775807."))

	h = newHarness(t, Node{ID: "r", Type: nodeflow.TypeRandom, Config: map[string]any{"min": 0.2, "max": 0.8}})
	out := h.run(t, NewRandomExecutor(nil))
	assert.Equal(t, 0.2, out["randomNumber"])
}

func TestDelayExecutor(t *testing.T) {
	h := newHarness(t, NewNode("d", nodeflow.TypeDelay, map[string]any{"delayMs": 20}))
	start := time.Now()
	assert.Equal(t, Outputs{"signalOut": true}, h.run(t, DelayExecutor{}))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.True(t, h.logged("Starting delay of 20ms."))

	h = newHarness(t, NewNode("d", nodeflow.TypeDelay, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := DelayExecutor{}.Execute(ctx, h.nodes[1], h.ec, nodeflow.Services{}, nil, h.nodes)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDelayDuration(t *testing.T) {
	assert.Equal(t, DefaultDelay, delayDuration(nil))
	assert.Equal(t, DefaultDelay, delayDuration("soon"))
	assert.Equal(t, DefaultDelay, delayDuration(0))
	assert.Equal(t, time.Duration(0), delayDuration(-5))
	assert.Equal(t, 250*time.Millisecond, delayDuration("250"))
	assert.Equal(t, 1500*time.Microsecond, delayDuration(1.5))
	assert.Equal(t, time.Duration(math.MaxInt64), delayDuration(math.Inf(1)))
	assert.Equal(t, time.Duration(math.MaxInt64), delayDuration(1e300))
	assert.Equal(t, time.Duration(math.MaxInt64), delayDuration("9.3e12"))
}

func TestLoggerExecutor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := newHarness(t, NewNode("lg", nodeflow.TypeLogger, map[string]any{"logLabel": "Result", "logLevel": "warn"})).feed("lg", "logData", 42)
	out, err := LoggerExecutor{}.Execute(context.Background(), h.nodes[1], h.ec, nodeflow.Services{Logger: logger}, h.edges, h.nodes)
	require.NoError(t, err)
	assert.Empty(t, out)

	var entry nodeflow.LogEntry
	for _, e := range h.ec.Logs() {
		if e.Message == "Result:" {
			entry = e
		}
	}
	assert.Equal(t, "lg", entry.NodeID)
	assert.Equal(t, 42, entry.Payload)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "Result:")

	h = newHarness(t, Node{ID: "lg", Type: nodeflow.TypeLogger, Config: map[string]any{"logLevel": "loud"}})
	h.run(t, LoggerExecutor{})
	assert.True(t, h.logged("Log from lg:"))
	assert.True(t, h.logged("Unknown log level 'loud'"))
}

func TestOutputExecutor(t *testing.T) {
	got := map[string]any{}
	svc := nodeflow.Services{Live: nodeflow.LiveOutputFunc(func(_ context.Context, id string, v any) { got[id] = v })}

	h := newHarness(t, NewNode("out", nodeflow.TypeOutput, nil)).feed("out", "content", "<b>hi</b>")
	res, err := OutputExecutor{}.Execute(context.Background(), h.nodes[1], h.ec, svc, h.edges, h.nodes)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, map[string]any{"out": "<b>hi</b>"}, got)
	assert.True(t, h.logged("OutputNode 'out' received content:"))
}

func TestAIExecutor(t *testing.T) {
	mock := llm.NewMockClient(llm.WithLatency(0))

	t.Run("prompt from input", func(t *testing.T) {
		h := newHarness(t, NewNode("ai", nodeflow.TypeAI, map[string]any{"prompt": "cfg", "systemPrompt": "sys", "selectedModelId": "m1"})).
			feed("ai", "prompt", "from input")
		out := h.run(t, NewAIExecutor(mock))
		assert.Equal(t, Outputs{"response": `Mock AI Response for prompt: "from input" (System: sys, Model: m1)`}, out)
	})
	t.Run("blank input falls back to config", func(t *testing.T) {
		h := newHarness(t, NewNode("ai", nodeflow.TypeAI, map[string]any{"prompt": "cfg", "systemPrompt": ""})).feed("ai", "prompt", "   ")
		out := h.run(t, NewAIExecutor(mock))
		assert.Equal(t, Outputs{"response": `Mock AI Response for prompt: "cfg" (System: default, Model: default)`}, out)
	})
	t.Run("empty prompt", func(t *testing.T) {
		called := false
		svc := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
			called = true
			return llm.Response{}, nil
		})
		h := newHarness(t, NewNode("ai", nodeflow.TypeAI, map[string]any{"prompt": ""}))
		assert.Equal(t, Outputs{"error": PromptRequired}, h.run(t, NewAIExecutor(svc)))
		assert.False(t, called)
	})
	t.Run("backend error message", func(t *testing.T) {
		h := newHarness(t, NewNode("ai", nodeflow.TypeAI, map[string]any{"prompt": "please ERROR out"}))
		assert.Equal(t, Outputs{"error": "This is a mock error from AI."}, h.run(t, NewAIExecutor(mock)))
	})
	t.Run("backend failure", func(t *testing.T) {
		svc := llm.ClientFunc(func(context.Context, llm.Request) (llm.Response, error) {
			return llm.Response{}, errors.New("connection refused")
		})
		h := newHarness(t, NewNode("ai", nodeflow.TypeAI, map[string]any{"prompt": "hi"}))
		assert.Equal(t, Outputs{"error": "connection refused"}, h.run(t, NewAIExecutor(svc)))
		assert.True(t, h.logged("Exception during API call."))
	})
}

func TestWithTimeout(t *testing.T) {
	slow := nodeflow.ExecutorFunc(func(ctx context.Context, _ Node, _ *ExecutionContext, _ Services, _ []Edge, _ []Node) (Outputs, error) {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return nodeflow.Signal("late"), nil
	})
	h := newHarness(t, Node{ID: "s", Type: "slow"})
	_, err := WithTimeout(slow, 10*time.Millisecond).Execute(context.Background(), h.nodes[1], h.ec, nodeflow.Services{}, nil, h.nodes)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, nodeflow.Executor(ButtonExecutor{}), WithTimeout(ButtonExecutor{}, 0))
}

func TestWithTimeoutReturnsPanicAsError(t *testing.T) {
	bad := nodeflow.ExecutorFunc(func(context.Context, Node, *ExecutionContext, Services, []Edge, []Node) (Outputs, error) {
		panic("kaboom")
	})
	h := newHarness(t, Node{ID: "p", Type: "bad"})
	_, err := WithTimeout(bad, time.Second).Execute(context.Background(), h.nodes[1], h.ec, nodeflow.Services{}, nil, h.nodes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: kaboom")
}

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry(nil,
		WithRand(rand.New(rand.NewPCG(3, 4))),
		WithNodeTimeout(nodeflow.TypeDelay, time.Second),
		WithBindings(nodeflow.Bind("custom", ButtonExecutor{})),
	)
	require.NoError(t, err)
	for _, tag := range nodeflow.BuiltinTypes() {
		_, err := r.Lookup(tag)
		assert.NoError(t, err, tag)
	}
	_, err = r.Lookup("custom")
	assert.NoError(t, err)

	_, err = DefaultRegistry(nil, WithBindings(nodeflow.Bind(nodeflow.TypeButton, ButtonExecutor{})))
	assert.ErrorIs(t, err, nodeflow.ErrDuplicateNodeType)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(nodeflow.BuiltinTypes()))
	for _, tag := range nodeflow.BuiltinTypes() {
		def, ok := DefinitionFor(tag)
		require.True(t, ok, tag)
		assert.NotEmpty(t, def.Label)
	}

	ifDef, _ := DefinitionFor(nodeflow.TypeIfStatement)
	_, ok := ifDef.Input("var1")
	assert.True(t, ok)
	_, ok = ifDef.Output("true")
	assert.True(t, ok)

	n := NewNode("r", nodeflow.TypeRandom, map[string]any{"max": 6})
	assert.Equal(t, map[string]any{"min": 0, "max": 6}, n.Config)
}
