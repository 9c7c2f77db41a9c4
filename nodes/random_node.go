package nodes

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"nodeflow"
)

// RandomExecutor outputs a uniform integer in [min, max]. Swapped bounds are
// reordered rather than rejected.
type RandomExecutor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomExecutor uses rng for generation. A nil rng uses the global
// source.
func NewRandomExecutor(rng *rand.Rand) *RandomExecutor {
	return &RandomExecutor{rng: rng}
}

func (r *RandomExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, _ []Edge, _ []Node) (Outputs, error) {
	rawMin, _ := node.ConfigValue("min")
	rawMax, _ := node.ConfigValue("max")
	lo, hi := toNumber(rawMin), toNumber(rawMax)

	if math.IsNaN(lo) || math.IsInf(lo, 0) {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': Invalid 'min' value (%s). Defaulting to 0.", node.ID, toString(rawMin)), node.ID, nil)
		lo = 0
	}
	if math.IsNaN(hi) || math.IsInf(hi, 0) {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': Invalid 'max' value (%s). Defaulting to 100.", node.ID, toString(rawMax)), node.ID, nil)
		hi = 100
	}
	if lo > hi {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': 'min' value (%s) is greater than 'max' value (%s). Swapping them.", node.ID, formatNumber(lo), formatNumber(hi)), node.ID, nil)
		lo, hi = hi, lo
	}

	if math.Ceil(lo) > math.Floor(hi) {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': No integer lies between %s and %s. Outputting min.", node.ID, formatNumber(lo), formatNumber(hi)), node.ID, nil)
		return Outputs{"randomNumber": lo}, nil
	}

	first, clamped := toInt64(math.Ceil(lo))
	if clamped {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': 'min' value (%s) is outside the integer range. Clamping to %d.", node.ID, formatNumber(lo), first), node.ID, nil)
	}
	last, clamped := toInt64(math.Floor(hi))
	if clamped {
		ec.AddLog(fmt.Sprintf("RandomNode '%s': 'max' value (%s) is outside the integer range. Clamping to %d.", node.ID, formatNumber(hi), last), node.ID, nil)
	}

	n := first + int64(r.uint64N(uint64(last-first)))
	ec.AddLog(fmt.Sprintf("RandomNode '%s': Generated random number %d (Min: %s, Max: %s).", node.ID, n, formatNumber(lo), formatNumber(hi)), node.ID,
		map[string]any{"min": lo, "max": hi, "randomNumber": n})
	return Outputs{"randomNumber": n}, nil
}

// toInt64 converts an integral float, saturating at the int64 bounds.
// 1<<63 is one past math.MaxInt64.
func toInt64(f float64) (int64, bool) {
	switch {
	case f >= 1<<63:
		return math.MaxInt64, true
	case f < -(1 << 63):
		return math.MinInt64, true
	}
	return int64(f), false
}

// uint64N draws uniformly from [0, span]. A span of math.MaxUint64 covers
// every value.
func (r *RandomExecutor) uint64N(span uint64) uint64 {
	if r != nil && r.rng != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if span == math.MaxUint64 {
			return r.rng.Uint64()
		}
		return r.rng.Uint64N(span + 1)
	}
	if span == math.MaxUint64 {
		return rand.Uint64()
	}
	return rand.Uint64N(span + 1)
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeRandom,
		Label:       "Random Number",
		Description: "Outputs a random number within a specified range.",
		Category:    "Input",
		Inputs:      []nodeflow.Socket{socket("trigger", nodeflow.SocketSignal, "Regenerate (Optional)")},
		Outputs:     []nodeflow.Socket{socket("randomNumber", nodeflow.SocketNumber, "Number")},
		Defaults:    map[string]any{"min": 0, "max": 100},
	})
}
