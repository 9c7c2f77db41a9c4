package nodes

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"nodeflow"
)

// WithTimeout bounds every call of exec to d. The wrapped executor sees a
// context that is cancelled when the deadline passes; if it ignores that,
// the call still returns context.DeadlineExceeded but the executor keeps
// running in its own goroutine until it returns, and its result is
// discarded. A panic in exec is returned as an error.
func WithTimeout(exec nodeflow.Executor, d time.Duration) nodeflow.Executor {
	if d <= 0 {
		return exec
	}
	return &timeoutExecutor{Executor: exec, timeout: d}
}

type timeoutExecutor struct {
	nodeflow.Executor
	timeout time.Duration
}

type executeResult struct {
	outputs Outputs
	err     error
}

func (t *timeoutExecutor) Execute(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan executeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- executeResult{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		out, err := t.Executor.Execute(ctx, node, ec, svc, edges, nodes)
		done <- executeResult{outputs: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.outputs, res.err
	}
}
