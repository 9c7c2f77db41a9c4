package flows

import (
	"context"
	"sync"
)

// emitEvent emits a flow event to all registered monitors
func (f *FlowExecutor) emitEvent(ctx context.Context, event FlowEvent) {
	f.monitorMux.RLock()
	monitors := append([]FlowMonitor(nil), f.monitors...)
	f.monitorMux.RUnlock()

	if len(monitors) == 0 {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = f.now()
	}

	for _, monitor := range monitors {
		monitor.Notify(ctx, event)
	}
}

// MonitorFunc adapts a function to FlowMonitor.
type MonitorFunc func(ctx context.Context, event FlowEvent)

func (m MonitorFunc) Notify(ctx context.Context, event FlowEvent) {
	m(ctx, event)
}

// RecordingMonitor keeps every event it sees. Useful for tests and for
// serving recent activity.
type RecordingMonitor struct {
	mu     sync.RWMutex
	events []FlowEvent
}

func (m *RecordingMonitor) Notify(_ context.Context, event FlowEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns the recorded events in order.
func (m *RecordingMonitor) Events() []FlowEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]FlowEvent(nil), m.events...)
}

// Clear drops every recorded event.
func (m *RecordingMonitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
