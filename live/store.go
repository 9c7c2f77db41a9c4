// Package live collects the values Output nodes surface while a flow runs
// and forwards them to observers.
package live

import (
	"context"
	"maps"
	"sync"

	"nodeflow"
)

// Store keeps the latest live value per node.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

var _ nodeflow.LiveOutput = (*Store)(nil)

func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

func (s *Store) RecordLiveOutput(_ context.Context, nodeID string, value any) {
	s.mu.Lock()
	s.values[nodeID] = value
	s.mu.Unlock()
}

// Get returns the latest value recorded for nodeID.
func (s *Store) Get(nodeID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[nodeID]
	return v, ok
}

// Snapshot copies every recorded value.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Reset forgets every value.
func (s *Store) Reset() {
	s.mu.Lock()
	clear(s.values)
	s.mu.Unlock()
}

// Fanout forwards each value to every sink in order.
type Fanout []nodeflow.LiveOutput

func (f Fanout) RecordLiveOutput(ctx context.Context, nodeID string, value any) {
	for _, sink := range f {
		if sink != nil {
			sink.RecordLiveOutput(ctx, nodeID, value)
		}
	}
}
