// Package runlog records finished flow runs so they can be listed and
// inspected later.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"nodeflow"
	kvstore "nodeflow/kv"
)

// ErrRecordNotFound is returned by Load for an unknown run id.
var ErrRecordNotFound = errors.New("runlog: record not found")

// Record is the persisted outcome of one run.
type Record struct {
	RunID       string                      `json:"runId"`
	FlowID      string                      `json:"flowId,omitempty"`
	StartNodeID string                      `json:"startNodeId"`
	Status      nodeflow.Status             `json:"status"`
	Error       string                      `json:"error,omitempty"`
	StartedAt   time.Time                   `json:"startedAt"`
	FinishedAt  time.Time                   `json:"finishedAt"`
	Logs        []nodeflow.LogEntry         `json:"logs"`
	Outputs     map[string]nodeflow.Outputs `json:"outputs"`
}

// Duration is the wall time between the first and last log entry.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromContext captures the state of a finished run.
func FromContext(flowID, startNodeID string, ec *nodeflow.ExecutionContext) Record {
	logs := ec.Logs()
	rec := Record{
		RunID:       ec.RunID(),
		FlowID:      flowID,
		StartNodeID: startNodeID,
		Status:      ec.Status(),
		Logs:        logs,
		Outputs:     ec.Outputs(),
	}
	if err := ec.Err(); err != nil {
		rec.Error = err.Error()
	}
	if len(logs) > 0 {
		rec.StartedAt = logs[0].Time
		rec.FinishedAt = logs[len(logs)-1].Time
	}
	return rec
}

// Recorder stores run records.
type Recorder interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, runID string) (Record, error)
	// List returns run ids, oldest first.
	List(ctx context.Context) ([]string, error)
}

// MemoryRecorder keeps records in memory.
type MemoryRecorder struct {
	mu    sync.RWMutex
	order []string
	store map[string]Record
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		store: make(map[string]Record),
	}
}

func (m *MemoryRecorder) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[rec.RunID]; !exists {
		m.order = append(m.order, rec.RunID)
	}
	m.store[rec.RunID] = rec
	return nil
}

func (m *MemoryRecorder) Load(_ context.Context, runID string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.store[runID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, runID)
	}
	return rec, nil
}

func (m *MemoryRecorder) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order), nil
}

const keyPrefix = "run:"

// KVRecorder persists records as JSON in a kv store. Keys embed the start
// time so listing is chronological.
type KVRecorder struct {
	store kvstore.KVStore
	mu    sync.RWMutex
}

func NewKVRecorder(store kvstore.KVStore) *KVRecorder {
	return &KVRecorder{
		store: store,
	}
}

func (r *KVRecorder) Save(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := r.deleteLocked(rec.RunID); err != nil {
		return err
	}
	return r.store.Put(recordKey(rec), data)
}

func (r *KVRecorder) Load(_ context.Context, runID string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, err := r.findLocked(runID)
	if err != nil {
		return Record{}, err
	}
	data, err := r.store.Get(key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, runID)
		}
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return rec, nil
}

func (r *KVRecorder) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, err := r.store.Keys(keyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, runIDFromKey(k))
	}
	return ids, nil
}

func (r *KVRecorder) findLocked(runID string) (string, error) {
	keys, err := r.store.Keys(keyPrefix)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if runIDFromKey(k) == runID {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrRecordNotFound, runID)
}

func (r *KVRecorder) deleteLocked(runID string) error {
	key, err := r.findLocked(runID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.store.Delete(key)
}

// recordKey is run:<start time>:<run id>. The fixed-width UTC timestamp
// sorts lexically in time order.
func recordKey(rec Record) string {
	return keyPrefix + rec.StartedAt.UTC().Format("20060102T150405.000000000Z") + ":" + rec.RunID
}

func runIDFromKey(key string) string {
	rest := strings.TrimPrefix(key, keyPrefix)
	if _, id, ok := strings.Cut(rest, ":"); ok {
		return id
	}
	return rest
}
