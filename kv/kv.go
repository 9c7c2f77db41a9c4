// Package kv provides the byte-oriented key-value stores run history is
// persisted in.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: key not found")

// KVStore is a flat key-value store.
type KVStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Keys returns the keys starting with prefix in sorted order.
	Keys(prefix string) ([]string, error)
	Close() error
}

// InMemoryKVStore keeps everything in a map.
type InMemoryKVStore struct {
	data map[string][]byte
	mu   sync.RWMutex
}

func NewInMemoryKVStore() *InMemoryKVStore {
	return &InMemoryKVStore{
		data: make(map[string][]byte),
	}
}

func (kv *InMemoryKVStore) Get(key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, exists := kv.data[key]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return slices.Clone(value), nil
}

func (kv *InMemoryKVStore) Put(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.data[key] = slices.Clone(value)
	return nil
}

func (kv *InMemoryKVStore) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.data, key)
	return nil
}

func (kv *InMemoryKVStore) Keys(prefix string) ([]string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return keysWithPrefix(kv.data, prefix), nil
}

func (kv *InMemoryKVStore) Close() error {
	return nil
}

// FileBasedKVStore keeps a map in memory and rewrites a JSON file on every
// change.
type FileBasedKVStore struct {
	filePath string
	data     map[string][]byte
	mu       sync.RWMutex
}

// NewFileBasedKVStore opens filePath, loading any existing contents. A
// missing file is created on the first write.
func NewFileBasedKVStore(filePath string) (*FileBasedKVStore, error) {
	store := &FileBasedKVStore{
		filePath: filePath,
		data:     make(map[string][]byte),
	}

	raw, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return store, nil
	case err != nil:
		return nil, fmt.Errorf("open kv file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &store.data); err != nil {
			return nil, fmt.Errorf("decode kv file %s: %w", filePath, err)
		}
	}
	return store, nil
}

func (kv *FileBasedKVStore) Get(key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	value, exists := kv.data[key]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return slices.Clone(value), nil
}

func (kv *FileBasedKVStore) Put(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	kv.data[key] = slices.Clone(value)
	return kv.saveLocked()
}

func (kv *FileBasedKVStore) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.data, key)
	return kv.saveLocked()
}

func (kv *FileBasedKVStore) Keys(prefix string) ([]string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	return keysWithPrefix(kv.data, prefix), nil
}

func (kv *FileBasedKVStore) Close() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return kv.saveLocked()
}

// saveLocked writes through a temp file and rename. Callers hold mu.
func (kv *FileBasedKVStore) saveLocked() error {
	data, err := json.MarshalIndent(kv.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(kv.filePath), filepath.Base(kv.filePath)+".*")
	if err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write kv file: %w", err)
	}
	return os.Rename(tmp.Name(), kv.filePath)
}

func keysWithPrefix(data map[string][]byte, prefix string) []string {
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(data)) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}
