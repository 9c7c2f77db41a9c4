package nodeflow

import (
	"fmt"
	"sort"
)

// Binding pairs a node type with the executor that runs it.
type Binding struct {
	Type     NodeType
	Executor Executor
}

// Bind is shorthand for constructing a Binding.
func Bind(t NodeType, exec Executor) Binding {
	return Binding{Type: t, Executor: exec}
}

// Registry resolves node types to executors. It is immutable once built.
type Registry struct {
	executors map[NodeType]Executor
}

// NewRegistry validates every binding and builds a registry. Empty tags, nil
// executors and duplicate tags are rejected here rather than at run time.
func NewRegistry(bindings ...Binding) (*Registry, error) {
	r := &Registry{executors: make(map[NodeType]Executor, len(bindings))}
	for _, b := range bindings {
		if b.Type == "" {
			return nil, ErrInvalidNodeType
		}
		if b.Executor == nil {
			return nil, fmt.Errorf("%s: %w", b.Type, ErrNilExecutor)
		}
		if _, exists := r.executors[b.Type]; exists {
			return nil, fmt.Errorf("%s: %w", b.Type, ErrDuplicateNodeType)
		}
		r.executors[b.Type] = b.Executor
	}
	return r, nil
}

// Lookup returns the executor bound to t.
func (r *Registry) Lookup(t NodeType) (Executor, error) {
	if r != nil {
		if exec, ok := r.executors[t]; ok {
			return exec, nil
		}
	}
	return nil, &UnknownNodeTypeError{Type: t}
}

// Types returns the registered node types sorted by tag.
func (r *Registry) Types() []NodeType {
	if r == nil {
		return nil
	}
	types := make([]NodeType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// With returns a copy of r with extra bindings added.
func (r *Registry) With(bindings ...Binding) (*Registry, error) {
	all := make([]Binding, 0, len(bindings))
	if r != nil {
		for t, exec := range r.executors {
			all = append(all, Bind(t, exec))
		}
	}
	all = append(all, bindings...)
	return NewRegistry(all...)
}
