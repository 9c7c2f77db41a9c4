package nodeflow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNodeType   = errors.New("node type cannot be empty")
	ErrNilExecutor       = errors.New("executor cannot be nil")
	ErrDuplicateNodeType = errors.New("node type already registered")
	ErrNoExecutor        = errors.New("no executor for node type")
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrMissingStartNode  = errors.New("flow execution requires a start node")
	ErrNodeNotFound      = errors.New("node not found")
	ErrEmptyNodeID       = errors.New("node id cannot be empty")
	ErrDuplicateNodeID   = errors.New("node id declared more than once")
)

// UnknownNodeTypeError reports a type tag that has no executor or is not a
// built-in type.
type UnknownNodeTypeError struct {
	Type NodeType
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("no executor for node type %s", e.Type)
}

func (e *UnknownNodeTypeError) Unwrap() error {
	return ErrNoExecutor
}

// NodeNotFoundError reports a node id that is absent from the snapshot.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %s not found", e.ID)
}

func (e *NodeNotFoundError) Unwrap() error {
	return ErrNodeNotFound
}
