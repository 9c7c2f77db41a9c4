package nodeflow

import "context"

// NodeType is the tag that selects both a node's executor and its static
// socket interface.
type NodeType string

const (
	TypeVariable    NodeType = "variableNode"
	TypeIfStatement NodeType = "ifStatementNode"
	TypeAI          NodeType = "aiNode"
	TypeSwitch      NodeType = "switchNode"
	TypeButton      NodeType = "buttonNode"
	TypeDelay       NodeType = "delayNode"
	TypeMerge       NodeType = "mergeNode"
	TypeLogger      NodeType = "loggerNode"
	TypeRandom      NodeType = "randomNode"
	TypeOutput      NodeType = "outputNode"
)

var builtinTypes = []NodeType{
	TypeVariable,
	TypeIfStatement,
	TypeAI,
	TypeSwitch,
	TypeButton,
	TypeDelay,
	TypeMerge,
	TypeLogger,
	TypeRandom,
	TypeOutput,
}

// BuiltinTypes returns the node types shipped with the engine.
func BuiltinTypes() []NodeType {
	return append([]NodeType(nil), builtinTypes...)
}

// ParseNodeType converts a raw tag into one of the built-in node types.
func ParseNodeType(raw string) (NodeType, error) {
	for _, t := range builtinTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", &UnknownNodeTypeError{Type: NodeType(raw)}
}

// SocketType is the semantic type of a socket.
type SocketType string

const (
	SocketAny     SocketType = "any"
	SocketString  SocketType = "string"
	SocketNumber  SocketType = "number"
	SocketBoolean SocketType = "boolean"
	SocketSignal  SocketType = "signal"
)

// Socket is a named, typed input or output slot on a node type.
type Socket struct {
	Name  string     `json:"name"`
	Type  SocketType `json:"type"`
	Label string     `json:"label"`
}

// TypeDefinition is the static interface shared by every node of one type.
type TypeDefinition struct {
	Type        NodeType       `json:"type"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Category    string         `json:"category"`
	Inputs      []Socket       `json:"inputs"`
	Outputs     []Socket       `json:"outputs"`
	Defaults    map[string]any `json:"defaultData,omitempty"`
}

// Input returns the declared input socket with the given name.
func (d TypeDefinition) Input(name string) (Socket, bool) {
	return findSocket(d.Inputs, name)
}

// Output returns the declared output socket with the given name.
func (d TypeDefinition) Output(name string) (Socket, bool) {
	return findSocket(d.Outputs, name)
}

func findSocket(sockets []Socket, name string) (Socket, bool) {
	for _, s := range sockets {
		if s.Name == name {
			return s, true
		}
	}
	return Socket{}, false
}

// Node is one instance of a typed unit of work in the graph.
type Node struct {
	ID     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Config map[string]any `json:"data,omitempty"`
}

// ConfigValue returns the configured value for key, if any.
func (n Node) ConfigValue(key string) (any, bool) {
	if n.Config == nil {
		return nil, false
	}
	v, ok := n.Config[key]
	return v, ok
}

// Edge connects one node's output socket to another node's input socket. An
// empty handle means the edge carries no socket name on that side.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Executor is the behavior bound to a node type.
//
// Execute must not fail for missing or mistyped inputs; it substitutes a
// type-appropriate default and records the substitution in ec. A returned
// error aborts the whole run.
type Executor interface {
	Execute(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, node Node, ec *ExecutionContext, svc Services, edges []Edge, nodes []Node) (Outputs, error) {
	if f == nil {
		return Outputs{}, nil
	}
	return f(ctx, node, ec, svc, edges, nodes)
}
