package nodes

import (
	"sort"

	"nodeflow"
)

var nodeCatalog = make(map[nodeflow.NodeType]nodeflow.TypeDefinition)

// RegisterDefinition makes a node type definition discoverable.
func RegisterDefinition(def nodeflow.TypeDefinition) {
	if def.Type == "" {
		return
	}
	nodeCatalog[def.Type] = def
}

// Definitions returns the known node definitions sorted by type.
func Definitions() []nodeflow.TypeDefinition {
	types := make([]string, 0, len(nodeCatalog))
	for t := range nodeCatalog {
		types = append(types, string(t))
	}
	sort.Strings(types)

	result := make([]nodeflow.TypeDefinition, 0, len(types))
	for _, t := range types {
		result = append(result, nodeCatalog[nodeflow.NodeType(t)])
	}
	return result
}

// DefinitionFor returns the definition registered for t.
func DefinitionFor(t nodeflow.NodeType) (nodeflow.TypeDefinition, bool) {
	def, ok := nodeCatalog[t]
	return def, ok
}

// NewNode creates a node of type t whose config starts from the type's
// default data, overlaid with config.
func NewNode(id string, t nodeflow.NodeType, config map[string]any) nodeflow.Node {
	merged := make(map[string]any)
	if def, ok := nodeCatalog[t]; ok {
		for k, v := range def.Defaults {
			merged[k] = v
		}
	}
	for k, v := range config {
		merged[k] = v
	}
	return nodeflow.Node{ID: id, Type: t, Config: merged}
}
