package graphfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"nodeflow"
	"nodeflow/nodes"
)

// hclFlowFile is the top-level structure of an HCL graph file:
//
//	start = "btn"
//
//	node "btn" {
//	  type       = "buttonNode"
//	  buttonText = "Go"
//	}
//
//	edge {
//	  from = "btn.trigger"
//	  to   = "check.var1"
//	}
type hclFlowFile struct {
	Start string     `hcl:"start,optional"`
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID     string   `hcl:"id,label"`
	Type   string   `hcl:"type"`
	Remain hcl.Body `hcl:",remain"`
}

type hclEdge struct {
	ID   string `hcl:"id,optional"`
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// DecodeHCL parses src as an HCL graph. Every node attribute other than
// type becomes config, on top of the type's default data. A file without a
// start attribute yields a graph with no start node.
func DecodeHCL(src []byte, filename string) (nodeflow.Graph, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nodeflow.Graph{}, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFlowFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nodeflow.Graph{}, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	g := nodeflow.Graph{StartNodeID: parsed.Start}
	for _, hn := range parsed.Nodes {
		node, err := hn.toNode()
		if err != nil {
			return nodeflow.Graph{}, err
		}
		g.Nodes = append(g.Nodes, node)
	}
	for _, he := range parsed.Edges {
		edge, err := he.toEdge()
		if err != nil {
			return nodeflow.Graph{}, err
		}
		g.Edges = append(g.Edges, edge)
	}
	if err := g.Validate(); err != nil {
		return nodeflow.Graph{}, err
	}
	return g, nil
}

func (hn *hclNode) toNode() (nodeflow.Node, error) {
	nodeType, err := nodeflow.ParseNodeType(hn.Type)
	if err != nil {
		return nodeflow.Node{}, fmt.Errorf("node %q: %w", hn.ID, err)
	}

	attrs, diags := hn.Remain.JustAttributes()
	if diags.HasErrors() {
		return nodeflow.Node{}, fmt.Errorf("node %q: %w", hn.ID, diags)
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	config := make(map[string]any, len(attrs))
	for _, name := range names {
		val, diags := attrs[name].Expr.Value(nil)
		if diags.HasErrors() {
			return nodeflow.Node{}, fmt.Errorf("node %q attribute %q: %w", hn.ID, name, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nodeflow.Node{}, fmt.Errorf("node %q attribute %q: %w", hn.ID, name, err)
		}
		config[name] = native
	}
	return nodes.NewNode(hn.ID, nodeType, config), nil
}

func (he *hclEdge) toEdge() (nodeflow.Edge, error) {
	source, sourceHandle, err := splitEndpoint(he.From)
	if err != nil {
		return nodeflow.Edge{}, err
	}
	target, targetHandle, err := splitEndpoint(he.To)
	if err != nil {
		return nodeflow.Edge{}, err
	}
	e := nodeflow.Edge{ID: he.ID, Source: source, SourceHandle: sourceHandle, Target: target, TargetHandle: targetHandle}
	if e.ID == "" {
		e.ID = nodeflow.EdgeLabel(e)
	}
	return e, nil
}

func splitEndpoint(raw string) (string, string, error) {
	idx := strings.LastIndex(raw, ".")
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", fmt.Errorf("edge endpoint %q must be <node>.<socket>", raw)
	}
	return raw[:idx], raw[idx+1:], nil
}

// ctyToNative recursively converts a cty.Value to its most natural Go
// counterpart. Numbers become float64, like JSON numbers do.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, el := it.Element()
			native, err := ctyToNative(el)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		m := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, el := it.Element()
			native, err := ctyToNative(el)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			m[key.AsString()] = native
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}
