// Package graphfile loads flow graphs from disk. Three formats are
// understood: the editor's JSON snapshot, HCL, and the line DSL.
package graphfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"nodeflow"
	"nodeflow/dsl"
)

// ErrUnknownFormat is returned for a file extension no loader handles.
var ErrUnknownFormat = errors.New("graphfile: unknown graph format")

// Load reads path and decodes it according to its extension: .json, .hcl
// or .flow.
func Load(path string) (nodeflow.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nodeflow.Graph{}, fmt.Errorf("read graph: %w", err)
	}

	var g nodeflow.Graph
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		g, err = DecodeJSON(bytes.NewReader(src))
	case ".hcl":
		g, err = DecodeHCL(src, path)
	case ".flow":
		g, err = dsl.Parse(string(src))
	default:
		return nodeflow.Graph{}, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nodeflow.Graph{}, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// DecodeJSON reads a snapshot in the editor's JSON shape. Node data is kept
// as saved; edges without an id get one.
func DecodeJSON(r io.Reader) (nodeflow.Graph, error) {
	var g nodeflow.Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nodeflow.Graph{}, fmt.Errorf("decode json graph: %w", err)
	}
	for i := range g.Edges {
		if g.Edges[i].ID == "" {
			g.Edges[i].ID = nodeflow.EdgeLabel(g.Edges[i])
		}
	}
	if err := g.Validate(); err != nil {
		return nodeflow.Graph{}, err
	}
	return g, nil
}

// EncodeJSON writes g in the shape DecodeJSON reads.
func EncodeJSON(w io.Writer, g nodeflow.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}
