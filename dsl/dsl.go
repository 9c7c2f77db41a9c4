// Package dsl parses the line-oriented flow language:
//
//	# comment
//	node btn = buttonNode buttonText="Go"
//	node check = ifStatementNode var1=5 operator=">" var2=3
//	connect btn.trigger -> check.var1
//	start btn
//
// Unquoted values that read as numbers, booleans or null are typed; quoted
// values are always strings. Nodes start from their type's default data.
package dsl

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"nodeflow"
	"nodeflow/nodes"
)

// ErrNoNodes is returned for a script that declares no node.
var ErrNoNodes = errors.New("dsl: no nodes defined")

type token struct {
	text   string
	quoted bool
}

type parser struct {
	graph    nodeflow.Graph
	declared map[string]struct{}
}

// Parse builds a graph from script. Without a start directive the graph has
// no start node and running it fails.
func Parse(script string) (nodeflow.Graph, error) {
	p := &parser{declared: make(map[string]struct{})}
	if err := p.parse(script); err != nil {
		return nodeflow.Graph{}, err
	}
	return p.build()
}

func (p *parser) parse(script string) error {
	scanner := bufio.NewScanner(strings.NewReader(script))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		tokens, err := tokenizeLine(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(tokens) == 0 {
			continue
		}
		switch tokens[0].text {
		case "node":
			err = p.parseNode(tokens)
		case "start":
			err = p.parseStart(tokens)
		case "connect":
			err = p.parseConnect(tokens)
		default:
			err = fmt.Errorf("unsupported directive %q", tokens[0].text)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return scanner.Err()
}

func (p *parser) parseNode(tokens []token) error {
	if len(tokens) < 4 || tokens[2].text != "=" {
		return fmt.Errorf("invalid node definition, expected `node <id> = <type> key=value...`")
	}
	id := tokens[1].text
	if _, exists := p.declared[id]; exists {
		return fmt.Errorf("node %q already defined", id)
	}
	nodeType, err := nodeflow.ParseNodeType(tokens[3].text)
	if err != nil {
		return err
	}

	config := make(map[string]any)
	for _, arg := range tokens[4:] {
		key, value, ok := strings.Cut(arg.text, "=")
		if !ok || key == "" {
			return fmt.Errorf("node %q: expected key=value, got %q", id, arg.text)
		}
		config[key] = parseValue(value, arg.quoted)
	}

	p.declared[id] = struct{}{}
	p.graph.Nodes = append(p.graph.Nodes, nodes.NewNode(id, nodeType, config))
	return nil
}

func (p *parser) parseStart(tokens []token) error {
	if len(tokens) != 2 {
		return fmt.Errorf("start directive expects a single node id")
	}
	p.graph.StartNodeID = tokens[1].text
	return nil
}

func (p *parser) parseConnect(tokens []token) error {
	if len(tokens) != 4 || tokens[2].text != "->" {
		return fmt.Errorf("invalid connect, expected `connect <node>.<output> -> <node>.<input>`")
	}
	source, sourceHandle, err := splitEndpoint(tokens[1].text)
	if err != nil {
		return err
	}
	target, targetHandle, err := splitEndpoint(tokens[3].text)
	if err != nil {
		return err
	}
	edge := nodeflow.Edge{Source: source, SourceHandle: sourceHandle, Target: target, TargetHandle: targetHandle}
	edge.ID = nodeflow.EdgeLabel(edge)
	p.graph.Edges = append(p.graph.Edges, edge)
	return nil
}

func (p *parser) build() (nodeflow.Graph, error) {
	if len(p.graph.Nodes) == 0 {
		return nodeflow.Graph{}, ErrNoNodes
	}
	if err := p.graph.Validate(); err != nil {
		return nodeflow.Graph{}, err
	}
	return p.graph, nil
}

// splitEndpoint splits "node.socket" at its last dot.
func splitEndpoint(raw string) (string, string, error) {
	idx := strings.LastIndex(raw, ".")
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", fmt.Errorf("endpoint %q must be <node>.<socket>", raw)
	}
	return raw[:idx], raw[idx+1:], nil
}

func parseValue(raw string, quoted bool) any {
	if quoted {
		return raw
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func tokenizeLine(line string) ([]token, error) {
	var tokens []token
	var buf strings.Builder
	inQuote := false
	quoted := false
	escaping := false

	flush := func() {
		if buf.Len() > 0 || quoted {
			tokens = append(tokens, token{text: buf.String(), quoted: quoted})
		}
		buf.Reset()
		quoted = false
	}

	for _, r := range line {
		switch {
		case escaping:
			buf.WriteRune(r)
			escaping = false
		case r == '\\':
			escaping = true
		case r == '"':
			inQuote = !inQuote
			quoted = true
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			buf.WriteRune(r)
		}
	}

	if escaping {
		return nil, fmt.Errorf("unfinished escape sequence")
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quoted string")
	}
	flush()
	return tokens, nil
}
