package nodes

import (
	"context"
	"fmt"
	"strings"

	"nodeflow"
)

// Operator is a comparison understood by IfStatementExecutor.
type Operator string

const (
	OpEqual      Operator = "="
	OpNotEqual   Operator = "≠"
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpGreaterEq  Operator = "≥"
	OpLessEq     Operator = "≤"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "startsWith"
	OpEndsWith   Operator = "endsWith"
)

var operatorAliases = map[string]Operator{
	"=": OpEqual, "==": OpEqual, "===": OpEqual,
	"≠": OpNotEqual, "!=": OpNotEqual, "!==": OpNotEqual,
	">": OpGreater,
	"<": OpLess,
	"≥": OpGreaterEq, ">=": OpGreaterEq,
	"≤": OpLessEq, "<=": OpLessEq,
	"contains":   OpContains,
	"startsWith": OpStartsWith,
	"endsWith":   OpEndsWith,
}

// Operators lists the canonical comparison operators.
func Operators() []Operator {
	return []Operator{OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEq, OpLessEq, OpContains, OpStartsWith, OpEndsWith}
}

// ParseOperator maps a configured operator, including its ASCII spellings,
// to its canonical form.
func ParseOperator(raw string) (Operator, bool) {
	op, ok := operatorAliases[strings.TrimSpace(raw)]
	return op, ok
}

// Compare evaluates a op b.
func Compare(a, b any, op Operator) bool {
	switch op {
	case OpEqual:
		return strictEqual(a, b)
	case OpNotEqual:
		return !strictEqual(a, b)
	case OpGreater:
		c, ok := relational(a, b)
		return ok && c > 0
	case OpLess:
		c, ok := relational(a, b)
		return ok && c < 0
	case OpGreaterEq:
		c, ok := relational(a, b)
		return ok && c >= 0
	case OpLessEq:
		c, ok := relational(a, b)
		return ok && c <= 0
	case OpContains:
		return strings.Contains(toString(a), toString(b))
	case OpStartsWith:
		return strings.HasPrefix(toString(a), toString(b))
	case OpEndsWith:
		return strings.HasSuffix(toString(a), toString(b))
	}
	return false
}

// IfStatementExecutor compares var1 with var2 and fires exactly one of the
// true/false signals. Operands come from connected inputs, falling back to
// the node's config.
type IfStatementExecutor struct{}

func (IfStatementExecutor) Execute(_ context.Context, node Node, ec *ExecutionContext, _ Services, edges []Edge, nodes []Node) (Outputs, error) {
	a, _ := inputOrConfig(ec, node, "var1", edges, nodes)
	b, _ := inputOrConfig(ec, node, "var2", edges, nodes)
	rawOp, _ := node.ConfigValue("operator")
	opText := toString(rawOp)

	ec.AddLog(fmt.Sprintf("IfStatementNode '%s': Executing with Operand A: %s, Operand B: %s, Operator: %s", node.ID, toString(a), toString(b), opText), node.ID,
		map[string]any{"operandA": a, "operandB": b, "operator": rawOp})

	if a == nil || b == nil {
		ec.AddLog(fmt.Sprintf("IfStatementNode '%s': One or both operands are undefined. Evaluation may not be accurate.", node.ID), node.ID,
			map[string]any{"operandA": a, "operandB": b})
	}

	result := false
	if op, ok := ParseOperator(opText); ok {
		result = Compare(a, b, op)
	} else {
		ec.AddLog(fmt.Sprintf("IfStatementNode '%s': Unknown operator '%s'. Defaulting to false.", node.ID, opText), node.ID, map[string]any{"operator": rawOp})
	}

	ec.AddLog(fmt.Sprintf("IfStatementNode '%s': Condition result is %t.", node.ID, result), node.ID, map[string]any{"result": result})
	if result {
		return nodeflow.Signal("true"), nil
	}
	return nodeflow.Signal("false"), nil
}

func init() {
	RegisterDefinition(nodeflow.TypeDefinition{
		Type:        nodeflow.TypeIfStatement,
		Label:       "If Statement",
		Description: "Compares two inputs and triggers true/false output.",
		Category:    "Logic",
		Inputs: []nodeflow.Socket{
			socket("var1", nodeflow.SocketAny, "Operand A"),
			socket("var2", nodeflow.SocketAny, "Operand B"),
		},
		Outputs: []nodeflow.Socket{
			socket("true", nodeflow.SocketSignal, "True"),
			socket("false", nodeflow.SocketSignal, "False"),
		},
		Defaults: map[string]any{"operator": "==="},
	})
}
