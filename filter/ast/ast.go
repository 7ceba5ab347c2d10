// Package ast holds the tree produced by the filter parser.
package ast

import (
	"fmt"
	"strings"
)

// Node is the interface that all nodes in the condition tree implement.
// The private marker method keeps the set of node types closed.
type Node interface {
	node()
	String() string
}

// AndNode is satisfied only if all of its Children are.
type AndNode struct {
	Children []Node
}

func (n AndNode) node() {}

func (n AndNode) String() string { return join(n.Children, " & ") }

// OrNode is satisfied if at least one of its Children is.
type OrNode struct {
	Children []Node
}

func (n OrNode) node() {}

func (n OrNode) String() string { return join(n.Children, " | ") }

// NotNode inverts its single Child.
type NotNode struct {
	Child Node
}

func (n NotNode) node() {}

func (n NotNode) String() string { return "!" + n.Child.String() }

// ComparisonOperator defines the comparison performed by a ComparisonNode.
type ComparisonOperator uint8

const (
	OperatorEq ComparisonOperator = iota
	OperatorNe
	OperatorGt
	OperatorLt
	OperatorGte
	OperatorLte
	// OperatorLike checks whether the field contains the value, ignoring case.
	OperatorLike
	// OperatorIn checks whether the field equals any of the values.
	OperatorIn
	// OperatorNotIn checks whether the field equals none of the values.
	OperatorNotIn
)

func (o ComparisonOperator) String() string {
	switch o {
	case OperatorEq:
		return "="
	case OperatorNe:
		return "!="
	case OperatorGt:
		return ">"
	case OperatorLt:
		return "<"
	case OperatorGte:
		return ">="
	case OperatorLte:
		return "<="
	case OperatorLike:
		return "~"
	case OperatorIn:
		return "="
	case OperatorNotIn:
		return "!="
	default:
		return "?"
	}
}

// ComparisonNode is a leaf: one field compared against literal values.
type ComparisonNode struct {
	// FieldName is a record field ("level", "logger") or a property path
	// ("property.user_id").
	FieldName string

	Operator ComparisonOperator

	// Values holds the literals: string, int64, float64, bool or nil. Only
	// OperatorIn and OperatorNotIn carry more than one.
	Values []any
}

func (n ComparisonNode) node() {}

func (n ComparisonNode) String() string {
	vals := make([]string, len(n.Values))
	for i, v := range n.Values {
		switch v := v.(type) {
		case nil:
			vals[i] = "null"
		case string:
			vals[i] = fmt.Sprintf("%q", v)
		default:
			vals[i] = fmt.Sprint(v)
		}
	}
	return n.FieldName + n.Operator.String() + strings.Join(vals, ",")
}

func join(children []Node, sep string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
