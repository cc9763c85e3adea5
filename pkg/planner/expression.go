package planner

import (
	"fmt"

	"github.com/protobase/protobase/pkg/atom"
)

// Operator is the closed set of comparison operators a filter
// expression supports, carried over from the teacher's ScanOperator.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpBetween
)

func (op Operator) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessOrEqual:
		return "<="
	case OpBetween:
		return "between"
	default:
		return "?"
	}
}

// Expression is an uncompiled filter predicate over a single row field.
type Expression struct {
	Field    string
	Operator Operator
	Value    atom.Value
	ValueEnd atom.Value // used only by OpBetween
}

func Equal(field string, v atom.Value) *Expression    { return &Expression{Field: field, Operator: OpEqual, Value: v} }
func NotEqual(field string, v atom.Value) *Expression  { return &Expression{Field: field, Operator: OpNotEqual, Value: v} }
func GreaterThan(field string, v atom.Value) *Expression {
	return &Expression{Field: field, Operator: OpGreaterThan, Value: v}
}
func GreaterOrEqual(field string, v atom.Value) *Expression {
	return &Expression{Field: field, Operator: OpGreaterOrEqual, Value: v}
}
func LessThan(field string, v atom.Value) *Expression {
	return &Expression{Field: field, Operator: OpLessThan, Value: v}
}
func LessOrEqual(field string, v atom.Value) *Expression {
	return &Expression{Field: field, Operator: OpLessOrEqual, Value: v}
}
func Between(field string, start, end atom.Value) *Expression {
	return &Expression{Field: field, Operator: OpBetween, Value: start, ValueEnd: end}
}

func (e *Expression) String() string {
	if e.Operator == OpBetween {
		return fmt.Sprintf("%s between %v and %v", e.Field, e.Value, e.ValueEnd)
	}
	return fmt.Sprintf("%s %s %v", e.Field, e.Operator, e.Value)
}

// compile turns the expression into a row predicate closure, evaluated
// once per candidate row rather than re-dispatching on Operator every
// time, the same role ScanCondition.Matches played inline in the
// teacher's scan loop.
func (e *Expression) compile() func(Row) bool {
	field := e.Field
	switch e.Operator {
	case OpEqual:
		return func(r Row) bool { return r[field].Compare(e.Value) == 0 }
	case OpNotEqual:
		return func(r Row) bool { return r[field].Compare(e.Value) != 0 }
	case OpGreaterThan:
		return func(r Row) bool { return r[field].Compare(e.Value) > 0 }
	case OpGreaterOrEqual:
		return func(r Row) bool { return r[field].Compare(e.Value) >= 0 }
	case OpLessThan:
		return func(r Row) bool { return r[field].Compare(e.Value) < 0 }
	case OpLessOrEqual:
		return func(r Row) bool { return r[field].Compare(e.Value) <= 0 }
	case OpBetween:
		return func(r Row) bool {
			v := r[field]
			return v.Compare(e.Value) >= 0 && v.Compare(e.ValueEnd) <= 0
		}
	default:
		return func(Row) bool { return false }
	}
}
