// Package planner builds and optimizes the algebraic plan tree queries
// compile down to: FromPlan feeds WherePlan/GroupByPlan/AndMergePlan/
// VectorSearchPlan nodes, optimize() pushes filters down toward sources
// that can evaluate them directly, and explain() renders the resulting
// tree, the same ScanCondition-driven filtering model the teacher used
// for its B+Tree scans, generalized from btree seeks to an arbitrary
// plan tree over row sources.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/protobase/protobase/pkg/atom"
)

// Row is one document-shaped query result: field name to scalar value.
type Row map[string]atom.Value

// Plan is a node in the query algebra. Execute materializes the node's
// output; Explain renders a one-line description of this node for
// explain().
type Plan interface {
	Execute() ([]Row, error)
	Explain() string
}

// Pushable is implemented by plan nodes (typically sources) that can
// evaluate a filter expression themselves, cheaper than a generic
// WherePlan wrapper scanning their output row by row.
type Pushable interface {
	CanHandle(expr *Expression) bool
	PushDown(expr *Expression) Plan
}

// FromPlan is a leaf: rows, optionally already sorted/indexed by field,
// e.g. the decoded contents of a collections.List or Dictionary.
type FromPlan struct {
	Name    string
	Rows    []Row
	indexed map[string]bool // fields this source can filter without a wrapping WherePlan
}

func NewFromPlan(name string, rows []Row) *FromPlan {
	return &FromPlan{Name: name, Rows: rows, indexed: map[string]bool{}}
}

// WithIndexedField marks field as one this source can filter directly,
// enabling optimize() to push WherePlan predicates on it down into this
// node instead of evaluating them afterward.
func (p *FromPlan) WithIndexedField(field string) *FromPlan {
	p.indexed[field] = true
	return p
}

func (p *FromPlan) Execute() ([]Row, error) { return p.Rows, nil }
func (p *FromPlan) Explain() string         { return fmt.Sprintf("From(%s, %d rows)", p.Name, len(p.Rows)) }

func (p *FromPlan) CanHandle(expr *Expression) bool { return p.indexed[expr.Field] }

func (p *FromPlan) PushDown(expr *Expression) Plan {
	compiled := expr.compile()
	filtered := make([]Row, 0, len(p.Rows))
	for _, r := range p.Rows {
		if compiled(r) {
			filtered = append(filtered, r)
		}
	}
	return NewFromPlan(p.Name, filtered).WithIndexedField(expr.Field)
}

// WherePlan filters its child's output by Expr.
type WherePlan struct {
	Child Plan
	Expr  *Expression
}

func NewWherePlan(child Plan, expr *Expression) *WherePlan {
	return &WherePlan{Child: child, Expr: expr}
}

func (p *WherePlan) Execute() ([]Row, error) {
	rows, err := p.Child.Execute()
	if err != nil {
		return nil, err
	}
	compiled := p.Expr.compile()
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if compiled(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *WherePlan) Explain() string {
	return fmt.Sprintf("Where(%s) -> %s", p.Expr.String(), p.Child.Explain())
}

// AndMergePlan intersects the row sets of its children by row identity
// (same field/value pairs), implementing a conjunction of independently
// evaluated predicates without re-scanning a single child multiple
// times.
type AndMergePlan struct {
	Children []Plan
}

func NewAndMergePlan(children ...Plan) *AndMergePlan { return &AndMergePlan{Children: children} }

func (p *AndMergePlan) Execute() ([]Row, error) {
	if len(p.Children) == 0 {
		return nil, nil
	}
	sets := make([]map[string]Row, len(p.Children))
	for i, c := range p.Children {
		rows, err := c.Execute()
		if err != nil {
			return nil, err
		}
		sets[i] = make(map[string]Row, len(rows))
		for _, r := range rows {
			sets[i][rowKey(r)] = r
		}
	}

	smallest := 0
	for i, s := range sets {
		if len(s) < len(sets[smallest]) {
			smallest = i
		}
	}

	var out []Row
	for key, row := range sets[smallest] {
		inAll := true
		for i, s := range sets {
			if i == smallest {
				continue
			}
			if _, ok := s[key]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, row)
		}
	}
	return out, nil
}

func rowKey(r Row) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		tag, body, _ := atom.EncodeValue(r[k])
		fmt.Fprintf(&b, "%s=%d:%x;", k, tag, body)
	}
	return b.String()
}

func (p *AndMergePlan) Explain() string {
	parts := make([]string, len(p.Children))
	for i, c := range p.Children {
		parts[i] = c.Explain()
	}
	return "AndMerge(" + strings.Join(parts, ", ") + ")"
}

// GroupByPlan groups its child's rows by Field, applying Agg to each
// group's rows to produce one output row per distinct value.
type GroupByPlan struct {
	Child Plan
	Field string
	Agg   func(group []Row) Row
}

func NewGroupByPlan(child Plan, field string, agg func([]Row) Row) *GroupByPlan {
	return &GroupByPlan{Child: child, Field: field, Agg: agg}
}

func (p *GroupByPlan) Execute() ([]Row, error) {
	rows, err := p.Child.Execute()
	if err != nil {
		return nil, err
	}
	groups := map[string][]Row{}
	var order []string
	for _, r := range rows {
		key := rowFieldKey(r, p.Field)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	out := make([]Row, 0, len(order))
	for _, key := range order {
		out = append(out, p.Agg(groups[key]))
	}
	return out, nil
}

func rowFieldKey(r Row, field string) string {
	v := r[field]
	tag, body, _ := atom.EncodeValue(v)
	return fmt.Sprintf("%d:%x", tag, body)
}

func (p *GroupByPlan) Explain() string {
	return fmt.Sprintf("GroupBy(%s) -> %s", p.Field, p.Child.Explain())
}

// Paginate returns the [offset, offset+limit) slice of rows, O(1) given
// an already-materialized row slice.
func Paginate(rows []Row, offset, limit int) []Row {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}
