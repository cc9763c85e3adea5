package planner

import (
	"fmt"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/collections"
	"github.com/protobase/protobase/pkg/index"
)

// VectorSearchPlan runs a k-nearest-neighbor search over Index and joins
// the hits back against Child's rows by position, attaching each row's
// similarity score under OutputField.
type VectorSearchPlan struct {
	Child       Plan
	Index       index.QueryableIndex
	Query       collections.Vector
	K           int
	OutputField string
}

func NewVectorSearchPlan(child Plan, idx index.QueryableIndex, query collections.Vector, k int, outputField string) *VectorSearchPlan {
	if outputField == "" {
		outputField = "_score"
	}
	return &VectorSearchPlan{Child: child, Index: idx, Query: query, K: k, OutputField: outputField}
}

func (p *VectorSearchPlan) Execute() ([]Row, error) {
	rows, err := p.Child.Execute()
	if err != nil {
		return nil, err
	}
	results, err := p.Index.Search(p.Query, p.K)
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(results))
	for _, res := range results {
		if res.Position < 0 || res.Position >= len(rows) {
			continue
		}
		row := make(Row, len(rows[res.Position])+1)
		for k, v := range rows[res.Position] {
			row[k] = v
		}
		row[p.OutputField] = atom.FromF64(res.Score)
		out = append(out, row)
	}
	return out, nil
}

func (p *VectorSearchPlan) Explain() string {
	return fmt.Sprintf("VectorSearch(k=%d) -> %s", p.K, p.Child.Explain())
}
