package planner

import (
	"testing"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/collections"
	"github.com/protobase/protobase/pkg/index"
)

func sampleRows() []Row {
	return []Row{
		{"name": atom.FromString("alice"), "age": atom.FromI64(30)},
		{"name": atom.FromString("bob"), "age": atom.FromI64(25)},
		{"name": atom.FromString("carol"), "age": atom.FromI64(40)},
	}
}

func TestWherePlanFiltersRows(t *testing.T) {
	from := NewFromPlan("people", sampleRows())
	plan := NewWherePlan(from, GreaterThan("age", atom.FromI64(28)))

	rows, err := plan.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}

func TestOptimizePushesFilterIntoIndexedSource(t *testing.T) {
	from := NewFromPlan("people", sampleRows()).WithIndexedField("age")
	plan := NewWherePlan(from, Equal("age", atom.FromI64(25)))

	optimized := Optimize(plan)
	if _, ok := optimized.(*WherePlan); ok {
		t.Fatal("expected WherePlan to be pushed down into the indexed source")
	}

	rows, err := optimized.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"].Str != "bob" {
		t.Fatalf("got %+v, want bob", rows)
	}
}

func TestAndMergeIntersectsPredicates(t *testing.T) {
	from := NewFromPlan("people", sampleRows())
	a := NewWherePlan(from, GreaterThan("age", atom.FromI64(20)))
	from2 := NewFromPlan("people", sampleRows())
	b := NewWherePlan(from2, LessThan("age", atom.FromI64(35)))

	merged := NewAndMergePlan(a, b)
	rows, err := merged.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (carol excluded by age<35)", len(rows))
	}
}

func TestGroupByAggregates(t *testing.T) {
	rows := []Row{
		{"team": atom.FromString("a"), "score": atom.FromI64(1)},
		{"team": atom.FromString("a"), "score": atom.FromI64(2)},
		{"team": atom.FromString("b"), "score": atom.FromI64(5)},
	}
	plan := NewGroupByPlan(NewFromPlan("scores", rows), "team", func(group []Row) Row {
		var total int64
		for _, r := range group {
			total += r["score"].I64
		}
		return Row{"team": group[0]["team"], "total": atom.FromI64(total)}
	})

	out, err := plan.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	totals := map[string]int64{}
	for _, r := range out {
		totals[r["team"].Str] = r["total"].I64
	}
	if totals["a"] != 3 || totals["b"] != 5 {
		t.Fatalf("got %v", totals)
	}
}

func TestPaginateSlicesInBounds(t *testing.T) {
	rows := sampleRows()
	page := Paginate(rows, 1, 1)
	if len(page) != 1 || page[0]["name"].Str != "bob" {
		t.Fatalf("got %+v", page)
	}
	if Paginate(rows, 10, 5) != nil {
		t.Fatal("expected nil for out-of-range offset")
	}
}

func TestVectorSearchPlanJoinsScores(t *testing.T) {
	rows := []Row{
		{"id": atom.FromI64(0)},
		{"id": atom.FromI64(1)},
	}
	idx := index.NewExactVectorIndex(index.MetricL2)
	idx.Add(collections.NewVector([]float32{0, 0}))
	idx.Add(collections.NewVector([]float32{5, 5}))

	plan := NewVectorSearchPlan(NewFromPlan("docs", rows), idx, collections.NewVector([]float32{0, 0}), 1, "")
	out, err := plan.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out) != 1 || out[0]["id"].I64 != 0 {
		t.Fatalf("got %+v", out)
	}
	if _, ok := out[0]["_score"]; !ok {
		t.Fatal("expected _score field")
	}
}

func TestExplainRendersOptimizedTree(t *testing.T) {
	from := NewFromPlan("people", sampleRows())
	plan := NewWherePlan(from, GreaterThan("age", atom.FromI64(28)))
	s := Explain(plan)
	if s == "" {
		t.Fatal("expected non-empty explain output")
	}
}
