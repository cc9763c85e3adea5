package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/protobase/protobase/pkg/collections"
)

func TestExactVectorIndexFindsNearest(t *testing.T) {
	idx := NewExactVectorIndex(MetricL2)
	idx.Add(collections.NewVector([]float32{0, 0}))
	idx.Add(collections.NewVector([]float32{10, 10}))
	idx.Add(collections.NewVector([]float32{1, 1}))

	results, err := idx.Search(collections.NewVector([]float32{0, 0}), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Position != 0 {
		t.Fatalf("got %+v, want position 0 nearest", results)
	}
}

func TestHNSWFallsBackToExactBelowThreshold(t *testing.T) {
	idx := NewHNSWVectorIndex(DefaultHNSWOptions(MetricCosine))
	for i := 0; i < 10; i++ {
		idx.Add(collections.NewVector([]float32{float32(i), 1}))
	}
	results, err := idx.Search(collections.NewVector([]float32{9, 0}), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Position != 9 {
		t.Fatalf("got %+v, want position 9", results)
	}
}

func TestHNSWApproximateSearchFindsNearNeighbor(t *testing.T) {
	opts := DefaultHNSWOptions(MetricL2)
	opts.ExactFallbackAt = 0
	idx := NewHNSWVectorIndex(opts)
	for i := 0; i < 200; i++ {
		idx.Add(collections.NewVector([]float32{float32(i), float32(i % 7)}))
	}
	results, err := idx.Search(collections.NewVector([]float32{100, 2}), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	// Approximate search should land close to the true nearest (position 100).
	if results[0].Position < 90 || results[0].Position > 110 {
		t.Errorf("top result %d far from expected neighborhood around 100", results[0].Position)
	}
}

func TestHNSWSaveWritesMetaSidecarAndLoadRestoresIt(t *testing.T) {
	opts := DefaultHNSWOptions(MetricCosine)
	idx := NewHNSWVectorIndex(opts)
	idx.Add(collections.NewVector([]float32{1, 0, 0}))
	idx.Add(collections.NewVector([]float32{0, 1, 0}))

	prefix := filepath.Join(t.TempDir(), "vectors")
	if err := idx.Save(prefix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(prefix + ".meta.json")
	if err != nil {
		t.Fatalf("read meta.json: %v", err)
	}
	var meta hnswMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("unmarshal meta.json: %v", err)
	}
	if meta.Metric != MetricCosine {
		t.Errorf("meta.Metric = %v, want %v", meta.Metric, MetricCosine)
	}
	if meta.Dim != 3 {
		t.Errorf("meta.Dim = %d, want 3", meta.Dim)
	}
	if meta.M != opts.M || meta.EfConstruction != opts.EfConstruction || meta.EfSearch != opts.EfSearch {
		t.Errorf("meta construction params = %+v, want %+v", meta, opts)
	}
	if len(meta.IDMapping) != 2 || meta.IDMapping[0] != 0 || meta.IDMapping[1] != 1 {
		t.Errorf("meta.IDMapping = %v, want [0 1]", meta.IDMapping)
	}

	reloaded, err := Load(prefix)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded.ids) != 2 || reloaded.ids[0] != 0 || reloaded.ids[1] != 1 {
		t.Errorf("reloaded.ids = %v, want [0 1]", reloaded.ids)
	}
	if reloaded.metric != MetricCosine {
		t.Errorf("reloaded.metric = %v, want %v", reloaded.metric, MetricCosine)
	}
}
