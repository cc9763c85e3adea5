package index

import (
	"sort"

	"github.com/protobase/protobase/pkg/collections"
)

// Metric selects the distance/similarity function a vector index scores
// candidates with.
type Metric int

const (
	MetricCosine Metric = iota
	MetricL2
)

// ExactVectorIndex is a linear scan over every stored vector: exact
// results, O(n) per query, used both standalone for small collections
// and as HNSWVectorIndex's fallback and ground truth.
type ExactVectorIndex struct {
	metric  Metric
	vectors []collections.Vector
}

func NewExactVectorIndex(metric Metric) *ExactVectorIndex {
	return &ExactVectorIndex{metric: metric}
}

func (idx *ExactVectorIndex) Add(v collections.Vector) int {
	idx.vectors = append(idx.vectors, v)
	return len(idx.vectors) - 1
}

func (idx *ExactVectorIndex) score(a, b collections.Vector) (float64, error) {
	if idx.metric == MetricCosine {
		return a.CosineSimilarity(b)
	}
	return a.L2Distance(b)
}

// higherIsBetter reports whether score ranks matches in descending
// order (cosine similarity) rather than ascending (L2 distance).
func (idx *ExactVectorIndex) higherIsBetter() bool { return idx.metric == MetricCosine }

func (idx *ExactVectorIndex) Lookup(query collections.Vector) ([]SearchResult, error) {
	return idx.Search(query, len(idx.vectors))
}

func (idx *ExactVectorIndex) CostEstimate(k int) float64 {
	return float64(len(idx.vectors))
}

func (idx *ExactVectorIndex) Search(query collections.Vector, k int) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		s, err := idx.score(query, v)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Position: i, Score: s})
	}
	better := idx.higherIsBetter()
	sort.Slice(results, func(i, j int) bool {
		if better {
			return results[i].Score > results[j].Score
		}
		return results[i].Score < results[j].Score
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
