// Package index implements the query planner's pluggable lookup
// structures: an exact linear-scan vector index and an HNSW approximate
// index, both behind the same QueryableIndex contract so WherePlan and
// VectorSearchPlan can pick whichever a collection has built.
package index

import "github.com/protobase/protobase/pkg/collections"

// SearchResult is one hit from a vector search: the candidate's position
// in the indexed collection and its distance/similarity score.
type SearchResult struct {
	Position int
	Score    float64
}

// QueryableIndex is the contract every index type exposes to the planner.
type QueryableIndex interface {
	// Lookup returns every indexed vector ranked against vector, best
	// first.
	Lookup(vector collections.Vector) ([]SearchResult, error)

	// CostEstimate gives the planner a relative cost for choosing
	// between candidate indexes/plans; lower is cheaper.
	CostEstimate(k int) float64

	// Search returns the k nearest neighbors to query.
	Search(query collections.Vector, k int) ([]SearchResult, error)
}
