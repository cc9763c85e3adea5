package index

import (
	"container/heap"
	"encoding/json"
	"math"
	"math/rand"
	"os"

	"github.com/protobase/protobase/pkg/collections"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// HNSWVectorIndex is an approximate nearest-neighbor index over a
// hierarchical navigable small world graph, stdlib-only (container/heap
// for the candidate/result priority queues, math/rand for level
// assignment): no pack repo carries a vector-index library, so the graph
// construction and greedy search below are original to this package,
// built from the published HNSW algorithm shape rather than adapted from
// example code.
type HNSWVectorIndex struct {
	metric          Metric
	m               int
	efConstruction  int
	efSearch        int
	exactFallbackAt int

	vectors []collections.Vector
	ids     []int64 // ids[position] -> external id; Add sets it to the position
	levels  []int
	layers  []map[int][]int // layers[level][node] -> neighbor node ids
	entry   int
	maxLvl  int

	rnd *rand.Rand
}

type HNSWOptions struct {
	Metric          Metric
	M               int
	EfConstruction  int
	EfSearch        int
	ExactFallbackAt int // at or below this many vectors, Search/Lookup uses exact scan
}

func DefaultHNSWOptions(metric Metric) HNSWOptions {
	return HNSWOptions{
		Metric:          metric,
		M:               16,
		EfConstruction:  200,
		EfSearch:        64,
		ExactFallbackAt: 64,
	}
}

func NewHNSWVectorIndex(opts HNSWOptions) *HNSWVectorIndex {
	return &HNSWVectorIndex{
		metric:          opts.Metric,
		m:               opts.M,
		efConstruction:  opts.EfConstruction,
		efSearch:        opts.EfSearch,
		exactFallbackAt: opts.ExactFallbackAt,
		entry:           -1,
		rnd:             rand.New(rand.NewSource(1)), // deterministic level assignment
	}
}

func (idx *HNSWVectorIndex) exact() *ExactVectorIndex {
	e := NewExactVectorIndex(idx.metric)
	e.vectors = idx.vectors
	return e
}

func (idx *HNSWVectorIndex) higherIsBetter() bool { return idx.metric == MetricCosine }

func (idx *HNSWVectorIndex) score(a, b collections.Vector) (float64, error) {
	if idx.metric == MetricCosine {
		return a.CosineSimilarity(b)
	}
	return a.L2Distance(b)
}

func (idx *HNSWVectorIndex) assignLevel() int {
	level := 0
	for idx.rnd.Float64() < 0.5 && level < 32 {
		level++
	}
	return level
}

// Add inserts v and returns its position, greedily connecting it into
// each layer up to its assigned level via a beam search seeded from the
// current entry point.
func (idx *HNSWVectorIndex) Add(v collections.Vector) (int, error) {
	pos := len(idx.vectors)
	idx.vectors = append(idx.vectors, v)
	idx.ids = append(idx.ids, int64(pos))
	level := idx.assignLevel()
	idx.levels = append(idx.levels, level)

	for len(idx.layers) <= level {
		idx.layers = append(idx.layers, map[int][]int{})
	}

	if idx.entry == -1 {
		idx.entry = pos
		idx.maxLvl = level
		for l := 0; l <= level; l++ {
			idx.layers[l][pos] = nil
		}
		return pos, nil
	}

	curr := idx.entry
	for l := idx.maxLvl; l > level; l-- {
		nearest, err := idx.greedyDescend(v, curr, l)
		if err != nil {
			return 0, err
		}
		curr = nearest
	}

	for l := min(level, idx.maxLvl); l >= 0; l-- {
		candidates, err := idx.searchLayer(v, curr, idx.efConstruction, l)
		if err != nil {
			return 0, err
		}
		neighbors := idx.selectNeighbors(candidates, idx.m)
		idx.layers[l][pos] = neighbors
		for _, n := range neighbors {
			idx.layers[l][n] = idx.selectNeighbors(append(idx.neighborCandidates(n, l), SearchResult{Position: pos}), idx.m)
		}
		if len(candidates) > 0 {
			curr = candidates[0].Position
		}
	}

	if level > idx.maxLvl {
		idx.maxLvl = level
		idx.entry = pos
	}
	return pos, nil
}

func (idx *HNSWVectorIndex) neighborCandidates(node, level int) []SearchResult {
	out := make([]SearchResult, 0, len(idx.layers[level][node]))
	for _, n := range idx.layers[level][node] {
		s, _ := idx.score(idx.vectors[node], idx.vectors[n])
		out = append(out, SearchResult{Position: n, Score: s})
	}
	return out
}

func (idx *HNSWVectorIndex) selectNeighbors(candidates []SearchResult, m int) []int {
	better := idx.higherIsBetter()
	sortResults(candidates, better)
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]int, len(candidates))
	for i, c := range candidates {
		out[i] = c.Position
	}
	return out
}

func (idx *HNSWVectorIndex) greedyDescend(query collections.Vector, from int, level int) (int, error) {
	curr := from
	currScore, err := idx.score(query, idx.vectors[curr])
	if err != nil {
		return 0, err
	}
	better := idx.higherIsBetter()
	for {
		improved := false
		for _, n := range idx.layers[level][curr] {
			s, err := idx.score(query, idx.vectors[n])
			if err != nil {
				return 0, err
			}
			if (better && s > currScore) || (!better && s < currScore) {
				curr, currScore, improved = n, s, true
			}
		}
		if !improved {
			return curr, nil
		}
	}
}

// searchLayer runs a beam search of width ef starting from entry,
// returning the ef best candidates found, best first.
func (idx *HNSWVectorIndex) searchLayer(query collections.Vector, entry int, ef int, level int) ([]SearchResult, error) {
	better := idx.higherIsBetter()
	visited := map[int]bool{entry: true}

	entryScore, err := idx.score(query, idx.vectors[entry])
	if err != nil {
		return nil, err
	}

	candidates := &resultHeap{better: better} // ordered to pop the best candidate first
	heap.Push(candidates, SearchResult{Position: entry, Score: entryScore})

	results := &resultHeap{better: !better} // worst-first, so we can evict the weakest when over ef
	heap.Push(results, SearchResult{Position: entry, Score: entryScore})

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(SearchResult)
		worst := results.At(0)
		if isWorse(c.Score, worst.Score, better) && results.Len() >= ef {
			break
		}
		for _, n := range idx.layers[level][c.Position] {
			if visited[n] {
				continue
			}
			visited[n] = true
			s, err := idx.score(query, idx.vectors[n])
			if err != nil {
				return nil, err
			}
			worst = results.At(0)
			if results.Len() < ef || isWorse(worst.Score, s, better) {
				heap.Push(candidates, SearchResult{Position: n, Score: s})
				heap.Push(results, SearchResult{Position: n, Score: s})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]SearchResult, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(SearchResult)
	}
	return out, nil
}

// isWorse reports whether a ranks worse than b under the given ranking
// direction (better=true means higher scores win, e.g. cosine).
func isWorse(a, b float64, better bool) bool {
	if better {
		return a < b
	}
	return a > b
}

func sortResults(results []SearchResult, better bool) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			swap := false
			if better {
				swap = results[j].Score > results[j-1].Score
			} else {
				swap = results[j].Score < results[j-1].Score
			}
			if !swap {
				break
			}
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func (idx *HNSWVectorIndex) Lookup(query collections.Vector) ([]SearchResult, error) {
	return idx.Search(query, len(idx.vectors))
}

func (idx *HNSWVectorIndex) CostEstimate(k int) float64 {
	if len(idx.vectors) == 0 {
		return 0
	}
	return math.Log2(float64(len(idx.vectors))) * float64(idx.efSearch)
}

func (idx *HNSWVectorIndex) Search(query collections.Vector, k int) ([]SearchResult, error) {
	if len(idx.vectors) <= idx.exactFallbackAt || idx.entry == -1 {
		return idx.exact().Search(query, k)
	}

	curr := idx.entry
	for l := idx.maxLvl; l > 0; l-- {
		nearest, err := idx.greedyDescend(query, curr, l)
		if err != nil {
			return nil, err
		}
		curr = nearest
	}

	ef := idx.efSearch
	if k > ef {
		ef = k
	}
	results, err := idx.searchLayer(query, curr, ef, 0)
	if err != nil {
		return nil, err
	}
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// resultHeap is a container/heap priority queue ordering SearchResults
// by Score; better=true makes it a max-heap (best cosine score at the
// root), better=false a min-heap (best, i.e. smallest, L2 distance at
// the root).
type resultHeap struct {
	better bool
	items  []SearchResult
}

func (h *resultHeap) Len() int { return len(h.items) }
func (h *resultHeap) Less(i, j int) bool {
	if h.better {
		return h.items[i].Score > h.items[j].Score
	}
	return h.items[i].Score < h.items[j].Score
}
func (h *resultHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *resultHeap) Push(x interface{}) {
	h.items = append(h.items, x.(SearchResult))
}
func (h *resultHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func (h *resultHeap) At(i int) SearchResult { return h.items[i] }

// persistedHNSW is the sidecar JSON/graph format for Save/Load.
type persistedHNSW struct {
	Metric         Metric           `json:"metric"`
	M              int              `json:"m"`
	EfConstruction int              `json:"ef_construction"`
	EfSearch       int              `json:"ef_search"`
	Entry          int              `json:"entry"`
	MaxLevel       int              `json:"max_level"`
	Levels         []int            `json:"levels"`
	Vectors        [][]float32      `json:"vectors"`
	Layers         []map[int][]int `json:"layers"`
}

// hnswMeta is the <prefix>.meta.json sidecar schema: the metric, dimension
// and construction parameters needed to interpret the paired .graph file,
// plus id_mapping so a position in the graph can be traced back to the
// external id that was indexed at it.
type hnswMeta struct {
	Metric         Metric  `json:"metric"`
	Dim            int     `json:"dim"`
	M              int     `json:"m"`
	EfConstruction int     `json:"ef_construction"`
	EfSearch       int     `json:"ef_search"`
	IDMapping      []int64 `json:"id_mapping"`
}

// Save persists the graph to <prefix>.graph (vectors + adjacency) and
// <prefix>.meta.json (metric, dimension, construction parameters and
// id_mapping), mirroring the sidecar file convention the block provider
// uses for its own directory layout.
func (idx *HNSWVectorIndex) Save(prefix string) error {
	vectors := make([][]float32, len(idx.vectors))
	for i, v := range idx.vectors {
		vectors[i] = v.Values
	}
	p := persistedHNSW{
		Metric: idx.metric, M: idx.m, EfConstruction: idx.efConstruction,
		EfSearch: idx.efSearch, Entry: idx.entry, MaxLevel: idx.maxLvl,
		Levels: idx.levels, Vectors: vectors, Layers: idx.layers,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return perrors.Wrap(err, "marshal hnsw graph")
	}
	if err := os.WriteFile(prefix+".graph", data, 0o644); err != nil {
		return perrors.Wrap(err, "write hnsw graph file")
	}

	dim := 0
	if len(idx.vectors) > 0 {
		dim = idx.vectors[0].Dim
	}
	meta, err := json.MarshalIndent(hnswMeta{
		Metric: idx.metric, Dim: dim, M: idx.m,
		EfConstruction: idx.efConstruction, EfSearch: idx.efSearch,
		IDMapping: idx.ids,
	}, "", "  ")
	if err != nil {
		return perrors.Wrap(err, "marshal hnsw meta")
	}
	return os.WriteFile(prefix+".meta.json", meta, 0o644)
}

// Load restores a graph previously written by Save, cross-reading both the
// .graph file's adjacency/vectors and the .meta.json sidecar's id_mapping.
func Load(prefix string) (*HNSWVectorIndex, error) {
	data, err := os.ReadFile(prefix + ".graph")
	if err != nil {
		return nil, perrors.Wrap(err, "read hnsw graph file")
	}
	var p persistedHNSW
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, perrors.Wrap(err, "parse hnsw graph file")
	}

	metaData, err := os.ReadFile(prefix + ".meta.json")
	if err != nil {
		return nil, perrors.Wrap(err, "read hnsw meta file")
	}
	var meta hnswMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, perrors.Wrap(err, "parse hnsw meta file")
	}

	idx := NewHNSWVectorIndex(HNSWOptions{
		Metric: p.Metric, M: p.M, EfConstruction: p.EfConstruction,
		EfSearch: p.EfSearch, ExactFallbackAt: 64,
	})
	idx.entry = p.Entry
	idx.maxLvl = p.MaxLevel
	idx.levels = p.Levels
	idx.layers = p.Layers
	for _, v := range p.Vectors {
		idx.vectors = append(idx.vectors, collections.NewVector(v))
	}
	idx.ids = meta.IDMapping
	return idx, nil
}
