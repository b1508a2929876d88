package scan

import (
	"runtime"
	"sort"

	"github.com/viant/embedstore/index"
	"github.com/viant/embedstore/record"
	"github.com/viant/vec/search"
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the indexed-vector count above which Query scores
// chunks on multiple goroutines. Below it the fan-out overhead dominates.
const parallelThreshold = 4096

// Index answers kNN queries by scoring every indexed vector with the SIMD
// cosine kernel from github.com/viant/vec. Magnitudes are precomputed at
// insertion to detect zero vectors without touching the kernel, which leaves
// their similarity undefined. Mutations are O(1); Query is O(n log n) in the
// number of live vectors.
type Index struct {
	dimension int
	ids       []string
	vecs      [][]float32
	mags      []float32
	slots     map[string]int
}

// New creates an empty scan index for vectors of the given dimension.
func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		slots:     make(map[string]int),
	}
}

var _ index.Index = (*Index)(nil)

// Rebuild replaces the index contents with the given entries. Later entries
// win on duplicate ids, matching upsert semantics.
func (i *Index) Rebuild(entries []index.Entry) error {
	i.ids = i.ids[:0]
	i.vecs = i.vecs[:0]
	i.mags = i.mags[:0]
	i.slots = make(map[string]int, len(entries))
	for _, e := range entries {
		if err := i.Upsert(e.ID, e.Vector); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts the vector under id, replacing any previous vector. The
// vector is copied.
func (i *Index) Upsert(id string, vector []float32) error {
	if len(vector) != i.dimension {
		return &index.ErrDimensionMismatch{Expected: i.dimension, Actual: len(vector)}
	}
	v := append([]float32(nil), vector...)
	mag := search.Float32s(v).Magnitude()
	if slot, ok := i.slots[id]; ok {
		i.vecs[slot] = v
		i.mags[slot] = mag
		return nil
	}
	i.slots[id] = len(i.ids)
	i.ids = append(i.ids, id)
	i.vecs = append(i.vecs, v)
	i.mags = append(i.mags, mag)
	return nil
}

// Remove drops id from the index by swapping the last slot into its place.
// Removing an absent id is a no-op.
func (i *Index) Remove(id string) {
	slot, ok := i.slots[id]
	if !ok {
		return
	}
	last := len(i.ids) - 1
	if slot != last {
		i.ids[slot] = i.ids[last]
		i.vecs[slot] = i.vecs[last]
		i.mags[slot] = i.mags[last]
		i.slots[i.ids[slot]] = slot
	}
	i.ids = i.ids[:last]
	i.vecs = i.vecs[:last]
	i.mags = i.mags[:last]
	delete(i.slots, id)
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Query scores every vector against query and returns the top k matches,
// best-first, ties broken by ascending id. Vectors with zero magnitude (and
// any negative similarity) score 0 rather than being skipped, so a
// collection smaller than k always yields all of its records.
func (i *Index) Query(query []float32, k int) ([]index.Match, error) {
	if k <= 0 {
		return nil, index.ErrInvalidTopK
	}
	if err := record.ValidateQuery(query, i.dimension); err != nil {
		return nil, err
	}
	n := len(i.ids)
	if n == 0 {
		return nil, nil
	}

	scores := make([]float64, n)
	qm := search.Float32s(query).Magnitude()
	if n >= parallelThreshold {
		i.scoreParallel(query, qm, scores)
	} else {
		i.scoreRange(query, qm, scores, 0, n)
	}

	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa != sb {
			return sa > sb
		}
		return i.ids[order[a]] < i.ids[order[b]]
	})

	if k > n {
		k = n
	}
	matches := make([]index.Match, k)
	for j := 0; j < k; j++ {
		matches[j] = index.Match{ID: i.ids[order[j]], Score: scores[order[j]]}
	}
	return matches, nil
}

func (i *Index) scoreParallel(query []float32, qm float32, scores []float64) {
	n := len(scores)
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			i.scoreRange(query, qm, scores, lo, hi)
			return nil
		})
	}
	// Workers write disjoint ranges and never fail.
	_ = g.Wait()
}

func (i *Index) scoreRange(query []float32, qm float32, scores []float64, lo, hi int) {
	q := search.Float32s(query)
	for j := lo; j < hi; j++ {
		scores[j] = similarity(q, qm, i.vecs[j], i.mags[j])
	}
}

// similarity maps cosine similarity onto the [0,1] score scale: zero
// magnitude on either side scores 0, negative similarity clamps to 0 and
// rounding noise above 1 clamps back down. CosineDistance is the kernel
// entry point exported on every architecture; the magnitude-reusing
// variants are arm64-only at the pinned viant/vec version.
func similarity(q search.Float32s, qm float32, v []float32, vm float32) float64 {
	if qm == 0 || vm == 0 {
		return 0
	}
	s := 1 - float64(q.CosineDistance(v))
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
