package engine

import (
	"container/heap"
	"math"
)

// normFloor keeps L2 normalization defined for all-zero feature rows.
const normFloor = 1e-12

// normalize scales v to unit L2 norm in place and returns it.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm < normFloor {
		norm = normFloor
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

// dot computes the inner product of two equal-length vectors.
// For unit vectors this equals their cosine similarity.
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// meanVector computes the component-wise mean of the given matrix rows.
func meanVector(matrix [][]float64, rows []int) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(matrix[rows[0]]))
	for _, r := range rows {
		for i, x := range matrix[r] {
			out[i] += x
		}
	}
	inv := 1.0 / float64(len(rows))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// scoredRow pairs a matrix row with a score for partial selection.
type scoredRow struct {
	row   int
	score float64
}

// rowHeap is a min-heap on score, used to keep the running top-K.
// Ties order by higher row so the lower row survives eviction.
type rowHeap []scoredRow

func (h rowHeap) Len() int { return len(h) }
func (h rowHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].row > h[j].row
}
func (h rowHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *rowHeap) Push(x any)        { *h = append(*h, x.(scoredRow)) }
func (h *rowHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topRows returns the indices of the k highest-scored rows, best first.
// It is a partial selection: rank order below the cutoff is never computed.
// Ties break toward the lower row index for deterministic output.
func topRows(scores []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	if k > len(scores) {
		k = len(scores)
	}

	h := make(rowHeap, 0, k)
	for row, score := range scores {
		if len(h) < k {
			heap.Push(&h, scoredRow{row: row, score: score})
			continue
		}
		min := h[0]
		if score > min.score || (score == min.score && row < min.row) {
			h[0] = scoredRow{row: row, score: score}
			heap.Fix(&h, 0)
		}
	}

	// Drain the heap into descending order.
	out := make([]int, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(scoredRow).row
	}
	return out
}
