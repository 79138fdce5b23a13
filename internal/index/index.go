package index

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Entry is one indexed transcript chunk.
type Entry struct {
	Ordinal int
	Text    string
	vector  []float32
}

// Hit is one search result, highest similarity first.
type Hit struct {
	Ordinal int     `json:"ordinal"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// Index holds normalized chunk vectors for one video and answers top-k
// similarity queries with a full inner-product scan. Vectors are
// L2-normalized on insert so the inner product is cosine similarity.
type Index struct {
	mu      sync.RWMutex
	dims    int
	entries []Entry
}

func New() *Index {
	return &Index{}
}

// Add normalizes and stores a chunk vector. The first vector fixes the
// index dimensionality.
func (ix *Index) Add(ordinal int, text string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("index: empty vector for chunk %d", ordinal)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dims == 0 {
		ix.dims = len(vector)
	} else if len(vector) != ix.dims {
		return fmt.Errorf("index: vector dims %d, want %d", len(vector), ix.dims)
	}

	ix.entries = append(ix.entries, Entry{
		Ordinal: ordinal,
		Text:    text,
		vector:  normalize(vector),
	})
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search scans every entry and returns up to k hits ordered by descending
// score.
func (ix *Index) Search(vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, nil
	}
	if len(vector) != ix.dims {
		return nil, fmt.Errorf("index: query dims %d, want %d", len(vector), ix.dims)
	}

	query := normalize(vector)
	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		hits = append(hits, Hit{
			Ordinal: e.Ordinal,
			Text:    e.Text,
			Score:   dot(query, e.vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ordinal < hits[j].Ordinal
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
