package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory VectorStore backed by brute-force cosine
// scan. It is intended for tests and single-process deployments;
// search cost grows linearly with the number of stored chunks.
//
// Scores are cosine similarity rescaled to certainty in [0, 1], the
// same scale the Weaviate backend reports, so a confidence threshold
// tuned against one backend holds for the other.
type Memory struct {
	mu      sync.RWMutex
	chunks  []Chunk
	vectors [][]float32
}

var _ VectorStore = (*Memory)(nil)

// NewMemory creates an empty in-memory vector store.
func NewMemory() *Memory {
	return &Memory{}
}

// Add stores a chunk under its embedding vector. The vector must have
// the same dimension as previously added vectors.
func (m *Memory) Add(chunk Chunk, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("retrieval: empty vector for source %q", chunk.Source)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.vectors) > 0 && len(m.vectors[0]) != len(vector) {
		return fmt.Errorf("retrieval: vector dimension %d does not match store dimension %d",
			len(vector), len(m.vectors[0]))
	}
	m.chunks = append(m.chunks, chunk)
	m.vectors = append(m.vectors, vector)
	return nil
}

// Len returns the number of stored chunks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Search returns the k chunks whose vectors are nearest to the query
// vector, ordered by descending certainty. Ties keep insertion order.
func (m *Memory) Search(ctx context.Context, vector []float32, k int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("retrieval: empty query vector")
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, nil
	}
	if len(m.vectors[0]) != len(vector) {
		return nil, fmt.Errorf("retrieval: query dimension %d does not match store dimension %d",
			len(vector), len(m.vectors[0]))
	}

	scored := make([]Chunk, len(m.chunks))
	for i, c := range m.chunks {
		c.Score = certainty(cosine(vector, m.vectors[i]))
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// cosine returns the cosine similarity of two equal-length vectors,
// or 0 when either has zero magnitude.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// certainty rescales cosine similarity from [-1, 1] to [0, 1],
// matching Weaviate's certainty metric.
func certainty(cos float64) float64 {
	return (1 + cos) / 2
}
