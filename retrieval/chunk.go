package retrieval

import "context"

// Chunk is a single retrieved passage with its provenance and
// relevance score.
type Chunk struct {
	// Text is the passage content.
	Text string

	// Source identifies the document the passage came from, typically
	// a file name or path. It doubles as the cache invalidation tag
	// for responses built from this chunk.
	Source string

	// Position is the zero-based index of the chunk within its source.
	Position int

	// Score is the relevance of the chunk to the query as certainty
	// in [0, 1], higher is more relevant.
	Score float64

	// Page is the one-based page number within the source, 0 when
	// unknown.
	Page int
}

// VectorStore searches for chunks near an embedding vector.
//
// Contract:
//   - Search returns at most k chunks ordered by descending Score.
//   - An empty result set is not an error.
//   - Concurrency: implementations must be safe for concurrent use.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, k int) ([]Chunk, error)
}
