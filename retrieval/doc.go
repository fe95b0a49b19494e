// Package retrieval defines the retrieved-chunk model and vector
// search contract the pipeline consumes, plus the shipped backends
// and rerankers.
//
// Two VectorStore implementations are provided: Weaviate over its
// GraphQL nearVector API for production, and an in-memory cosine
// store for tests and single-process setups. Both report relevance
// as certainty in [0, 1], so confidence thresholds carry across
// backends unchanged.
//
// Rerankers reorder retrieved chunks without touching their scores.
// NoopReranker keeps the store's order; LLMReranker asks a generator
// to score each chunk against the query with bounded concurrency and
// falls back to the original order when scoring fails.
package retrieval
