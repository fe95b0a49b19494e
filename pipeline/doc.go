// Package pipeline composes the resilience layers around one
// retrieval-then-generate request.
//
// A request flows through a fixed sequence: rate-limit admission,
// cache probe, query embedding, vector search, best-effort reranking,
// a confidence gate, generation, and a best-effort cache write.
// Dependency failures map to distinguished outcomes rather than
// escaping as errors: upstream outages (embedding, search) fail the
// request with a cause and an optional retry-after estimate, while
// generation outages degrade it to an answer assembled from the
// material already retrieved. Concurrent identical requests collapse
// into one computation through a singleflight group keyed by the
// cache digest.
package pipeline
