package pipeline

// Outcome classifies the terminal state of one request. The calling
// layer owns mapping each value to its protocol-level status; the
// orchestrator's obligation is to produce exactly one per request.
type Outcome string

const (
	// OutcomeRateLimited means admission was denied before any work.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomeCacheHit means a previously computed answer was served.
	OutcomeCacheHit Outcome = "cache_hit"

	// OutcomeEmbeddingUnavailable means the query could not be
	// embedded; no retrieval context exists, so no fallback is
	// possible.
	OutcomeEmbeddingUnavailable Outcome = "embedding_unavailable"

	// OutcomeSearchUnavailable means the vector store failed.
	OutcomeSearchUnavailable Outcome = "search_unavailable"

	// OutcomeInsufficientKnowledge means retrieval found nothing above
	// the confidence threshold.
	OutcomeInsufficientKnowledge Outcome = "insufficient_knowledge"

	// OutcomeDegraded means generation failed and the answer was
	// assembled from the retrieved material instead.
	OutcomeDegraded Outcome = "degraded"

	// OutcomeSuccess means the full pipeline ran to completion.
	OutcomeSuccess Outcome = "success"
)
