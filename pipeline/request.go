package pipeline

import (
	"time"

	"github.com/jonwraymond/ragops/llm"
)

// ModeGenerated marks answers produced by the generator. Degraded
// answers carry degrade.Mode instead.
const ModeGenerated = "generated"

// AnonymousIdentity keys rate limiting for requests that carry no
// identity of their own and no authenticated principal on the context.
const AnonymousIdentity = "anonymous"

// Request is one question for the pipeline.
type Request struct {
	// Query is the question to answer.
	Query string

	// Identity keys rate limiting. Empty falls back to the
	// authenticated principal on the context, then to
	// AnonymousIdentity.
	Identity string

	// TopK is how many chunks to retrieve. Zero uses the orchestrator
	// default.
	TopK int

	// Threshold is the minimum certainty the best retrieved chunk must
	// reach. Zero uses the orchestrator default.
	Threshold float64
}

// Answer is the payload of answered requests. It is what the cache
// stores and replays.
type Answer struct {
	// Content is the answer text.
	Content string `json:"content"`

	// Citations are the context indices the content references, 1-based
	// in order of first appearance.
	Citations []int `json:"citations"`

	// Sources lists each retrieved chunk's source in context order, so
	// citation [N] resolves to Sources[N-1].
	Sources []string `json:"sources"`

	// Mode is ModeGenerated or degrade.Mode.
	Mode string `json:"mode"`

	// Reason is the degrade reason code, empty for generated answers.
	Reason string `json:"reason,omitempty"`

	// Usage reports generation token accounting, zero when degraded.
	Usage llm.Usage `json:"usage"`

	// Warnings carries non-fatal notices (rerank fallback, out-of-range
	// citations, degraded generation).
	Warnings []string `json:"warnings,omitempty"`
}

// Result is the terminal state of one request. Exactly one outcome is
// produced per Handle call; the zero Result is not valid.
type Result struct {
	// RequestID correlates the result with spans and log lines.
	RequestID string

	// Outcome classifies how the request ended.
	Outcome Outcome

	// Answer is set for success, degraded, and cache-hit outcomes.
	Answer *Answer

	// Cause is the dependency failure behind unavailable and degraded
	// outcomes.
	Cause error

	// RetryAfter estimates when a retry may pass after a circuit-open
	// short-circuit. Zero when no estimate applies.
	RetryAfter time.Duration
}
