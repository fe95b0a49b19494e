// Package llm defines the embedding and generation contracts the
// pipeline consumes, plus an adapter for OpenAI-compatible endpoints.
//
// The pipeline never talks to a provider directly: it calls these
// interfaces through its resilience layers, so any implementation that
// returns honest errors composes with breakers and retries for free.
package llm
