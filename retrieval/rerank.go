package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/ragops/llm"
)

// Reranker reorders retrieved chunks by relevance to the query.
//
// Contract:
//   - The returned slice holds the same chunks, possibly reordered.
//     Chunk scores are left untouched so downstream confidence checks
//     keep comparing vector certainty against the threshold.
//   - On error the original order is returned alongside the error, so
//     the caller can proceed with the store's ranking.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []Chunk) ([]Chunk, error)
}

// NoopReranker keeps the vector store's order.
type NoopReranker struct{}

var _ Reranker = NoopReranker{}

// Rerank returns the chunks unchanged.
func (NoopReranker) Rerank(_ context.Context, _ string, chunks []Chunk) ([]Chunk, error) {
	return chunks, nil
}

// LLMRerankerConfig configures the LLM-scored reranker.
type LLMRerankerConfig struct {
	// Concurrency bounds in-flight scoring calls. Defaults to 4.
	Concurrency int

	// ItemTimeout bounds each scoring call. Defaults to 10 seconds.
	ItemTimeout time.Duration
}

// LLMReranker asks a generator to score each chunk against the query
// and reorders by that score, highest first. Scoring calls run
// concurrently up to the configured bound, each under its own
// timeout. Any failure abandons the attempt and hands back the
// original order with the error.
type LLMReranker struct {
	config    LLMRerankerConfig
	generator llm.Generator
}

var _ Reranker = (*LLMReranker)(nil)

// NewLLMReranker creates an LLM-scored reranker using the given
// generator.
func NewLLMReranker(generator llm.Generator, config LLMRerankerConfig) *LLMReranker {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.ItemTimeout <= 0 {
		config.ItemTimeout = 10 * time.Second
	}
	return &LLMReranker{config: config, generator: generator}
}

// Rerank scores every chunk and returns them ordered by descending
// LLM score, ties keeping the original order. Chunk.Score is not
// modified.
func (r *LLMReranker) Rerank(ctx context.Context, query string, chunks []Chunk) ([]Chunk, error) {
	if len(chunks) <= 1 {
		return chunks, nil
	}

	scores := make([]float64, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			score, err := r.scoreChunk(gctx, query, c.Text)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return chunks, fmt.Errorf("retrieval: rerank: %w", err)
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	reranked := make([]Chunk, len(chunks))
	for rank, idx := range order {
		reranked[rank] = chunks[idx]
	}
	return reranked, nil
}

// scoreChunk asks the generator for a 0-10 relevance score under the
// per-item timeout.
func (r *LLMReranker) scoreChunk(ctx context.Context, query, text string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.ItemTimeout)
	defer cancel()

	result, err := r.generator.Generate(ctx, llm.GenerationRequest{
		System: "You rate how relevant a passage is to a query.",
		Prompt: fmt.Sprintf("Rate the relevance of the passage to the query on a scale from 0 to 10. Respond with only the number.\n\nQuery: %s\n\nPassage: %s", query, text),
		MaxTokens: 8,
	})
	if err != nil {
		return 0, err
	}
	return parseScore(result.Content)
}

var scorePattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseScore extracts the first number from a scoring reply and
// clamps it to [0, 10]. Models occasionally wrap the number in prose;
// anything without one is an error.
func parseScore(content string) (float64, error) {
	match := scorePattern.FindString(content)
	if match == "" {
		return 0, fmt.Errorf("retrieval: no score in reply %q", content)
	}
	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("retrieval: parse score %q: %w", match, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}
