package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/ragops/auth"
	"github.com/jonwraymond/ragops/cache"
	"github.com/jonwraymond/ragops/degrade"
	"github.com/jonwraymond/ragops/llm"
	"github.com/jonwraymond/ragops/observe"
	"github.com/jonwraymond/ragops/ratelimit"
	"github.com/jonwraymond/ragops/resilience"
	"github.com/jonwraymond/ragops/retrieval"
)

// Construction errors.
var (
	// ErrNilEmbedder indicates Deps.Embedder was not set.
	ErrNilEmbedder = errors.New("pipeline: embedder is required")

	// ErrNilGenerator indicates Deps.Generator was not set.
	ErrNilGenerator = errors.New("pipeline: generator is required")

	// ErrNilVectorStore indicates Deps.VectorStore was not set.
	ErrNilVectorStore = errors.New("pipeline: vector store is required")
)

// errEmptyEmbedding guards against a provider answering without a
// vector; retrieval cannot proceed on one.
var errEmptyEmbedding = errors.New("pipeline: embedder returned no vectors")

// flightNamespace prefixes singleflight keys. The key reuses the
// cache digest derivation so two requests collapse exactly when they
// would share a cache entry; the namespace only keeps the keys
// recognizable in debug output.
const flightNamespace = "flight:"

// Config tunes the orchestrator. The zero value is usable; every
// field has a default.
type Config struct {
	// TopK is the default number of chunks to retrieve.
	// Default: 5
	TopK int

	// Threshold is the default minimum certainty for the confidence
	// gate.
	// Default: 0.5
	Threshold float64

	// ChunkChars caps how much of each chunk the prompt quotes.
	// Default: 2000
	ChunkChars int

	// System primes the generator. The default instructs grounded
	// answers with bracketed citations.
	System string

	// MaxTokens caps the completion length. Zero uses the provider
	// default.
	MaxTokens int

	// Temperature controls generation sampling. Zero uses the provider
	// default.
	Temperature float32
}

// Deps are the orchestrator's collaborators. Embedder, Generator, and
// VectorStore are required; every other dependency defaults to a safe
// no-op when nil (disabled limiter and cache, no reranking,
// pass-through executors, no telemetry).
type Deps struct {
	// Limiter gates admission per identity.
	Limiter ratelimit.Limiter

	// Cache serves previously computed answers and stores new ones.
	Cache cache.Cache

	// Embedder turns the query into a vector.
	Embedder llm.Embedder

	// Generator produces the answer from the assembled prompt.
	Generator llm.Generator

	// VectorStore retrieves ranked chunks for the query vector.
	VectorStore retrieval.VectorStore

	// Reranker reorders retrieved chunks, best effort.
	Reranker retrieval.Reranker

	// EmbedExecutor wraps embedding calls with resilience layers.
	EmbedExecutor *resilience.Executor

	// SearchExecutor wraps vector store calls with resilience layers.
	SearchExecutor *resilience.Executor

	// GenerateExecutor wraps generation calls with resilience layers.
	GenerateExecutor *resilience.Executor

	// Observer instruments stages and records terminal outcomes.
	Observer *observe.Middleware
}

// Orchestrator runs requests through the fixed pipeline order. Safe
// for concurrent use; construct one and share it.
type Orchestrator struct {
	deps   Deps
	config Config
	keyer  *cache.DigestKeyer
	group  singleflight.Group
	newID  func() string
}

// NewOrchestrator validates the required collaborators and fills the
// optional ones with safe defaults.
func NewOrchestrator(deps Deps, config Config) (*Orchestrator, error) {
	if deps.Embedder == nil {
		return nil, ErrNilEmbedder
	}
	if deps.Generator == nil {
		return nil, ErrNilGenerator
	}
	if deps.VectorStore == nil {
		return nil, ErrNilVectorStore
	}

	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewDisabled()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewDisabled()
	}
	if deps.Reranker == nil {
		deps.Reranker = retrieval.NoopReranker{}
	}
	if deps.EmbedExecutor == nil {
		deps.EmbedExecutor = resilience.NewExecutor()
	}
	if deps.SearchExecutor == nil {
		deps.SearchExecutor = resilience.NewExecutor()
	}
	if deps.GenerateExecutor == nil {
		deps.GenerateExecutor = resilience.NewExecutor()
	}

	// Apply defaults
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.Threshold <= 0 {
		config.Threshold = 0.5
	}
	if config.ChunkChars <= 0 {
		config.ChunkChars = 2000
	}
	if config.System == "" {
		config.System = defaultSystem
	}

	return &Orchestrator{
		deps:   deps,
		config: config,
		keyer:  cache.NewDigestKeyer(flightNamespace, ""),
		newID:  uuid.NewString,
	}, nil
}

// Handle runs one request through the pipeline and always returns a
// result: dependency failures map to outcomes, never to panics or
// unhandled errors. Zero request fields are filled from the config,
// and a missing identity falls back to the authenticated principal on
// the context, then to AnonymousIdentity.
func (o *Orchestrator) Handle(ctx context.Context, req Request) Result {
	start := time.Now()
	id := o.newID()

	if req.TopK <= 0 {
		req.TopK = o.config.TopK
	}
	if req.Threshold <= 0 {
		req.Threshold = o.config.Threshold
	}
	if req.Identity == "" {
		req.Identity = auth.PrincipalFromContext(ctx)
	}
	if req.Identity == "" {
		req.Identity = AnonymousIdentity
	}

	result := o.handle(ctx, id, req)
	result.RequestID = id

	o.record(ctx, id, result, time.Since(start))
	return result
}

// handle gates admission per caller, then collapses identical misses
// into one computation.
func (o *Orchestrator) handle(ctx context.Context, id string, req Request) Result {
	allowed := true
	_ = o.stage(ctx, id, "admission", "", func(ctx context.Context) error {
		allowed = o.deps.Limiter.Allow(ctx, req.Identity)
		return nil
	})
	if !allowed {
		return Result{Outcome: OutcomeRateLimited}
	}

	params := cache.Params{ResultCount: req.TopK, Threshold: req.Threshold}
	key := o.keyer.Key(req.Query, params)

	v, _, _ := o.group.Do(key, func() (any, error) {
		return o.answer(ctx, id, req, params), nil
	})
	return v.(Result)
}

// answer is the collapsed computation: cache probe through cache
// write.
func (o *Orchestrator) answer(ctx context.Context, id string, req Request, params cache.Params) Result {
	// Cache probe. An undecodable entry reads as a miss.
	var cached *Answer
	_ = o.stage(ctx, id, "cache_probe", "cache", func(ctx context.Context) error {
		payload, hit := o.deps.Cache.Get(ctx, req.Query, params)
		if !hit {
			return nil
		}
		var a Answer
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil
		}
		cached = &a
		return nil
	})
	if cached != nil {
		return Result{Outcome: OutcomeCacheHit, Answer: cached}
	}

	// Embedding. Without a vector there is no retrieval context, so
	// failure here cannot degrade.
	var vector []float32
	err := o.stage(ctx, id, "embed", "embedding", func(ctx context.Context) error {
		return o.deps.EmbedExecutor.Execute(ctx, func(ctx context.Context) error {
			vectors, embedErr := o.deps.Embedder.Embed(ctx, []string{req.Query})
			if embedErr != nil {
				return embedErr
			}
			if len(vectors) == 0 || len(vectors[0]) == 0 {
				return errEmptyEmbedding
			}
			vector = vectors[0]
			return nil
		})
	})
	if err != nil {
		return Result{Outcome: OutcomeEmbeddingUnavailable, Cause: err, RetryAfter: retryAfter(err)}
	}

	// Search.
	var chunks []retrieval.Chunk
	err = o.stage(ctx, id, "search", "vector_store", func(ctx context.Context) error {
		return o.deps.SearchExecutor.Execute(ctx, func(ctx context.Context) error {
			var searchErr error
			chunks, searchErr = o.deps.VectorStore.Search(ctx, vector, req.TopK)
			return searchErr
		})
	})
	if err != nil {
		return Result{Outcome: OutcomeSearchUnavailable, Cause: err, RetryAfter: retryAfter(err)}
	}

	// Rerank, best effort. The reranker returns the original order
	// alongside any error, so the raw ranking serves on failure.
	var warnings []string
	_ = o.stage(ctx, id, "rerank", "", func(ctx context.Context) error {
		reranked, rerankErr := o.deps.Reranker.Rerank(ctx, req.Query, chunks)
		chunks = reranked
		if rerankErr != nil {
			warnings = append(warnings, "reranking unavailable; results kept their retrieval order")
		}
		return rerankErr
	})

	// Confidence gate. An empty result set never passes.
	if len(chunks) == 0 || chunks[0].Score < req.Threshold {
		return Result{Outcome: OutcomeInsufficientKnowledge}
	}

	// Generation, degrading on failure to an answer built from the
	// chunks already in hand.
	prompt := buildPrompt(req.Query, chunks, o.config.ChunkChars)
	var generated *llm.GenerationResult
	err = o.stage(ctx, id, "generate", "generation", func(ctx context.Context) error {
		return o.deps.GenerateExecutor.Execute(ctx, func(ctx context.Context) error {
			result, genErr := o.deps.Generator.Generate(ctx, llm.GenerationRequest{
				System:      o.config.System,
				Prompt:      prompt,
				MaxTokens:   o.config.MaxTokens,
				Temperature: o.config.Temperature,
			})
			if genErr != nil {
				return genErr
			}
			generated = result
			return nil
		})
	})
	if err != nil {
		fallback := degrade.Build(req.Query, chunks, degradeReason(err))
		return Result{
			Outcome: OutcomeDegraded,
			Answer: &Answer{
				Content:   fallback.Answer,
				Citations: fallback.Citations,
				Sources:   sourceList(chunks),
				Mode:      fallback.Mode,
				Reason:    string(fallback.Reason),
				Warnings:  append(warnings, "generation unavailable; showing retrieved material"),
			},
			Cause:      err,
			RetryAfter: retryAfter(err),
		}
	}

	// Citations. Out-of-range references demote to a warning, never a
	// failure.
	answer := &Answer{
		Content: generated.Content,
		Sources: sourceList(chunks),
		Mode:    ModeGenerated,
		Usage:   generated.Usage,
	}
	_ = o.stage(ctx, id, "citations", "", func(ctx context.Context) error {
		cited, outOfRange := extractCitations(generated.Content, len(chunks))
		answer.Citations = cited
		if len(outOfRange) > 0 {
			warnings = append(warnings, fmt.Sprintf("answer cites sources outside the supplied range: %v", outOfRange))
		}
		return nil
	})
	answer.Warnings = warnings

	// Cache write, best effort. A failed write still returns the
	// answer, just uncached.
	_ = o.stage(ctx, id, "cache_write", "cache", func(ctx context.Context) error {
		payload, marshalErr := json.Marshal(answer)
		if marshalErr != nil {
			return marshalErr
		}
		o.deps.Cache.Set(ctx, req.Query, params, payload, cacheTags(chunks, answer.Citations))
		return nil
	})

	return Result{Outcome: OutcomeSuccess, Answer: answer}
}

// stage wraps one pipeline step with telemetry when an observer is
// wired, and runs it bare otherwise.
func (o *Orchestrator) stage(ctx context.Context, id, name, dependency string, fn observe.StageFunc) error {
	if o.deps.Observer == nil {
		return fn(ctx)
	}
	return o.deps.Observer.Stage(ctx, observe.StageMeta{
		RequestID:  id,
		Stage:      name,
		Dependency: dependency,
	}, fn)
}

// record writes the terminal outcome. Only dependency outages count
// as errors on the request metric; rate limiting, the confidence
// gate, and degraded answers are ordinary outcomes.
func (o *Orchestrator) record(ctx context.Context, id string, result Result, duration time.Duration) {
	if o.deps.Observer == nil {
		return
	}
	var err error
	switch result.Outcome {
	case OutcomeEmbeddingUnavailable, OutcomeSearchUnavailable:
		err = result.Cause
	}
	o.deps.Observer.RecordRequest(ctx, id, string(result.Outcome), duration, err)
}

// retryAfter surfaces the breaker's cooldown estimate when the
// failure was a short-circuit.
func retryAfter(err error) time.Duration {
	var open *resilience.OpenError
	if errors.As(err, &open) {
		return open.RetryAfter
	}
	return 0
}

// degradeReason classifies a generation failure for the degraded
// answer's preamble.
func degradeReason(err error) degrade.Reason {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return degrade.ReasonCircuitOpen
	case errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return degrade.ReasonTimeout
	default:
		return degrade.ReasonUnavailable
	}
}
