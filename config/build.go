package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/ragops/auth"
	"github.com/jonwraymond/ragops/cache"
	"github.com/jonwraymond/ragops/health"
	"github.com/jonwraymond/ragops/llm"
	"github.com/jonwraymond/ragops/observe"
	"github.com/jonwraymond/ragops/pipeline"
	"github.com/jonwraymond/ragops/ratelimit"
	"github.com/jonwraymond/ragops/resilience"
	"github.com/jonwraymond/ragops/retrieval"
	"github.com/jonwraymond/ragops/secret"
	"github.com/jonwraymond/ragops/store"
)

// pingTimeout bounds the construct-time store reachability probe.
const pingTimeout = 5 * time.Second

// System is the assembled module: the orchestrator plus the shared
// infrastructure it runs on. Build wires it; Close tears it down.
type System struct {
	// Orchestrator runs requests through the pipeline.
	Orchestrator *pipeline.Orchestrator

	// Authenticator validates caller credentials. Nil when the auth
	// section is empty; every request then runs anonymous.
	Authenticator auth.Authenticator

	// Observer owns the telemetry providers.
	Observer observe.Observer

	// Store is the shared backend behind the cache and the limiter.
	Store store.Store

	// Health aggregates the store, breaker, and memory checks.
	Health *health.Aggregator

	closers []func(context.Context) error
}

// Close releases everything Build opened, most recently opened first.
// Safe to call more than once.
func (s *System) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Build validates cfg and constructs the full system: telemetry,
// store, cache and limiter, LLM client, vector store, resilience
// layers, orchestrator, health checks, and the authenticator.
//
// A store backend that constructs but fails its reachability probe
// does not fail the build. The cache and the limiter come up disabled
// instead, and the store health check reports the outage; the
// pipeline keeps serving without them.
func Build(ctx context.Context, cfg *Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	resolver := newSecretResolver(cfg.Secrets)
	defer resolver.Close()

	obs, err := observe.NewObserver(ctx, cfg.observeConfig())
	if err != nil {
		return nil, fmt.Errorf("config: observe: %w", err)
	}
	sys := &System{Observer: obs}
	sys.closers = append(sys.closers, obs.Shutdown)
	logger := obs.Logger()

	fail := func(err error) (*System, error) {
		_ = sys.Close(ctx)
		return nil, err
	}

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fail(fmt.Errorf("config: observe: %w", err))
	}

	st, err := buildStore(ctx, cfg.Store, resolver)
	if err != nil {
		return fail(fmt.Errorf("config: store: %w", err))
	}
	sys.Store = st
	sys.closers = append(sys.closers, func(context.Context) error {
		return st.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	storeUp := st.Ping(pingCtx) == nil
	cancel()
	if !storeUp {
		logger.Warn(ctx, "store unreachable, caching and rate limiting disabled",
			observe.Field{Key: "backend", Value: cfg.Store.Backend})
	}

	var responseCache cache.Cache = cache.NewDisabled()
	if cfg.Cache.Enabled && storeUp {
		responseCache = cache.NewResponseCache(st, cache.Config{
			EntryTTL:       cfg.Cache.EntryTTL.Std(),
			TagTTLSlack:    cfg.Cache.TagTTLSlack.Std(),
			OnBackendError: backendErrorHook(logger, "cache"),
		})
	}

	var limiter ratelimit.Limiter = ratelimit.NewDisabled()
	if cfg.RateLimit.Enabled && storeUp {
		limiter = ratelimit.NewSlidingWindow(st, ratelimit.Config{
			MaxRequests:    cfg.RateLimit.MaxRequests,
			Window:         cfg.RateLimit.Window.Std(),
			OnBackendError: backendErrorHook(logger, "rate_limit"),
		})
	}

	apiKey, err := resolver.ResolveValue(ctx, cfg.LLM.APIKey)
	if err != nil {
		return fail(fmt.Errorf("config: llm: api_key: %w", err))
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:          apiKey,
		BaseURL:         cfg.LLM.BaseURL,
		EmbeddingModel:  cfg.LLM.EmbeddingModel,
		GenerationModel: cfg.LLM.GenerationModel,
	})
	if err != nil {
		return fail(fmt.Errorf("config: llm: %w", err))
	}

	vectors, err := buildVectorStore(cfg.Vector)
	if err != nil {
		return fail(fmt.Errorf("config: vector: %w", err))
	}

	embedExec, embedCB := buildDependency("embedding", cfg.Resilience.Embedding, logger)
	searchExec, searchCB := buildDependency("search", cfg.Resilience.Search, logger)
	genExec, genCB := buildDependency("generation", cfg.Resilience.Generation, logger)

	var reranker retrieval.Reranker = retrieval.NoopReranker{}
	if cfg.Rerank.Enabled {
		reranker = retrieval.NewLLMReranker(client, retrieval.LLMRerankerConfig{
			Concurrency: cfg.Rerank.Concurrency,
			ItemTimeout: cfg.Rerank.ItemTimeout.Std(),
		})
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Limiter:          limiter,
		Cache:            responseCache,
		Embedder:         client,
		Generator:        client,
		VectorStore:      vectors,
		Reranker:         reranker,
		EmbedExecutor:    embedExec,
		SearchExecutor:   searchExec,
		GenerateExecutor: genExec,
		Observer:         mw,
	}, pipeline.Config{
		TopK:        cfg.Pipeline.TopK,
		Threshold:   cfg.Pipeline.Threshold,
		ChunkChars:  cfg.Pipeline.ChunkChars,
		System:      cfg.Pipeline.System,
		MaxTokens:   cfg.Pipeline.MaxTokens,
		Temperature: cfg.Pipeline.Temperature,
	})
	if err != nil {
		return fail(fmt.Errorf("config: pipeline: %w", err))
	}
	sys.Orchestrator = orch

	agg := health.NewAggregator()
	agg.Register(health.NewStoreChecker(st))
	agg.Register(health.NewBreakerChecker(embedCB, searchCB, genCB))
	agg.Register(health.NewMemoryChecker(health.MemoryCheckerConfig{}))
	sys.Health = agg

	authenticator, err := buildAuthenticator(ctx, cfg.Auth, resolver)
	if err != nil {
		return fail(fmt.Errorf("config: auth: %w", err))
	}
	sys.Authenticator = authenticator

	return sys, nil
}

// newSecretResolver wires the env provider and, when a directory is
// configured, the file provider.
func newSecretResolver(cfg SecretsConfig) *secret.Resolver {
	resolver := secret.NewResolver(secret.NewEnvProvider())
	if cfg.FileDir != "" {
		resolver.Register(secret.NewFileProvider(cfg.FileDir))
	}
	return resolver
}

func buildStore(ctx context.Context, cfg StoreConfig, resolver *secret.Resolver) (store.Store, error) {
	switch cfg.Backend {
	case "redis":
		password, err := resolver.ResolveValue(ctx, cfg.Redis.Password)
		if err != nil {
			return nil, fmt.Errorf("redis password: %w", err)
		}
		return store.NewRedis(store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: password,
			DB:       cfg.Redis.DB,
		})
	case "badger":
		return store.NewBadger(store.BadgerConfig{
			Dir:      cfg.Badger.Dir,
			InMemory: cfg.Badger.InMemory,
		})
	default:
		return store.NewMemory(), nil
	}
}

func buildVectorStore(cfg VectorConfig) (retrieval.VectorStore, error) {
	switch cfg.Backend {
	case "weaviate":
		return retrieval.NewWeaviate(retrieval.WeaviateConfig{
			URL:       cfg.Weaviate.URL,
			ClassName: cfg.Weaviate.ClassName,
		})
	default:
		return retrieval.NewMemory(), nil
	}
}

// buildDependency assembles the resilience stack around one
// dependency and returns the executor plus its breaker for health
// registration. State changes log at warn, retries at debug; hooks
// carry their own background context because they may fire long after
// the build context is gone.
func buildDependency(name string, cfg DependencyConfig, logger observe.Logger) (*resilience.Executor, *resilience.CircuitBreaker) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout.Std(),
		SuccessThreshold: cfg.SuccessThreshold,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "circuit state changed",
				observe.Field{Key: "breaker", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()})
		},
	})
	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Std(),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Debug(context.Background(), "retrying dependency call",
				observe.Field{Key: "dependency", Value: name},
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay", Value: delay.String()},
				observe.Field{Key: "error", Value: err.Error()})
		},
	})

	opts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(cb),
		resilience.WithRetry(retry),
	}
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
		})))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Timeout.Std()))
	}
	return resilience.NewExecutor(opts...), cb
}

// backendErrorHook routes store degradation reports from the cache
// and the limiter into the log.
func backendErrorHook(logger observe.Logger, component string) func(error) {
	return func(err error) {
		logger.Warn(context.Background(), "store backend error",
			observe.Field{Key: "component", Value: component},
			observe.Field{Key: "error", Value: err.Error()})
	}
}

// buildAuthenticator assembles the configured authenticators. API
// keys come first in the chain since their lookup is cheapest; the
// composite skips authenticators whose credentials are absent either
// way.
func buildAuthenticator(ctx context.Context, cfg AuthConfig, resolver *secret.Resolver) (auth.Authenticator, error) {
	var chain []auth.Authenticator

	if len(cfg.APIKeys) > 0 {
		keyStore := auth.NewMemoryAPIKeyStore()
		for i, entry := range cfg.APIKeys {
			key, err := resolver.ResolveValue(ctx, entry.Key)
			if err != nil {
				return nil, fmt.Errorf("api_keys[%d]: %w", i, err)
			}
			id := entry.ID
			if id == "" {
				id = fmt.Sprintf("key-%d", i)
			}
			keyStore.Add(&auth.APIKeyInfo{
				ID:        id,
				KeyHash:   auth.HashAPIKey(key),
				Principal: entry.Principal,
				TenantID:  entry.Tenant,
			})
		}
		chain = append(chain, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, keyStore))
	}

	if cfg.JWT.Enabled {
		signingSecret, err := resolver.ResolveValue(ctx, cfg.JWT.Secret)
		if err != nil {
			return nil, fmt.Errorf("jwt: secret: %w", err)
		}
		methods := cfg.JWT.Methods
		if len(methods) == 0 {
			methods = []string{"HS256"}
		}
		chain = append(chain, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			Methods:  methods,
		}, auth.NewStaticKeyProvider([]byte(signingSecret))))
	}

	switch len(chain) {
	case 0:
		return nil, nil
	case 1:
		return chain[0], nil
	default:
		return auth.NewCompositeAuthenticator(chain...), nil
	}
}
