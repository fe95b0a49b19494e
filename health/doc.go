// Package health reports the operational state of the pipeline's
// moving parts.
//
// Checkers cover the shared store backend (StoreChecker), the circuit
// breakers guarding external dependencies (BreakerChecker), and
// runtime heap pressure (MemoryChecker); any component can join by
// implementing Checker or wrapping a function with NewCheckerFunc.
//
// An Aggregator runs registered checks concurrently under one deadline
// and reduces them worst-wins:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewStoreChecker(st))
//	agg.Register(health.NewBreakerChecker(embedBreaker, genBreaker))
//
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
//
// The probe handlers expose the aggregate over plain net/http:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)    // /healthz /readyz /health
//
// Degraded is a serving state: readiness stays OK while a breaker
// probes recovery, and only an unhealthy set flips /readyz to 503.
package health
