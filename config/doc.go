// Package config loads the module's YAML configuration and assembles
// the running system from it.
//
// Load reads a file, layers it over Default, applies RAGOPS_*
// environment overrides, and validates every section:
//
//	cfg, err := config.Load("ragops.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Build turns a validated Config into a System: telemetry first, then
// the shared store, the cache and limiter on top of it, the LLM
// client, the vector store, one resilience stack per dependency, the
// orchestrator, the health aggregator, and the authenticator:
//
//	sys, err := config.Build(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer sys.Close(ctx)
//
//	result := sys.Orchestrator.Handle(ctx, pipeline.Request{Query: q})
//
// Secret-valued fields (the LLM API key, the Redis password, the JWT
// secret, API keys) accept secretref:env:NAME and, when
// secrets.file_dir is set, secretref:file:path references; Build
// resolves them and the plaintext never lands in the Config.
//
// A store that constructs but cannot be reached does not fail Build.
// The cache and the limiter come up disabled, the store health check
// reports the outage, and the pipeline serves without them.
package config
