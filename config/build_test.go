package config

import (
	"context"
	"strings"
	"testing"

	"github.com/jonwraymond/ragops/auth"
	"github.com/jonwraymond/ragops/health"
)

// build constructs a system from cfg and registers its teardown.
func build(t *testing.T, cfg Config) *System {
	t.Helper()
	sys, err := Build(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() {
		if err := sys.Close(context.Background()); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return sys
}

func TestBuild_MemoryDefaults(t *testing.T) {
	sys := build(t, base())

	if sys.Orchestrator == nil {
		t.Error("Orchestrator = nil")
	}
	if sys.Store == nil {
		t.Error("Store = nil")
	}
	if sys.Observer == nil {
		t.Error("Observer = nil")
	}
	if sys.Authenticator != nil {
		t.Errorf("Authenticator = %v, want nil without an auth section", sys.Authenticator)
	}

	names := sys.Health.CheckerNames()
	want := []string{"store", "breakers", "memory"}
	if len(names) != len(want) {
		t.Fatalf("CheckerNames() = %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("CheckerNames()[%d] = %q, want %q", i, names[i], name)
		}
	}

	results := sys.Health.CheckAll(context.Background())
	if got := health.OverallStatus(results); got != health.StatusHealthy {
		t.Errorf("OverallStatus() = %v, want healthy (results %v)", got, results)
	}
}

func TestBuild_ValidationFailure(t *testing.T) {
	cfg := Default() // no API key

	sys, err := Build(context.Background(), &cfg)
	if err == nil {
		sys.Close(context.Background())
		t.Fatal("Build() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "config: llm") {
		t.Errorf("error = %q, want mention of the llm section", err)
	}
}

func TestBuild_DisabledCacheAndLimiter(t *testing.T) {
	cfg := base()
	cfg.Cache.Enabled = false
	cfg.RateLimit.Enabled = false

	sys := build(t, cfg)
	if sys.Orchestrator == nil {
		t.Error("Orchestrator = nil")
	}
}

func TestBuild_BadgerInMemory(t *testing.T) {
	cfg := base()
	cfg.Store.Backend = "badger"
	cfg.Store.Badger.InMemory = true

	sys := build(t, cfg)
	ctx := context.Background()

	// The store handle is live and shared.
	if err := sys.Store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := sys.Store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v, want value", got, ok, err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestBuild_BadgerWithoutDirFails(t *testing.T) {
	cfg := base()
	cfg.Store.Backend = "badger"

	_, err := Build(context.Background(), &cfg)
	if err == nil {
		t.Fatal("Build() error = nil, want store error")
	}
	if !strings.Contains(err.Error(), "config: store") {
		t.Errorf("error = %q, want mention of the store section", err)
	}
}

func TestBuild_UnreachableStoreDegrades(t *testing.T) {
	cfg := base()
	cfg.Store.Backend = "redis"
	// Nothing listens on port 1; the probe fails fast.
	cfg.Store.Redis.Addr = "127.0.0.1:1"

	sys := build(t, cfg)

	result, err := sys.Health.Check(context.Background(), "store")
	if err != nil {
		t.Fatalf("Check(store) error = %v", err)
	}
	if result.Status != health.StatusUnhealthy {
		t.Errorf("store check = %v, want unhealthy", result.Status)
	}

	// The pipeline still came up; only cache and limiting dropped out.
	if sys.Orchestrator == nil {
		t.Error("Orchestrator = nil, want a serving pipeline")
	}
}

func TestBuild_WeaviateBackend(t *testing.T) {
	cfg := base()
	cfg.Vector.Backend = "weaviate"
	cfg.Vector.Weaviate.URL = "localhost:8080"

	// Construction is offline; only Search would touch the endpoint.
	sys := build(t, cfg)
	if sys.Orchestrator == nil {
		t.Error("Orchestrator = nil")
	}
}

func TestBuild_SecretRefAPIKey(t *testing.T) {
	t.Setenv("RAGOPS_TEST_OPENAI_KEY", "sk-resolved")

	cfg := base()
	cfg.LLM.APIKey = "secretref:env:RAGOPS_TEST_OPENAI_KEY"

	sys := build(t, cfg)
	if sys.Orchestrator == nil {
		t.Error("Orchestrator = nil")
	}
}

func TestBuild_UnresolvableAPIKeyFails(t *testing.T) {
	cfg := base()
	cfg.LLM.APIKey = "${RAGOPS_TEST_UNSET_KEY}"

	_, err := Build(context.Background(), &cfg)
	if err == nil {
		t.Fatal("Build() error = nil, want resolution error")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error = %q, want mention of api_key", err)
	}
	if !strings.Contains(err.Error(), "RAGOPS_TEST_UNSET_KEY") {
		t.Errorf("error = %q, want the missing variable named", err)
	}
}

func TestBuild_APIKeyAuthenticator(t *testing.T) {
	cfg := base()
	cfg.Auth.APIKeys = []APIKeyEntry{
		{ID: "ci", Key: "k-secret", Principal: "ci-bot", Tenant: "infra"},
	}

	sys := build(t, cfg)
	if sys.Authenticator == nil {
		t.Fatal("Authenticator = nil, want API key authenticator")
	}
	if got := sys.Authenticator.Name(); got != "api_key" {
		t.Errorf("Name() = %q, want %q", got, "api_key")
	}

	ctx := context.Background()
	result, err := sys.Authenticator.Authenticate(ctx, &auth.AuthRequest{
		Headers: map[string][]string{"X-API-Key": {"k-secret"}},
	})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if !result.Authenticated {
		t.Fatalf("Authenticated = false, want true (error %v)", result.Error)
	}
	if result.Identity.Principal != "ci-bot" {
		t.Errorf("Principal = %q, want %q", result.Identity.Principal, "ci-bot")
	}
	if result.Identity.TenantID != "infra" {
		t.Errorf("TenantID = %q, want %q", result.Identity.TenantID, "infra")
	}

	result, err = sys.Authenticator.Authenticate(ctx, &auth.AuthRequest{
		Headers: map[string][]string{"X-API-Key": {"wrong"}},
	})
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if result.Authenticated {
		t.Error("Authenticated = true for a wrong key, want false")
	}
}

func TestBuild_CompositeAuth(t *testing.T) {
	cfg := base()
	cfg.Auth.JWT.Enabled = true
	cfg.Auth.JWT.Secret = "hmac-secret"
	cfg.Auth.APIKeys = []APIKeyEntry{
		{Key: "k1", Principal: "svc"},
	}

	sys := build(t, cfg)
	if sys.Authenticator == nil {
		t.Fatal("Authenticator = nil, want composite")
	}
	if got := sys.Authenticator.Name(); got != "composite" {
		t.Errorf("Name() = %q, want %q", got, "composite")
	}
}

func TestBuild_JWTSecretRefMissingFails(t *testing.T) {
	cfg := base()
	cfg.Auth.JWT.Enabled = true
	cfg.Auth.JWT.Secret = "secretref:env:RAGOPS_TEST_UNSET_JWT_SECRET"

	_, err := Build(context.Background(), &cfg)
	if err == nil {
		t.Fatal("Build() error = nil, want resolution error")
	}
	if !strings.Contains(err.Error(), "config: auth") {
		t.Errorf("error = %q, want mention of the auth section", err)
	}
}

func TestSystem_CloseTwice(t *testing.T) {
	cfg := base()
	sys, err := Build(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if err := sys.Close(context.Background()); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := sys.Close(context.Background()); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
