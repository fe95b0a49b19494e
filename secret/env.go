package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secrets from process environment variables.
type EnvProvider struct{}

// NewEnvProvider creates an environment variable provider.
func NewEnvProvider() EnvProvider {
	return EnvProvider{}
}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve looks up ref as an environment variable. Unset variables are
// an error; empty values are returned as-is and rejected by the
// resolver.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", ref)
	}
	return value, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }
