package secret

import "context"

// Provider resolves one class of secret reference, e.g. process
// environment variables or files under a mounted volume.
//
// Implementations are safe for concurrent use and never log the
// values they resolve.
type Provider interface {
	// Name is the scheme prefix resolvers route on, e.g. "env".
	Name() string

	// Resolve returns the secret value for ref.
	Resolve(ctx context.Context, ref string) (string, error)

	// Close releases any backend connections the provider holds.
	Close() error
}
