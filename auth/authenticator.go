package auth

import "context"

// Authenticator turns request credentials into an identity.
//
// Implementations must be safe for concurrent use and should honor
// context cancellation. The error return of Authenticate is reserved
// for internal failures, a key store outage rather than a bad token;
// rejected credentials come back as (result, nil) with Authenticated
// false and Error naming the sentinel.
type Authenticator interface {
	// Name identifies the scheme, e.g. "jwt" or "api_key".
	Name() string

	// Supports reports whether the request carries credentials this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate verifies the request's credentials.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the credential material of one request.
type AuthRequest struct {
	// Headers contains transport headers (Authorization, X-API-Key).
	Headers map[string][]string

	// Metadata carries transport attributes outside the headers.
	Metadata map[string]any
}

// GetHeader returns the first value for a header, or the empty string.
func (r *AuthRequest) GetHeader(key string) string {
	if values := r.Headers[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	// Authenticated reports whether a credential was accepted.
	Authenticated bool

	// Identity is the authenticated identity (only when Authenticated).
	Identity *Identity

	// Error names the failure (only when not Authenticated).
	Error error

	// Method is the authenticator that produced this result.
	Method string
}

// AuthSuccess wraps an identity in a successful result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure wraps a failure reason in an unauthenticated result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}

// AuthenticatorFunc adapts plain functions to the Authenticator
// interface, mostly for tests and small custom schemes.
type AuthenticatorFunc struct {
	name     string
	supports func(ctx context.Context, req *AuthRequest) bool
	auth     func(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(
	name string,
	supports func(ctx context.Context, req *AuthRequest) bool,
	auth func(ctx context.Context, req *AuthRequest) (*AuthResult, error),
) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, supports: supports, auth: auth}
}

func (f *AuthenticatorFunc) Name() string { return f.name }

func (f *AuthenticatorFunc) Supports(ctx context.Context, req *AuthRequest) bool {
	return f.supports(ctx, req)
}

func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.auth(ctx, req)
}

var _ Authenticator = (*AuthenticatorFunc)(nil)
