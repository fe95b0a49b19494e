package auth

import (
	"context"
	"slices"
)

// CompositeAuthenticator tries a chain of authenticators in order and
// stops at the first success. Authenticators that do not recognize the
// request's credentials are skipped.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator chains authenticators in the given order.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string { return "composite" }

// Supports reports whether any chained authenticator supports the
// request.
func (c *CompositeAuthenticator) Supports(ctx context.Context, req *AuthRequest) bool {
	return slices.ContainsFunc(c.authenticators, func(a Authenticator) bool {
		return a.Supports(ctx, req)
	})
}

// Authenticate runs each supporting authenticator until one succeeds.
// When all of them fail, the last failure is returned so the caller
// sees the most specific reason. A request no authenticator recognizes
// fails with ErrMissingCredentials.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	lastFailure := AuthFailure(ErrMissingCredentials, "composite")
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}

		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		lastFailure = result
	}
	return lastFailure, nil
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
