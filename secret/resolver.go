package secret

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

// Inline refs end at whitespace, ":" or "@" so a reference can sit
// inside URL userinfo. Full-form refs parsed by ParseSecretRef may
// still contain ":".
var inlineRefPattern = regexp.MustCompile(`secretref:[^:\s]+:[^\s:@]+`)

// Resolver expands secret references through registered providers.
//
// A value is first run through strict environment expansion. When the
// result is exactly "secretref:<provider>:<ref>" it resolves through
// the named provider; references embedded in a larger string, such as
// a password inside a connection URL, are substituted in place.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver over the given providers.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider, replacing any with the same name.
func (r *Resolver) Register(provider Provider) {
	if provider == nil {
		return
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue expands environment variables and secret references in
// value.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil {
		return "", err
	}

	if name, ref, ok := ParseSecretRef(expanded); ok {
		return r.resolveSingle(ctx, name, ref)
	}
	return r.resolveInline(ctx, expanded)
}

// Close closes every provider and returns the joined errors.
func (r *Resolver) Close() error {
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParseSecretRef splits a reference of the form
// "secretref:<provider>:<ref>" into its parts. ok is false when value
// does not have that shape.
func ParseSecretRef(value string) (provider, ref string, ok bool) {
	rest, found := strings.CutPrefix(value, refPrefix)
	if !found {
		return "", "", false
	}
	provider, ref, found = strings.Cut(rest, ":")
	if !found || provider == "" || ref == "" {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolveSingle(ctx context.Context, name, ref string) (string, error) {
	provider, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("secret provider %q is not registered", name)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", fmt.Errorf("secret provider %q returned an empty value for %q", name, ref)
	}
	return resolved, nil
}

// resolveInline substitutes every embedded reference in value. The
// first resolution failure aborts the whole value so partially
// resolved strings never escape.
func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	var firstErr error
	out := inlineRefPattern.ReplaceAllStringFunc(value, func(match string) string {
		if firstErr != nil {
			return match
		}
		name, ref, _ := ParseSecretRef(match)
		resolved, err := r.resolveSingle(ctx, name, ref)
		if err != nil {
			firstErr = err
			return match
		}
		return resolved
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}
