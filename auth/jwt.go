package auth

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	// Methods restricts the accepted signing algorithms, e.g.
	// ["HS256"]. Empty accepts whatever the key validates.
	Methods []string

	// HeaderName is the request header carrying the token.
	// Defaults to "Authorization".
	HeaderName string

	// TokenPrefix precedes the token in the header.
	// Defaults to "Bearer ".
	TokenPrefix string

	// PrincipalClaim is the claim holding the caller's principal.
	// Defaults to "sub".
	PrincipalClaim string

	// TenantClaim is the claim holding the tenant ID. Empty skips
	// tenant extraction.
	TenantClaim string
}

// KeyProvider retrieves verification keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the verification key for the given key ID. The
	// key ID is empty when the token header carries no kid.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider returns one shared key regardless of key ID.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider wraps a fixed signing key.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(context.Context, string) (any, error) {
	return p.key, nil
}

// JWTAuthenticator validates bearer tokens signed with keys from a
// KeyProvider.
type JWTAuthenticator struct {
	header         string
	prefix         string
	principalClaim string
	tenantClaim    string
	keys           KeyProvider
	parserOpts     []jwt.ParserOption
}

// NewJWTAuthenticator creates an authenticator that reads prefixed
// tokens from the configured header and verifies them with keys.
func NewJWTAuthenticator(config JWTConfig, keys KeyProvider) *JWTAuthenticator {
	var opts []jwt.ParserOption
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if len(config.Methods) > 0 {
		opts = append(opts, jwt.WithValidMethods(config.Methods))
	}

	return &JWTAuthenticator{
		header:         cmp.Or(config.HeaderName, "Authorization"),
		prefix:         cmp.Or(config.TokenPrefix, "Bearer "),
		principalClaim: cmp.Or(config.PrincipalClaim, "sub"),
		tenantClaim:    config.TenantClaim,
		keys:           keys,
		parserOpts:     opts,
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string { return string(AuthMethodJWT) }

// Supports reports whether the configured header carries a prefixed
// token.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	_, ok := a.bearerToken(req)
	return ok
}

// bearerToken extracts the raw token from the configured header.
func (a *JWTAuthenticator) bearerToken(req *AuthRequest) (string, bool) {
	header := req.GetHeader(a.header)
	if !strings.HasPrefix(header, a.prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(header, a.prefix)), true
}

// Authenticate parses and verifies the bearer token, mapping parse
// failures onto the package sentinels.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	raw, ok := a.bearerToken(req)
	if !ok {
		return AuthFailure(ErrMissingCredentials, string(AuthMethodJWT)), nil
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return a.keys.GetKey(ctx, kid)
	}, a.parserOpts...)
	if err != nil {
		return AuthFailure(classifyJWTError(err), string(AuthMethodJWT)), nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return AuthFailure(ErrTokenMalformed, string(AuthMethodJWT)), nil
	}
	return AuthSuccess(a.identityFromClaims(claims)), nil
}

// classifyJWTError picks the sentinel for a token the parser rejected.
// Expiry and verification failures keep their own classes so callers
// can distinguish a stale token from a forged one.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrInvalidCredentials
	default:
		return ErrTokenMalformed
	}
}

func (a *JWTAuthenticator) identityFromClaims(claims jwt.MapClaims) *Identity {
	id := &Identity{
		Method: AuthMethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	maps.Copy(id.Claims, claims)

	if principal, ok := claims[a.principalClaim].(string); ok {
		id.Principal = principal
	}
	if a.tenantClaim != "" {
		if tenant, ok := claims[a.tenantClaim].(string); ok {
			id.TenantID = tenant
		}
	}
	if exp, ok := claims["exp"].(float64); ok {
		id.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok {
		id.IssuedAt = time.Unix(int64(iat), 0)
	}
	return id
}

var (
	_ Authenticator = (*JWTAuthenticator)(nil)
	_ KeyProvider   = (*StaticKeyProvider)(nil)
)
