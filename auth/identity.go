package auth

import "time"

// AuthMethod names the credential type that produced an identity.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAPIKey    AuthMethod = "api_key"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is an authenticated caller. The pipeline keys the rate
// limiter by Principal and attaches it to log lines; nothing else in
// the system interprets the other fields.
type Identity struct {
	// Principal is the unique identifier (e.g., user ID, email, key id).
	Principal string

	// TenantID scopes the principal when one deployment serves several
	// tenants.
	TenantID string

	// Method records which credential type produced this identity.
	Method AuthMethod

	// Claims holds the raw claims from the credential.
	Claims map[string]any

	// ExpiresAt is when this identity expires. Zero means no expiry.
	ExpiresAt time.Time

	// IssuedAt is when the credential was issued.
	IssuedAt time.Time
}

// IsExpired reports whether the identity has expired.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}

// IsAnonymous reports whether this identity names no principal.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// Anonymous returns the identity used for unauthenticated callers.
// They share one rate-limit bucket.
func Anonymous() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
