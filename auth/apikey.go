package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const defaultAPIKeyHeader = "X-API-Key"

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the request header carrying the raw key.
	// Defaults to "X-API-Key".
	HeaderName string
}

// APIKeyInfo is the stored record for one issued key. Only the hash of
// the key persists, never the plaintext.
type APIKeyInfo struct {
	// ID names the key itself, for audit trails and revocation.
	ID string

	// KeyHash is the SHA-256 hex digest of the raw key.
	KeyHash string

	// Principal is the caller the key authenticates as.
	Principal string

	// TenantID scopes the key to a tenant, empty for global keys.
	TenantID string

	// ExpiresAt is the key's expiry. Zero means the key never expires.
	ExpiresAt time.Time

	// Metadata carries provisioning attributes, copied into the
	// identity's claims on success.
	Metadata map[string]any
}

// APIKeyStore resolves key records by hash. Lookup returns (nil, nil)
// for unknown hashes, reserving errors for store failures.
type APIKeyStore interface {
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys against a backing store.
type APIKeyAuthenticator struct {
	header string
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates an authenticator that reads keys from
// the configured header and resolves them through store.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	header := config.HeaderName
	if header == "" {
		header = defaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return string(AuthMethodAPIKey) }

// Supports reports whether the request carries the key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.header) != ""
}

// Authenticate hashes the presented key and resolves it through the
// store. Unknown keys fail with ErrInvalidCredentials and expired ones
// with ErrTokenExpired. Store failures surface as errors.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	key := strings.TrimSpace(req.GetHeader(a.header))
	if key == "" {
		return AuthFailure(ErrMissingCredentials, string(AuthMethodAPIKey)), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(key))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, string(AuthMethodAPIKey)), nil
	}

	identity := identityForKey(info)
	if identity.IsExpired() {
		return AuthFailure(ErrTokenExpired, string(AuthMethodAPIKey)), nil
	}
	return AuthSuccess(identity), nil
}

// identityForKey maps a key record to the identity it grants. Metadata
// becomes claims, with key_id recording which key authenticated.
func identityForKey(info *APIKeyInfo) *Identity {
	claims := make(map[string]any, len(info.Metadata)+1)
	for k, v := range info.Metadata {
		claims[k] = v
	}
	claims["key_id"] = info.ID

	return &Identity{
		Principal: info.Principal,
		TenantID:  info.TenantID,
		Method:    AuthMethodAPIKey,
		Claims:    claims,
		ExpiresAt: info.ExpiresAt,
	}
}

// HashAPIKey returns the SHA-256 hex digest of a raw key, the form
// stores index by.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryAPIKeyStore is an in-memory APIKeyStore for tests and small
// deployments.
type MemoryAPIKeyStore struct {
	mu     sync.RWMutex
	byHash map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore returns an empty store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{byHash: make(map[string]*APIKeyInfo)}
}

// Lookup returns the record for keyHash, or nil when none exists.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHash[keyHash], nil
}

// Add registers a key record under its hash, replacing any previous
// record with the same hash.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[info.KeyHash] = info
}

// Remove deletes the record stored under keyHash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byHash, keyHash)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
