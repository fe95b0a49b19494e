package ratelimit

import (
	"context"
	"time"

	"github.com/jonwraymond/ragops/store"
)

// Limiter is the admission gate checked at the head of every request.
type Limiter interface {
	// Allow reports whether the identity may proceed. It never blocks on
	// a broken backend and never returns an error; infrastructure
	// trouble admits the request.
	Allow(ctx context.Context, identity string) bool

	// Remaining is a best-effort view of the identity's unused quota.
	// It may be stale under concurrency and must never be used to gate
	// admission. Unlimited capacity is reported as -1.
	Remaining(ctx context.Context, identity string) int
}

// Config configures the sliding-window limiter.
type Config struct {
	// MaxRequests is the number of admissions allowed per identity
	// within one window.
	// Default: 100
	MaxRequests int

	// Window is the trailing interval admissions are counted over.
	// Default: 1 minute
	Window time.Duration

	// KeyPrefix namespaces limiter state in the shared store.
	// Default: "rl:"
	KeyPrefix string

	// OnBackendError is called when the store misbehaves and the
	// limiter fails open. Wire it to logging or metrics.
	OnBackendError func(err error)
}

// SlidingWindow admits up to MaxRequests per identity over a trailing
// window. The discard-count-record sequence runs as one atomic store
// operation, so concurrent callers sharing an identity cannot
// over-admit.
type SlidingWindow struct {
	config Config
	store  store.Store
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow creates a limiter over the given store.
func NewSlidingWindow(s store.Store, config Config) *SlidingWindow {
	// Apply defaults
	if config.MaxRequests <= 0 {
		config.MaxRequests = 100
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rl:"
	}

	return &SlidingWindow{config: config, store: s}
}

// Allow runs the atomic admission check for the identity. Store
// failures admit the request and fire OnBackendError.
func (l *SlidingWindow) Allow(ctx context.Context, identity string) bool {
	ok, err := l.store.Admit(ctx, l.key(identity), l.config.MaxRequests, l.config.Window)
	if err != nil {
		// Fail open
		if l.config.OnBackendError != nil {
			l.config.OnBackendError(err)
		}
		return true
	}
	return ok
}

// Remaining reads the identity's unused quota with a separate,
// non-atomic round trip. On store failure it reports the full quota,
// consistent with Allow failing open.
func (l *SlidingWindow) Remaining(ctx context.Context, identity string) int {
	used, err := l.store.Count(ctx, l.key(identity), l.config.Window)
	if err != nil {
		if l.config.OnBackendError != nil {
			l.config.OnBackendError(err)
		}
		return l.config.MaxRequests
	}
	remaining := l.config.MaxRequests - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Config returns the limiter configuration.
func (l *SlidingWindow) Config() Config {
	return l.config
}

func (l *SlidingWindow) key(identity string) string {
	return l.config.KeyPrefix + identity
}

// Disabled is the limiter used when no shared store is reachable at
// construction time. It admits everything for the instance's lifetime
// instead of re-probing the backend on every call.
type Disabled struct{}

var _ Limiter = (*Disabled)(nil)

// NewDisabled creates a limiter that always admits.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Allow always admits.
func (*Disabled) Allow(ctx context.Context, identity string) bool {
	return true
}

// Remaining reports unlimited capacity.
func (*Disabled) Remaining(ctx context.Context, identity string) int {
	return -1
}
