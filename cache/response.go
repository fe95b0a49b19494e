package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/ragops/store"
)

// Config configures the response cache.
type Config struct {
	// Namespace prefixes every response key.
	// Default: "rcache:"
	Namespace string

	// TagNamespace prefixes every tag reverse-index key. Must be
	// disjoint from Namespace.
	// Default: "rctag:"
	TagNamespace string

	// EntryTTL is how long cached responses live.
	// Default: 1 hour
	EntryTTL time.Duration

	// TagTTLSlack is added to EntryTTL for tag indexes, so a tag
	// outlives the last entry registered under it and invalidation
	// never races expiry.
	// Default: 5 minutes
	TagTTLSlack time.Duration

	// OnBackendError is called when the store misbehaves and the cache
	// degrades to a miss or no-op. Wire it to logging or metrics.
	OnBackendError func(err error)
}

// ResponseCache stores serialized answers in a shared store, indexed
// by content digest and grouped under source tags.
type ResponseCache struct {
	config Config
	keyer  *DigestKeyer
	store  store.Store

	hits   atomic.Uint64
	misses atomic.Uint64
	sets   atomic.Uint64
	errs   atomic.Uint64
}

var _ Cache = (*ResponseCache)(nil)

// NewResponseCache creates a response cache over the given store.
func NewResponseCache(s store.Store, config Config) *ResponseCache {
	// Apply defaults
	if config.Namespace == "" {
		config.Namespace = "rcache:"
	}
	if config.TagNamespace == "" {
		config.TagNamespace = "rctag:"
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = time.Hour
	}
	if config.TagTTLSlack <= 0 {
		config.TagTTLSlack = 5 * time.Minute
	}

	return &ResponseCache{
		config: config,
		keyer:  NewDigestKeyer(config.Namespace, config.TagNamespace),
		store:  s,
	}
}

// Keyer exposes the cache's key derivation, mainly for diagnostics.
func (c *ResponseCache) Keyer() *DigestKeyer {
	return c.keyer
}

// Get probes the cache. Store failures read as a miss.
func (c *ResponseCache) Get(ctx context.Context, query string, params Params) ([]byte, bool) {
	value, ok, err := c.store.Get(ctx, c.keyer.Key(query, params))
	if err != nil {
		c.backendError(err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return value, true
}

// Set stores the payload under its digest key and registers the key in
// each tag's reverse index, refreshing that tag's TTL. A failed entry
// write abandons the whole operation; a failed tag registration leaves
// the entry cached but unindexed for that tag.
func (c *ResponseCache) Set(ctx context.Context, query string, params Params, payload []byte, tags []string) {
	key := c.keyer.Key(query, params)

	if err := c.store.Set(ctx, key, payload, c.config.EntryTTL); err != nil {
		c.backendError(err)
		return
	}

	tagTTL := c.config.EntryTTL + c.config.TagTTLSlack
	for _, tag := range tags {
		if err := c.store.AddToSet(ctx, c.keyer.TagKey(tag), key, tagTTL); err != nil {
			c.backendError(err)
		}
	}

	c.sets.Add(1)
}

// InvalidateSource deletes every entry registered under the tag, then
// the tag itself. Returns the number of entries removed.
func (c *ResponseCache) InvalidateSource(ctx context.Context, tag string) int {
	tagKey := c.keyer.TagKey(tag)

	keys, err := c.store.SetMembers(ctx, tagKey)
	if err != nil {
		c.backendError(err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}

	removed, err := c.store.Delete(ctx, keys...)
	if err != nil {
		c.backendError(err)
		return 0
	}
	if _, err := c.store.Delete(ctx, tagKey); err != nil {
		c.backendError(err)
	}
	return removed
}

// Flush deletes everything under both namespaces and returns the
// number of response entries removed.
func (c *ResponseCache) Flush(ctx context.Context) int {
	removed := 0

	keys, err := c.store.Scan(ctx, c.config.Namespace)
	if err != nil {
		c.backendError(err)
	} else if len(keys) > 0 {
		n, err := c.store.Delete(ctx, keys...)
		if err != nil {
			c.backendError(err)
		} else {
			removed = n
		}
	}

	tagKeys, err := c.store.Scan(ctx, c.config.TagNamespace)
	if err != nil {
		c.backendError(err)
	} else if len(tagKeys) > 0 {
		if _, err := c.store.Delete(ctx, tagKeys...); err != nil {
			c.backendError(err)
		}
	}

	return removed
}

// Stats returns a snapshot of cumulative counters.
func (c *ResponseCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
		Errors: c.errs.Load(),
	}
}

func (c *ResponseCache) backendError(err error) {
	c.errs.Add(1)
	if c.config.OnBackendError != nil {
		c.config.OnBackendError(err)
	}
}
