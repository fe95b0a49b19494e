// Package store defines the shared backend contract used by the
// response cache and the rate limiter.
//
// It provides key-value operations with TTL, set membership for tag
// indexes, and an atomic sliding-window admission primitive, with
// in-memory, Redis, and Badger implementations.
package store
