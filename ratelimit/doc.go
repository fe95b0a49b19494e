// Package ratelimit provides per-identity sliding-window admission
// control backed by a shared store.
//
// The limiter is checked before any expensive work begins. Backend
// outages never block admission: a limiter that cannot reach its store
// fails open and reports the event through a hook instead of an error.
package ratelimit
