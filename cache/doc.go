// Package cache provides a content-addressed response cache with
// tag-based bulk invalidation.
//
// Keys are derived deterministically from the normalized query text and
// the numeric parameters that affect the result. Entries can be
// registered under source tags so that re-ingesting one knowledge
// source invalidates exactly the answers built from it. Backend
// failures never escape the public surface: reads fail to miss, writes
// fail to no-op.
package cache
