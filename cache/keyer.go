package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// DigestKeyer derives the persisted key layout for the shared store.
//
// Response keys: namespace + hex(SHA-256(lowercased_query + "|" +
// result_count + "|" + threshold)). Tag keys: tagNamespace + the raw
// source identifier, each holding the set of response keys registered
// under it.
//
// Contract:
// - Determinism: identical query/params always produce the same key;
//   queries differing only by case or surrounding whitespace collide
//   on purpose.
// - Concurrency: stateless, safe for concurrent use.
type DigestKeyer struct {
	namespace    string
	tagNamespace string
}

// NewDigestKeyer creates a keyer with the given namespaces. The two
// must not share a prefix or Flush would scan one into the other.
func NewDigestKeyer(namespace, tagNamespace string) *DigestKeyer {
	return &DigestKeyer{namespace: namespace, tagNamespace: tagNamespace}
}

// Key derives the response key for a query and its parameters.
func (k *DigestKeyer) Key(query string, params Params) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	material := normalized +
		"|" + strconv.Itoa(params.ResultCount) +
		"|" + strconv.FormatFloat(params.Threshold, 'g', -1, 64)

	sum := sha256.Sum256([]byte(material))
	return k.namespace + hex.EncodeToString(sum[:])
}

// TagKey derives the reverse-index key for a source identifier. The
// identifier is kept raw so operators can inspect and invalidate tags
// by the same name the ingest layer uses.
func (k *DigestKeyer) TagKey(source string) string {
	return k.tagNamespace + source
}
