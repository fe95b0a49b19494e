// Package degrade builds substitute answers from already-retrieved
// context when the generation dependency is unavailable.
//
// Build is a pure function: no clock, no randomness, no I/O. The same
// query, chunks and reason always produce byte-identical output, and
// the citation indices always cover the chunks in input order, so the
// caller can treat a degraded answer exactly like a generated one.
package degrade
