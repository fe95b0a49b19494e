// Package observe provides observability primitives for request handling.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The pipeline wires the observer through Middleware
// to put every stage under a span and every terminal outcome on the metrics.
package observe
