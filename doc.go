// Package omnitrace implements the tracing engine of an application
// performance tracer: three concurrent callback pipelines — an interpreted
// language's per-frame trace hook, a GPU/accelerator runtime's host-API
// callback, and that runtime's asynchronous activity callback — joined into
// a single correlated timeline via a shared correlation-id namespace and a
// CPU/GPU clock-skew correction.
//
// The package does not launch processes, rewrite binaries, parse
// configuration files, or persist traces; those are external collaborators
// consumed through the sink interfaces in sinks.go.
package omnitrace
