// Package trace is the logging and tracing layer of p8sync.
//
// Every long-running operation (a CLI command, one sync of a companion pair,
// each preprocessor pass) opens a span; notable facts along the way are
// emitted as point events. With tracing off the Nop tracer makes all of this
// free.
//
// # Usage
//
//	p8sync watch --trace=- --trace-level=phase carts/
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr), text or NDJSON
//   - RingTracer: circular buffer, dumped when a sync fails
//   - MultiTracer: combines stream and ring
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: failures only
//   - LevelPhase: watch loop, commands and per-pair sync boundaries
//   - LevelDetail: preprocessor and normalizer passes
//   - LevelDebug: per-line directive events
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePass, "include")
//	defer span.End("")
package trace
