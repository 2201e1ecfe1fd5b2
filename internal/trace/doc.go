// Package trace records what the elaborator is doing while it runs.
//
// Tracing is off by default. The CLI turns it on with --trace:
//
//	svelab elab --trace=- --trace-level=detail design.toml
//
// # Levels and scopes
//
// Every event carries a Scope. A Level decides which scopes are written:
//
//   - LevelPhase: driver and phase boundaries (load, elaborate, binds, dump)
//   - LevelDetail: adds one span per definition whose body gets elaborated
//   - LevelDebug: adds one span per instance
//
// # Sinks
//
// StreamTracer writes immediately, RingTracer keeps the last N events for a
// post-mortem dump, MultiTracer fans out to both. Nop is used when disabled
// and costs one interface call per span.
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePhase, "elaborate", 0)
//	defer span.End("")
package trace
