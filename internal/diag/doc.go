// Package diag defines the diagnostic model shared by the design loader and
// the elaborator.
//
// # Purpose
//
//   - Provide deterministic data structures that capture findings produced
//     while loading design files and while building the instance hierarchy.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// # Scope
//
// Package diag does not perform any formatting or IO. Rendering lives in
// internal/diagfmt, orchestration lives in internal/driver.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – Info, Warning, Error or Fatal, see severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary span – the source.Span pointing to the issue.
//   - Notes – optional secondary spans/messages for additional context.
//
// Fatal marks problems after which the affected subtree is not elaborated
// further: runaway recursive instantiation and re-entrant body elaboration.
//
// # Reporting
//
// Producers talk to the Reporter interface. BagReporter stores into a Bag,
// DedupReporter drops exact repeats, NopReporter swallows everything and is
// used when evaluating expressions speculatively.
package diag
