// Package diag defines the diagnostic model shared by the preprocessor and
// the sync orchestrator.
//
// Diagnostics here are never fatal. Hard failures (a cartridge without a
// __lua__ section, a missing include) are ordinary Go errors returned by the
// packages that detect them. Diagnostics cover findings that do not change the
// output but usually point at a mistake in the companion source, such as an
// --#end without a matching --#if.
//
// # Data model
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary – file and 1-based line of the finding.
//
// # Emitting diagnostics
//
// Producers take a diag.Reporter and call Report (or the ReportWarning /
// ReportInfo helpers, which accept a nil reporter). BagReporter collects into
// a Bag with a size limit; DedupReporter drops repeats, which matters in watch
// mode where the same file is preprocessed on every save.
package diag
