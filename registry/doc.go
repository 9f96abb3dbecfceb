// Package registry maps workflow names to compiled graphs.
//
// Workflows register a Definition at startup: a Descriptor (industry, tags,
// initial-state schema, step estimate, capabilities) plus a Loader that
// builds the compiled graph. Descriptors are immutable after registration;
// compiled graphs are built lazily on first Load and cached for the life of
// the process.
//
// Validate checks a caller-supplied initial state against the declared
// schema before anything executes: absent required fields and hint/value
// type mismatches surface as a *ValidationError the HTTP layer can map to a
// 400.
//
// Bind adapts a typed *graph.Runnable[S] into the non-generic Workflow
// interface the engine drives, converting initial-state maps and checkpoint
// snapshots to S by JSON round-trip.
package registry
