// Package server is the HTTP face of the workflow engine: health and
// registry listings, execute/resume/cancel operations, and pending-approval
// lookups with sanitized HTML previews.
//
// Runs stream as server-sent events by default. Response headers are held
// back until a run's first event, so validation and load failures still
// answer with plain status codes. Once a stream is open, client disconnects
// are absorbed: the drain loop discards write failures and the run finishes
// on the engine's own context.
package server
