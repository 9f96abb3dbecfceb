// Package stream carries run progress from the executor to HTTP clients.
//
// The executor emits typed Events (workflow_start, step_complete,
// approval_required, workflow_paused, workflow_complete, workflow_rejected,
// workflow_error) into a channel-backed Stream; the HTTP layer drains the
// channel and renders each event in server-sent-event framing. Backpressure
// is a blocked send bounded by the run's context, so a slow reader slows the
// run and a vanished reader never wedges it.
package stream
