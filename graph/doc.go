// Package graph models workflows as directed graphs of typed nodes and
// drives their execution with durable checkpoints.
//
// A StateGraph[S] is built once at startup: named nodes, static edges,
// conditional edges, and an entry point. Compile validates the shape and
// returns a Runnable[S] that many runs share concurrently.
//
// Node bodies return an Outcome[S] instead of mutating shared structures:
//
//	g := graph.NewStateGraph[OrderState]()
//	g.AddNode("reserve_stock", "Reserve warehouse stock", func(ctx context.Context, s OrderState) (graph.Outcome[OrderState], error) {
//		s.ReservationID = "RES-" + s.OrderID
//		s.RecordStep("reserve_stock")
//		return graph.Advance(s), nil
//	})
//
// Advance follows the node's declared edge, Goto jumps to a named successor,
// and Suspend pauses the run with a Suspension token until an out-of-band
// decision arrives. Suspension is a value, not an error: the drive loop
// rewinds to the pre-dispatch snapshot, persists it with the token, and
// reports the run as paused.
//
// The drive loop (Runnable.Run) checkpoints the serialized state before every
// dispatch, emits progress events through a stream.Sink, observes
// cancellation and the recursion bound at node boundaries, and routes node
// failures to the rejected terminal. Resuming a paused run re-enters at the
// suspended node with the decision delivered through the context; the value
// is visible to that first dispatch only.
package graph
