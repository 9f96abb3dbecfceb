// Package steps is the reusable step kit workflow graphs compose their node
// bodies from: the approval gate, retry with exponential backoff, issue
// escalation, and notifications.
//
// Every utility is a pure function over its inputs plus an injected Notifier
// or stream.Sink; none reaches into executor internals. The approval gate is
// the bridge to the suspension machinery: on a fresh dispatch it returns the
// graph.Suspension token the node hands to graph.Suspend, and on the resumed
// dispatch it interprets the delivered decision.
//
//	func checkInGuest(ctx context.Context, s State) (graph.Outcome[State], error) {
//		decision, suspend := steps.Approval(ctx, steps.Request{
//			Operation:     "check_in_guest",
//			OperationType: "hotel_check_in",
//			RiskLevel:     graph.RiskMedium,
//			Details:       map[string]any{"guest_name": s.GuestName},
//		})
//		if suspend != nil {
//			return graph.Suspend[State](suspend), nil
//		}
//		if !decision.Approved {
//			// record the rejection, route to the rejected terminal
//		}
//		// perform the step
//	}
package steps
