// Package state defines the run-state record shared by all workflow graphs.
//
// Every graph declares its own typed state struct and embeds Base, which
// carries the fields the executor, checkpoint store, and HTTP layer agree on:
// current step, completed steps, accumulated errors, and the approval flags.
// The JSON field names are the wire contract; clients and checkpoints both
// see them verbatim.
//
//	type OrderState struct {
//		state.Base
//
//		OrderID string  `json:"order_id"`
//		Total   float64 `json:"order_total"`
//	}
//
// The executor reaches the embedded record through the Carrier interface,
// which *Base implements, so graph code never needs reflection.
package state
