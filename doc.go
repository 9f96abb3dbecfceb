// ERPNext Workflows - Durable, Interruptible Business Workflows in Go
//
// This module implements the ERPNext workflow service: registered business
// workflows (hotel, hospital, manufacturing, retail, education) run as state
// graphs whose progress is checkpointed before every step, so a run can pause
// for human approval, survive a restart, and resume exactly where it stopped.
//
// # Quick Start
//
// Build an engine over the workflow catalog and an in-memory checkpoint
// store, then execute a workflow:
//
//	reg := registry.New()
//	if err := workflows.RegisterAll(reg); err != nil {
//		log.Fatal(err)
//	}
//
//	eng := engine.New(reg, memory.New(memory.DefaultOptions()), engine.Options{})
//	defer eng.Close()
//
//	result, err := eng.Execute(ctx, engine.ExecuteRequest{
//		GraphName: "hotel_o2c",
//		InitialState: map[string]any{
//			"reservation_id": "RES-100",
//			"guest_name":     "Abebe Bikila",
//			"room_number":    "204",
//			"check_in_date":  "2026-08-20",
//			"check_out_date": "2026-08-22",
//		},
//	}, stream.Discard())
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The hotel workflow gates check-in on approval, so the run pauses and the
// result carries a suspension token describing the pending operation:
//
//	if result.Status == graph.StatusPaused {
//		fmt.Println(result.Interrupt.Operation) // "check_in_guest"
//	}
//
// The decision arrives later, on any process that shares the checkpoint
// store; the thread id is the only handle needed:
//
//	final, err := eng.Resume(ctx, result.ThreadID, "approve", stream.Discard())
//
// # Defining Workflows
//
// A workflow is a typed state graph. The state embeds state.Base, which
// carries the shared bookkeeping (completed steps, errors, approval flags,
// run metadata); nodes return an Outcome that advances along the declared
// edges, jumps to a named node, or suspends for approval:
//
//	type orderState struct {
//		state.Base
//		OrderID string  `json:"order_id"`
//		Amount  float64 `json:"amount"`
//	}
//
//	g := graph.NewStateGraph[orderState]()
//	g.AddNode("validate", "Validate the order", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
//		s.RecordStep("validate")
//		return graph.Advance(s), nil
//	})
//	g.AddNode("approve", "Gate the order on approval", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
//		decision, suspend := steps.Approval(ctx, steps.Request{
//			Operation:     "approve_order",
//			OperationType: "order_approval",
//			RiskLevel:     graph.RiskHigh,
//		})
//		if suspend != nil {
//			return graph.Suspend[orderState](suspend), nil
//		}
//		if !decision.Approved {
//			return graph.Goto(graph.NodeWorkflowRejected, s), nil
//		}
//		s.RecordStep("approve")
//		return graph.Goto(graph.NodeWorkflowCompleted, s), nil
//	})
//	g.SetEntryPoint("validate")
//	g.AddEdge("validate", "approve")
//	runnable, err := g.Compile()
//
// Registering the compiled graph with a descriptor makes it executable by
// name and validates initial states against the declared schema before any
// run starts.
//
// # Checkpoints and Resume
//
// Before every node dispatch the serialized state is written to the
// configured store. A suspension additionally persists the token and the
// suspended node, rewound to the state the node first saw, so resuming
// re-dispatches it with the decision injected into its context. Stores
// expire checkpoints after a TTL (default 24h) and re-arm the clock on
// access, keeping active threads resumable while abandoned ones age out.
//
// Four store backends share one behavior: memory (tests and single-process
// deployments), redis, postgres, and sqlite.
//
// # Streaming
//
// Runs report progress as typed events (workflow_start, step_complete,
// approval_required, workflow_paused, workflow_complete, workflow_rejected,
// workflow_error). Any stream.Sink receives them; stream.Stream bridges a
// run to a channel consumer and the server package frames the same events as
// Server-Sent Events.
//
// # HTTP Service
//
// cmd/workflowd serves the catalog: listing and descriptors, execute and
// resume (JSON result or SSE stream), cancellation, and pending-approval
// lookup with an HTML-rendered operation preview. Runs execute on
// engine-owned contexts, so a dropped client never cancels a workflow.
//
// # Packages
//
//   - graph: typed state graphs, outcomes, suspension, the drive loop
//   - state: the shared workflow state base and run metadata
//   - steps: reusable node helpers (approval gates, notifications, previews)
//   - stream: run events, channel sinks, SSE framing
//   - store: checkpoint envelope and the four backends
//   - registry: descriptors, schema validation, graph loading
//   - engine: thread lifecycle over a registry and a store
//   - server: the HTTP face
//   - workflows: the five industry workflows
package erpnextworkflows // import "github.com/Yosef-Ali/erpnext-workflows"
