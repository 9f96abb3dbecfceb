package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Yosef-Ali/erpnext-workflows/state"
	"github.com/Yosef-Ali/erpnext-workflows/store"
	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

// Runnable is a compiled graph. It is immutable after Compile and shared by
// any number of concurrent runs; all per-run bookkeeping lives in the drive.
type Runnable[S any] struct {
	nodes       map[string]Node[S]
	static      map[string]string
	conditional map[string]Condition[S]
	entryPoint  string
}

// EntryPoint returns the node a fresh run starts from.
func (r *Runnable[S]) EntryPoint() string {
	return r.entryPoint
}

// Run drives the graph from cfg.StartNode (default: the entry point) until a
// terminal node or a suspension. Before every dispatch it persists the
// serialized state as a checkpoint, so a resumed run re-enters exactly where
// it stopped. Progress events go to cfg.Sink in dispatch order.
//
// The returned error is reserved for infrastructure failures (checkpoint
// writes, state encoding, malformed graphs); node failures are confined to
// the run and end it with StatusRejected.
func (r *Runnable[S]) Run(ctx context.Context, initial S, cfg *RunConfig) (*Report, error) {
	d := &drive[S]{run: r, cfg: cfg.withDefaults(), state: initial}
	return d.loop(ctx)
}

// drive is the per-run execution state.
type drive[S any] struct {
	run        *Runnable[S]
	cfg        RunConfig
	state      S
	dispatches int
}

func (d *drive[S]) loop(ctx context.Context) (*Report, error) {
	node := d.cfg.StartNode
	if node == "" {
		node = d.run.entryPoint
	}
	resume := d.cfg.Resume

	baseOf(&d.state).EnsureDefaults("")

	start, err := json.Marshal(&d.state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode initial state for thread %s: %w", d.cfg.ThreadID, err)
	}
	d.emit(ctx, stream.Event{Type: stream.EventWorkflowStart, State: start})

	lastDispatched := node
	for {
		// Cancellation is observed at the node boundary, never mid-body.
		// It also outranks a terminal transition: a node that returns
		// after its context ended routes to rejected, not completed.
		if ctx.Err() != nil {
			d.cfg.Logger.Warn("thread %s cancelled before node %s", d.cfg.ThreadID, node)
			return d.fail(ctx, node, "cancelled", false)
		}

		if IsTerminal(node) {
			return d.finish(ctx, node, true)
		}

		// The recursion bound is likewise checked between dispatches.
		if d.dispatches >= d.cfg.RecursionLimit {
			d.cfg.Logger.Warn("thread %s exceeded recursion limit %d", d.cfg.ThreadID, d.cfg.RecursionLimit)
			return d.fail(ctx, lastDispatched, "recursion-limit-exceeded", true)
		}

		n, ok := d.run.nodes[node]
		if !ok {
			err := fmt.Errorf("%w: %s", ErrNodeNotFound, node)
			d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: node, State: d.trySnapshot(), Error: err.Error()})
			return nil, err
		}

		base := baseOf(&d.state)
		base.CurrentStep = node
		pre, err := json.Marshal(&d.state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode run state at node %s: %w", node, err)
		}
		if err := d.checkpoint(ctx, pre, store.Metadata{GraphName: d.cfg.GraphName, Node: node}); err != nil {
			d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: node, Error: "checkpoint-failed"})
			return nil, fmt.Errorf("failed to write checkpoint for thread %s at node %s: %w", d.cfg.ThreadID, node, err)
		}

		d.dispatches++
		lastDispatched = node
		prevSteps := len(base.StepsCompleted)

		bodyCtx := ctx
		if resume != nil {
			// The decision is visible to the first dispatched node only.
			bodyCtx = WithResumeValue(ctx, resume.Value)
			resume = nil
		}

		out, err := dispatch(bodyCtx, node, n.Body, d.state)
		if err != nil {
			d.cfg.Logger.Error("node %s failed on thread %s: %v", node, d.cfg.ThreadID, err)
			return d.fail(ctx, node, err.Error(), true)
		}

		var next string
		switch out.kind {
		case outcomeSuspend:
			return d.suspend(ctx, node, pre, out.token)
		case outcomeGoto:
			d.state = out.state
			next = out.target
		default:
			d.state = out.state
			next, err = d.successor(ctx, node)
			if err != nil {
				d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: node, State: d.trySnapshot(), Error: err.Error()})
				return nil, err
			}
		}

		base = baseOf(&d.state)
		if len(base.StepsCompleted) < prevSteps {
			return d.fail(ctx, node, "steps_completed is append-only", true)
		}
		base.CurrentStep = terminalLabel(next)

		snap, err := json.Marshal(&d.state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode run state after node %s: %w", node, err)
		}
		d.emit(ctx, stream.Event{
			Type:     stream.EventStepComplete,
			Step:     node,
			State:    snap,
			Progress: stream.NewProgress(len(base.StepsCompleted), d.cfg.EstimatedSteps),
		})

		node = next
	}
}

// fail records reason as a step failure at node and routes the run to the
// rejected terminal. The cancellation path passes checkpoint=false so a
// cancelled run writes nothing further.
func (d *drive[S]) fail(ctx context.Context, node, reason string, checkpoint bool) (*Report, error) {
	baseOf(&d.state).RecordError(state.StepError{Step: node, Reason: reason})
	d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: node, State: d.trySnapshot(), Error: reason})
	return d.finish(ctx, NodeWorkflowRejected, checkpoint)
}

// finish dispatches the terminal node, emits the closing event, and builds
// the report.
func (d *drive[S]) finish(ctx context.Context, terminal string, checkpoint bool) (*Report, error) {
	label := terminalLabel(terminal)
	base := baseOf(&d.state)
	base.CurrentStep = label
	base.PendingApproval = false

	if checkpoint {
		pre, err := json.Marshal(&d.state)
		if err == nil {
			err = d.checkpoint(ctx, pre, store.Metadata{GraphName: d.cfg.GraphName, Node: terminal})
		}
		if err != nil {
			d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: terminal, Error: "checkpoint-failed"})
			return nil, fmt.Errorf("failed to write checkpoint for thread %s at node %s: %w", d.cfg.ThreadID, terminal, err)
		}
	}

	if n, ok := d.run.nodes[terminal]; ok {
		out, err := dispatch(ctx, terminal, n.Body, d.state)
		switch {
		case err != nil:
			d.cfg.Logger.Error("terminal node %s failed on thread %s: %v", terminal, d.cfg.ThreadID, err)
			base.RecordError(state.StepError{Step: terminal, Reason: err.Error()})
		case out.kind != outcomeSuspend:
			d.state = out.state
		}
		// Terminal labels hold whatever the body did.
		base = baseOf(&d.state)
		base.CurrentStep = label
		base.PendingApproval = false
	}

	snap, err := json.Marshal(&d.state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode final state for thread %s: %w", d.cfg.ThreadID, err)
	}

	status := StatusRejected
	ev := stream.Event{Type: stream.EventWorkflowRejected, State: snap}
	if terminal == NodeWorkflowCompleted {
		status = StatusCompleted
		ev = stream.Event{
			Type:     stream.EventWorkflowComplete,
			State:    snap,
			Progress: stream.NewProgress(len(base.StepsCompleted), d.cfg.EstimatedSteps),
		}
	}
	d.emit(ctx, ev)

	return &Report{ThreadID: d.cfg.ThreadID, Status: status, State: snap}, nil
}

// suspend rewinds to the pre-dispatch snapshot, persists it alongside the
// token, and reports the run as paused. Re-decoding the snapshot discards any
// mutation the node made before suspending, so a resume re-dispatches the
// node against the exact state it first saw.
func (d *drive[S]) suspend(ctx context.Context, node string, pre []byte, token *Suspension) (*Report, error) {
	var rewound S
	if err := json.Unmarshal(pre, &rewound); err != nil {
		return nil, fmt.Errorf("failed to rewind state for thread %s at node %s: %w", d.cfg.ThreadID, node, err)
	}
	d.state = rewound

	base := baseOf(&d.state)
	base.EnsureDefaults("")
	base.PendingApproval = true

	snap, err := json.Marshal(&d.state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode suspension state for thread %s: %w", d.cfg.ThreadID, err)
	}

	var tokenJSON json.RawMessage
	if token != nil {
		tokenJSON, err = json.Marshal(token)
		if err != nil {
			return nil, fmt.Errorf("failed to encode suspension token for thread %s: %w", d.cfg.ThreadID, err)
		}
	}

	if err := d.checkpoint(ctx, snap, store.Metadata{
		GraphName:       d.cfg.GraphName,
		Node:            node,
		PendingApproval: true,
		SuspendedNode:   node,
		Interrupt:       tokenJSON,
	}); err != nil {
		d.emit(ctx, stream.Event{Type: stream.EventWorkflowError, Step: node, Error: "checkpoint-failed"})
		return nil, fmt.Errorf("failed to write suspension checkpoint for thread %s at node %s: %w", d.cfg.ThreadID, node, err)
	}

	d.emit(ctx, stream.Event{Type: stream.EventApprovalRequired, Step: node, State: snap, Interrupt: tokenJSON})
	d.emit(ctx, stream.Event{Type: stream.EventWorkflowPaused, State: snap})
	d.cfg.Logger.Info("thread %s paused at node %s awaiting approval", d.cfg.ThreadID, node)

	return &Report{
		ThreadID:      d.cfg.ThreadID,
		Status:        StatusPaused,
		State:         snap,
		Suspension:    token,
		SuspendedNode: node,
	}, nil
}

// successor resolves the declared edge of node against the post-merge state.
func (d *drive[S]) successor(ctx context.Context, node string) (string, error) {
	if cond, ok := d.run.conditional[node]; ok {
		next := cond(ctx, d.state)
		if next == "" {
			return "", fmt.Errorf("conditional edge from %s returned no node", node)
		}
		return next, nil
	}
	if next, ok := d.run.static[node]; ok {
		return next, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, node)
}

func (d *drive[S]) checkpoint(ctx context.Context, snapshot []byte, meta store.Metadata) error {
	if d.cfg.Checkpoints == nil {
		return nil
	}
	return d.cfg.Checkpoints.Put(ctx, &store.Checkpoint{
		ID:        store.NewCheckpointID(),
		ThreadID:  d.cfg.ThreadID,
		State:     snapshot,
		Timestamp: stream.Now(),
		Meta:      meta,
	})
}

// emit stamps the run identity on ev and sends it. Send failures mean the
// run context ended; the boundary check picks that up, so they are only
// logged here.
func (d *drive[S]) emit(ctx context.Context, ev stream.Event) {
	ev.GraphName = d.cfg.GraphName
	ev.ThreadID = d.cfg.ThreadID
	ev.Timestamp = stream.Now()
	if err := d.cfg.Sink.Send(ctx, ev); err != nil {
		d.cfg.Logger.Debug("dropped %s event for thread %s: %v", ev.Type, d.cfg.ThreadID, err)
	}
}

func (d *drive[S]) trySnapshot() json.RawMessage {
	snap, err := json.Marshal(&d.state)
	if err != nil {
		return nil
	}
	return snap
}

// dispatch invokes a node body, converting panics into node failures so a
// broken step cannot take the whole service down.
func dispatch[S any](ctx context.Context, name string, body NodeFunc[S], s S) (out Outcome[S], err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic in node %s: %v", name, v)
		}
	}()
	return body(ctx, s)
}
