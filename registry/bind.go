package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/state"
)

// Workflow is the type-erased execution surface the engine drives. Each
// graph's state type stays private to its package; the engine sees maps on
// the way in and serialized JSON on the way out.
type Workflow interface {
	// Run starts a fresh drive from the entry point with the decoded
	// initial state.
	Run(ctx context.Context, initial map[string]any, cfg *graph.RunConfig) (*graph.Report, error)

	// Resume re-enters a suspended run: snapshot is the persisted state,
	// cfg names the suspended node and carries the decision.
	Resume(ctx context.Context, snapshot []byte, cfg *graph.RunConfig) (*graph.Report, error)
}

// Bind adapts a typed compiled graph into a Workflow. State crosses the
// boundary by JSON round-trip, which is also what checkpoints persist, so
// both directions share one codec.
func Bind[S any](r *graph.Runnable[S]) Workflow {
	return bound[S]{run: r}
}

type bound[S any] struct {
	run *graph.Runnable[S]
}

func (b bound[S]) Run(ctx context.Context, initial map[string]any, cfg *graph.RunConfig) (*graph.Report, error) {
	blob, err := json.Marshal(initial)
	if err != nil {
		return nil, &ValidationError{Graph: cfg.GraphName, Reason: fmt.Sprintf("initial state is not serializable: %v", err)}
	}
	var s S
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, &ValidationError{Graph: cfg.GraphName, Reason: fmt.Sprintf("initial state does not decode: %v", err)}
	}
	if c, ok := any(&s).(state.Carrier); ok {
		c.BaseState().EnsureDefaults("")
	}
	return b.run.Run(ctx, s, cfg)
}

func (b bound[S]) Resume(ctx context.Context, snapshot []byte, cfg *graph.RunConfig) (*graph.Report, error) {
	var s S
	if err := json.Unmarshal(snapshot, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint snapshot: %w", err)
	}
	if c, ok := any(&s).(state.Carrier); ok {
		base := c.BaseState()
		base.EnsureDefaults("")
		base.PendingApproval = false
	}
	return b.run.Run(ctx, s, cfg)
}
