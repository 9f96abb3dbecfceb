package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/log"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/state"
	"github.com/Yosef-Ali/erpnext-workflows/store"
	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

// Options tunes an Engine. The zero value selects the defaults.
type Options struct {
	// RecursionLimit is the default dispatch bound for runs that do not set
	// their own.
	RecursionLimit int

	// Logger receives engine and drive diagnostics.
	Logger log.Logger

	// BaseContext is the context runs derive from, keeping them alive past
	// the request that started them. Defaults to context.Background().
	BaseContext context.Context
}

// Engine executes, resumes, and cancels workflow runs against a registry and
// a checkpoint store.
type Engine struct {
	registry *registry.Registry
	store    store.CheckpointStore
	limit    int
	logger   log.Logger

	base context.Context
	stop context.CancelFunc

	mu   sync.Mutex
	live map[string]context.CancelFunc
}

// New wires an engine. The store may be nil for ephemeral runs; resume then
// has nothing to load from.
func New(reg *registry.Registry, ckpts store.CheckpointStore, opts Options) *Engine {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = graph.DefaultRecursionLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.GetDefaultLogger()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	base, stop := context.WithCancel(opts.BaseContext)
	return &Engine{
		registry: reg,
		store:    ckpts,
		limit:    opts.RecursionLimit,
		logger:   opts.Logger,
		base:     base,
		stop:     stop,
		live:     make(map[string]context.CancelFunc),
	}
}

// ExecuteRequest starts a fresh run.
type ExecuteRequest struct {
	GraphName    string
	InitialState map[string]any

	// ThreadID pins the run identity; empty allocates a fresh UUID.
	ThreadID string

	// RecursionLimit overrides the engine default when positive.
	RecursionLimit int
}

// Result summarizes a run for API callers.
type Result struct {
	ThreadID   string
	Status     graph.Status
	FinalState json.RawMessage
	Interrupt  *graph.Suspension
	Err        error
}

// Execute validates, loads, and drives a workflow to its first stop:
// completion, rejection, or a suspension awaiting approval. Validation and
// load failures return before any event or checkpoint is produced.
// Infrastructure failures mid-run come back as a Result with StatusError.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest, sink stream.Sink) (*Result, error) {
	if err := e.registry.Validate(req.GraphName, req.InitialState); err != nil {
		return nil, err
	}
	wf, err := e.registry.Load(req.GraphName)
	if err != nil {
		return nil, err
	}
	desc, err := e.registry.Get(req.GraphName)
	if err != nil {
		return nil, err
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	runCtx, release, err := e.acquire(threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	limit := req.RecursionLimit
	if limit <= 0 {
		limit = e.limit
	}

	e.logger.Info("executing %s (thread %s)", req.GraphName, threadID)
	report, err := wf.Run(runCtx, stampMetadata(req.InitialState, desc, threadID), &graph.RunConfig{
		ThreadID:       threadID,
		GraphName:      req.GraphName,
		RecursionLimit: limit,
		EstimatedSteps: desc.EstimatedSteps,
		Checkpoints:    e.store,
		Sink:           sink,
		Logger:         e.logger,
	})
	if err != nil {
		e.logger.Error("run %s aborted: %v", threadID, err)
		return &Result{ThreadID: threadID, Status: graph.StatusError, Err: err}, nil
	}
	return resultOf(report), nil
}

// Resume re-hydrates a suspended run from its latest checkpoint and drives
// it onward with the decision delivered to the suspended node.
func (e *Engine) Resume(ctx context.Context, threadID string, decision any, sink stream.Sink) (*Result, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	cp, err := e.store.GetLatest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for thread %s: %w", threadID, err)
	}
	if !cp.Meta.PendingApproval || cp.Meta.SuspendedNode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotSuspended, threadID)
	}

	wf, err := e.registry.Load(cp.Meta.GraphName)
	if err != nil {
		return nil, err
	}
	desc, err := e.registry.Get(cp.Meta.GraphName)
	if err != nil {
		return nil, err
	}

	runCtx, release, err := e.acquire(threadID)
	if err != nil {
		return nil, err
	}
	defer release()

	e.logger.Info("resuming %s at %s (thread %s, decision %v)",
		cp.Meta.GraphName, cp.Meta.SuspendedNode, threadID, decision)
	report, err := wf.Resume(runCtx, cp.State, &graph.RunConfig{
		ThreadID:       threadID,
		GraphName:      cp.Meta.GraphName,
		RecursionLimit: e.limit,
		EstimatedSteps: desc.EstimatedSteps,
		StartNode:      cp.Meta.SuspendedNode,
		Resume:         &graph.Resume{Value: decision},
		Checkpoints:    e.store,
		Sink:           sink,
		Logger:         e.logger,
	})
	if err != nil {
		e.logger.Error("resume %s aborted: %v", threadID, err)
		return &Result{ThreadID: threadID, Status: graph.StatusError, Err: err}, nil
	}
	return resultOf(report), nil
}

// Cancel flips the cancellation token of a live run; the drive loop observes
// it at the next node boundary. It reports whether a run was live. Suspended
// runs are not live; cancel those by resuming with a reject decision.
func (e *Engine) Cancel(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.live[threadID]
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether a thread id currently has a live run.
func (e *Engine) Running(threadID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.live[threadID]
	return ok
}

// Pending describes the approval a paused thread is waiting on.
type Pending struct {
	ThreadID      string
	GraphName     string
	SuspendedNode string
	Suspension    *graph.Suspension
	State         json.RawMessage
}

// PendingApproval returns the suspension a paused thread is waiting on, read
// from its latest checkpoint.
func (e *Engine) PendingApproval(ctx context.Context, threadID string) (*Pending, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	cp, err := e.store.GetLatest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint for thread %s: %w", threadID, err)
	}
	if !cp.Meta.PendingApproval || cp.Meta.SuspendedNode == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotSuspended, threadID)
	}

	pending := &Pending{
		ThreadID:      threadID,
		GraphName:     cp.Meta.GraphName,
		SuspendedNode: cp.Meta.SuspendedNode,
		State:         cp.State,
	}
	if len(cp.Meta.Interrupt) > 0 {
		var token graph.Suspension
		if err := json.Unmarshal(cp.Meta.Interrupt, &token); err != nil {
			return nil, fmt.Errorf("failed to decode suspension for thread %s: %w", threadID, err)
		}
		pending.Suspension = &token
	}
	return pending, nil
}

// Close cancels every live run and stops accepting the base context. Safe to
// call more than once.
func (e *Engine) Close() {
	e.stop()
}

// acquire registers threadID in the live table and returns the run context.
func (e *Engine) acquire(threadID string) (context.Context, func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.live[threadID]; busy {
		return nil, nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	runCtx, cancel := context.WithCancel(e.base)
	e.live[threadID] = cancel
	release := func() {
		e.mu.Lock()
		delete(e.live, threadID)
		e.mu.Unlock()
		cancel()
	}
	return runCtx, release, nil
}

// stampMetadata fills run metadata into the initial state when the caller
// did not provide any. The input map is not mutated.
func stampMetadata(initial map[string]any, desc registry.Descriptor, threadID string) map[string]any {
	if meta, ok := initial["metadata"]; ok && meta != nil {
		return initial
	}
	stamped := make(map[string]any, len(initial)+1)
	for k, v := range initial {
		stamped[k] = v
	}
	stamped["metadata"] = map[string]any{
		"workflow_name": desc.Name,
		"industry":      desc.Industry,
		"run_id":        threadID,
		"trigger":       state.TriggerAPI,
	}
	return stamped
}

func resultOf(report *graph.Report) *Result {
	return &Result{
		ThreadID:   report.ThreadID,
		Status:     report.Status,
		FinalState: report.State,
		Interrupt:  report.Suspension,
	}
}
