package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
	"github.com/Yosef-Ali/erpnext-workflows/log"
	"github.com/Yosef-Ali/erpnext-workflows/registry"
	"github.com/Yosef-Ali/erpnext-workflows/state"
	"github.com/Yosef-Ali/erpnext-workflows/steps"
	"github.com/Yosef-Ali/erpnext-workflows/store/memory"
	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

type orderState struct {
	state.Base
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Posted  bool    `json:"posted"`
}

// buildOrderWorkflow compiles a small three-step graph with an approval gate
// that only trips for orders over 1000.
func buildOrderWorkflow() (registry.Workflow, error) {
	g := graph.NewStateGraph[orderState]()

	g.AddNode("validate_order", "Validate the incoming order", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
		s.RecordStep("validate_order")
		return graph.Advance(s), nil
	})

	g.AddNode("approve_order", "Gate high-value orders on approval", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
		risk := graph.RiskMedium
		if s.Amount > 1000 {
			risk = graph.RiskHigh
		}
		decision, suspend := steps.ApprovalIfAtLeast(ctx, steps.Request{
			Operation:     "approve_order",
			OperationType: "order_approval",
			RiskLevel:     risk,
			Details:       map[string]any{"order_id": s.OrderID, "amount": s.Amount},
		}, graph.RiskHigh)
		if suspend != nil {
			return graph.Suspend[orderState](suspend), nil
		}
		if !decision.Approved {
			s.RecordError(state.StepError{Step: "approve_order", Reason: "Order rejected"})
			return graph.Goto(graph.NodeWorkflowRejected, s), nil
		}
		s.RecordStep("approve_order")
		return graph.Advance(s), nil
	})

	g.AddNode("post_order", "Post the approved order", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
		s.Posted = true
		s.RecordStep("post_order")
		return graph.Goto(graph.NodeWorkflowCompleted, s), nil
	})

	g.AddEdge("validate_order", "approve_order")
	g.AddEdge("approve_order", "post_order")
	g.SetEntryPoint("validate_order")

	runnable, err := g.Compile()
	if err != nil {
		return nil, err
	}
	return registry.Bind(runnable), nil
}

func orderDefinition() registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:        "order_approval",
			Description: "Order approval: Validate -> Approve -> Post",
			Industry:    "retail",
			Schema: registry.Schema{
				{Name: "order_id", Hint: "str"},
				{Name: "amount", Hint: "float"},
			},
			EstimatedSteps: 3,
		},
		Loader: buildOrderWorkflow,
	}
}

// blockingDefinition builds a graph whose first node parks until release
// closes or the run context ends.
func blockingDefinition(name string, started chan<- struct{}, release <-chan struct{}) registry.Definition {
	return registry.Definition{
		Descriptor: registry.Descriptor{
			Name:           name,
			Description:    "Parks in its first node",
			Industry:       "test",
			EstimatedSteps: 1,
		},
		Loader: func() (registry.Workflow, error) {
			g := graph.NewStateGraph[orderState]()
			g.AddNode("park", "Wait for the test to release the run", func(ctx context.Context, s orderState) (graph.Outcome[orderState], error) {
				started <- struct{}{}
				select {
				case <-release:
				case <-ctx.Done():
				}
				s.RecordStep("park")
				return graph.Goto(graph.NodeWorkflowCompleted, s), nil
			})
			g.SetEntryPoint("park")
			runnable, err := g.Compile()
			if err != nil {
				return nil, err
			}
			return registry.Bind(runnable), nil
		},
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []stream.Event
}

func (c *captureSink) Send(ctx context.Context, ev stream.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) types() []stream.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]stream.EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func newTestEngine(t *testing.T, defs ...registry.Definition) *Engine {
	t.Helper()
	reg := registry.New()
	reg.MustRegister(orderDefinition())
	for _, def := range defs {
		reg.MustRegister(def)
	}
	eng := New(reg, memory.New(memory.DefaultOptions()), Options{Logger: &log.NoOpLogger{}})
	t.Cleanup(eng.Close)
	return eng
}

func decodeOrder(t *testing.T, raw json.RawMessage) orderState {
	t.Helper()
	var s orderState
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestExecute_CompletesAndStampsMetadata(t *testing.T) {
	eng := newTestEngine(t)
	sink := &captureSink{}

	result, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-1", "amount": 250.0},
	}, sink)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, graph.StatusCompleted, result.Status)
	assert.NotEmpty(t, result.ThreadID)

	final := decodeOrder(t, result.FinalState)
	assert.Equal(t, state.StepCompleted, final.CurrentStep)
	assert.Equal(t, []string{"validate_order", "approve_order", "post_order"}, final.StepsCompleted)
	assert.True(t, final.Posted)

	require.NotNil(t, final.Metadata)
	assert.Equal(t, "order_approval", final.Metadata.WorkflowName)
	assert.Equal(t, "retail", final.Metadata.Industry)
	assert.Equal(t, result.ThreadID, final.Metadata.RunID)
	assert.Equal(t, state.TriggerAPI, final.Metadata.Trigger)

	types := sink.types()
	assert.Equal(t, stream.EventWorkflowStart, types[0])
	assert.Equal(t, stream.EventWorkflowComplete, types[len(types)-1])
}

func TestExecute_CallerMetadataWins(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName: "order_approval",
		InitialState: map[string]any{
			"order_id": "SO-2",
			"amount":   10.0,
			"metadata": map[string]any{"workflow_name": "order_approval", "trigger": "canvas"},
		},
	}, stream.Discard())

	require.NoError(t, err)
	final := decodeOrder(t, result.FinalState)
	require.NotNil(t, final.Metadata)
	assert.Equal(t, state.TriggerCanvas, final.Metadata.Trigger)
	assert.Empty(t, final.Metadata.RunID)
}

func TestExecute_ExplicitThreadID(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-3", "amount": 10.0},
		ThreadID:     "thread-42",
	}, stream.Discard())

	require.NoError(t, err)
	assert.Equal(t, "thread-42", result.ThreadID)
}

func TestExecute_ValidationFailure(t *testing.T) {
	eng := newTestEngine(t)
	sink := &captureSink{}

	result, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-4"},
	}, sink)

	require.Error(t, err)
	assert.Nil(t, result)

	var verr *registry.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"amount"}, verr.Missing)
	assert.Empty(t, sink.types(), "no events before validation passes")
}

func TestExecute_UnknownGraph(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "no_such_graph",
		InitialState: map[string]any{},
	}, stream.Discard())
	assert.ErrorIs(t, err, registry.ErrUnknownGraph)
}

func TestExecute_PausesOnHighValue(t *testing.T) {
	eng := newTestEngine(t)
	sink := &captureSink{}

	result, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-5", "amount": 5000.0},
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, graph.StatusPaused, result.Status)
	require.NotNil(t, result.Interrupt)
	assert.Equal(t, "approve_order", result.Interrupt.Operation)
	assert.Equal(t, graph.RiskHigh, result.Interrupt.RiskLevel)

	final := decodeOrder(t, result.FinalState)
	assert.True(t, final.PendingApproval)

	pending, err := eng.PendingApproval(context.Background(), result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "order_approval", pending.GraphName)
	assert.Equal(t, "approve_order", pending.SuspendedNode)
	require.NotNil(t, pending.Suspension)
	assert.Equal(t, "order_approval", pending.Suspension.OperationType)

	types := sink.types()
	assert.Equal(t, stream.EventApprovalRequired, types[len(types)-2])
	assert.Equal(t, stream.EventWorkflowPaused, types[len(types)-1])
}

func TestResume_ApproveCompletes(t *testing.T) {
	eng := newTestEngine(t)

	paused, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-6", "amount": 5000.0},
	}, stream.Discard())
	require.NoError(t, err)
	require.Equal(t, graph.StatusPaused, paused.Status)

	sink := &captureSink{}
	result, err := eng.Resume(context.Background(), paused.ThreadID, "approve", sink)
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, result.Status)
	assert.Equal(t, paused.ThreadID, result.ThreadID)

	final := decodeOrder(t, result.FinalState)
	assert.False(t, final.PendingApproval)
	assert.Equal(t, []string{"validate_order", "approve_order", "post_order"}, final.StepsCompleted)

	types := sink.types()
	assert.Equal(t, stream.EventWorkflowStart, types[0])
	assert.Equal(t, stream.EventWorkflowComplete, types[len(types)-1])
}

func TestResume_RejectRoutesToRejected(t *testing.T) {
	eng := newTestEngine(t)

	paused, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-7", "amount": 5000.0},
	}, stream.Discard())
	require.NoError(t, err)

	result, err := eng.Resume(context.Background(), paused.ThreadID, "reject", stream.Discard())
	require.NoError(t, err)
	assert.Equal(t, graph.StatusRejected, result.Status)

	final := decodeOrder(t, result.FinalState)
	assert.Equal(t, state.StepRejected, final.CurrentStep)
	require.NotEmpty(t, final.Errors)
	assert.Equal(t, "approve_order", final.Errors[0].Step)
	assert.Equal(t, "Order rejected", final.Errors[0].Reason)
}

func TestResume_UnknownThread(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.Resume(context.Background(), "never-ran", "approve", stream.Discard())
	assert.ErrorIs(t, err, ErrUnknownThread)
}

func TestResume_CompletedThreadNotSuspended(t *testing.T) {
	eng := newTestEngine(t)

	done, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-8", "amount": 10.0},
	}, stream.Discard())
	require.NoError(t, err)
	require.Equal(t, graph.StatusCompleted, done.Status)

	_, err = eng.Resume(context.Background(), done.ThreadID, "approve", stream.Discard())
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestExecute_ThreadBusyConflict(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	eng := newTestEngine(t, blockingDefinition("parking", started, release))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err := eng.Execute(context.Background(), ExecuteRequest{
			GraphName:    "parking",
			InitialState: map[string]any{},
			ThreadID:     "busy-thread",
		}, stream.Discard())
		assert.NoError(t, err)
		assert.Equal(t, graph.StatusCompleted, result.Status)
	}()

	<-started
	assert.True(t, eng.Running("busy-thread"))

	_, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "parking",
		InitialState: map[string]any{},
		ThreadID:     "busy-thread",
	}, stream.Discard())
	assert.ErrorIs(t, err, ErrThreadBusy)

	close(release)
	wg.Wait()
	assert.False(t, eng.Running("busy-thread"))
}

func TestCancel_StopsLiveRun(t *testing.T) {
	started := make(chan struct{}, 1)
	eng := newTestEngine(t, blockingDefinition("cancellable", started, nil))

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := eng.Execute(context.Background(), ExecuteRequest{
			GraphName:    "cancellable",
			InitialState: map[string]any{},
			ThreadID:     "cancel-me",
		}, stream.Discard())
		done <- outcome{result, err}
	}()

	<-started
	assert.True(t, eng.Cancel("cancel-me"))

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, graph.StatusRejected, out.result.Status)
		final := decodeOrder(t, out.result.FinalState)
		require.NotEmpty(t, final.Errors)
		assert.Equal(t, "cancelled", final.Errors[0].Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled run did not stop")
	}

	assert.False(t, eng.Cancel("cancel-me"), "finished runs are no longer live")
}

func TestCancel_UnknownThread(t *testing.T) {
	eng := newTestEngine(t)
	assert.False(t, eng.Cancel("nobody-home"))
}

func TestPendingApproval_Errors(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.PendingApproval(context.Background(), "never-ran")
	assert.ErrorIs(t, err, ErrUnknownThread)

	done, err := eng.Execute(context.Background(), ExecuteRequest{
		GraphName:    "order_approval",
		InitialState: map[string]any{"order_id": "SO-9", "amount": 10.0},
	}, stream.Discard())
	require.NoError(t, err)

	_, err = eng.PendingApproval(context.Background(), done.ThreadID)
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestClose_CancelsLiveRuns(t *testing.T) {
	started := make(chan struct{}, 1)
	eng := newTestEngine(t, blockingDefinition("long_haul", started, nil))

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := eng.Execute(context.Background(), ExecuteRequest{
			GraphName:    "long_haul",
			InitialState: map[string]any{},
		}, stream.Discard())
		done <- outcome{result, err}
	}()

	<-started
	eng.Close()

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, graph.StatusRejected, out.result.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not observe engine shutdown")
	}
}
