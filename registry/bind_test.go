package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yosef-Ali/erpnext-workflows/graph"
)

func TestBind_RunDecodesInitialState(t *testing.T) {
	wf := Bind(demoGraph(t))

	rep, err := wf.Run(context.Background(), map[string]any{
		"reservation_id": "RES-001",
		"guest_name":     "John Doe",
	}, &graph.RunConfig{GraphName: "hotel_o2c", ThreadID: "wf-bind-1"})
	require.NoError(t, err)

	assert.Equal(t, graph.StatusCompleted, rep.Status)

	var final demoState
	require.NoError(t, json.Unmarshal(rep.State, &final))
	assert.Equal(t, "RES-001", final.ReservationID)
	assert.Equal(t, "John Doe", final.GuestName)
	assert.Equal(t, []string{"confirm"}, final.StepsCompleted)
}

func TestBind_RunRejectsUndecodableState(t *testing.T) {
	wf := Bind(demoGraph(t))

	_, err := wf.Run(context.Background(), map[string]any{
		"reservation_id": []any{"not", "a", "string"},
	}, &graph.RunConfig{GraphName: "hotel_o2c"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "does not decode")
}

func TestBind_ResumeClearsPendingApproval(t *testing.T) {
	g := graph.NewStateGraph[demoState]()
	g.AddNode("gate", "", func(ctx context.Context, s demoState) (graph.Outcome[demoState], error) {
		if _, ok := graph.ResumeValue(ctx); !ok {
			return graph.Suspend[demoState](&graph.Suspension{Operation: "gate"}), nil
		}
		s.RecordStep("gate")
		return graph.Goto(graph.NodeWorkflowCompleted, s), nil
	})
	g.SetEntryPoint("gate")
	run, err := g.Compile()
	require.NoError(t, err)

	wf := Bind(run)

	paused, err := wf.Run(context.Background(), map[string]any{"reservation_id": "RES-9"}, &graph.RunConfig{GraphName: "demo", ThreadID: "wf-bind-2"})
	require.NoError(t, err)
	require.Equal(t, graph.StatusPaused, paused.Status)

	var snap demoState
	require.NoError(t, json.Unmarshal(paused.State, &snap))
	assert.True(t, snap.PendingApproval)

	resumed, err := wf.Resume(context.Background(), paused.State, &graph.RunConfig{
		GraphName: "demo",
		ThreadID:  "wf-bind-2",
		StartNode: paused.SuspendedNode,
		Resume:    &graph.Resume{Value: "approve"},
	})
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, resumed.Status)

	var final demoState
	require.NoError(t, json.Unmarshal(resumed.State, &final))
	assert.False(t, final.PendingApproval)
	assert.Equal(t, []string{"gate"}, final.StepsCompleted)
	assert.Equal(t, "RES-9", final.ReservationID)
}

func TestBind_ResumeRejectsCorruptSnapshot(t *testing.T) {
	wf := Bind(demoGraph(t))

	_, err := wf.Resume(context.Background(), []byte("{torn"), &graph.RunConfig{GraphName: "demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint snapshot")
}
