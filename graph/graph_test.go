package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yosef-Ali/erpnext-workflows/state"
)

type testState struct {
	state.Base

	Value   string `json:"value,omitempty"`
	Counter int    `json:"counter,omitempty"`
}

func passThrough(_ context.Context, s testState) (Outcome[testState], error) {
	return Advance(s), nil
}

func TestCompile_RequiresEntryPoint(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", passThrough)

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrEntryPointNotSet)
}

func TestCompile_EntryPointMustExist(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", passThrough)
	g.SetEntryPoint("missing")

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompile_EdgeEndpointsMustExist(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", passThrough)
	g.SetEntryPoint("a")
	g.AddEdge("a", "ghost")

	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestCompile_RejectsDuplicateStaticSuccessors(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", passThrough)
	g.AddNode("b", "", passThrough)
	g.AddNode("c", "", passThrough)
	g.SetEntryPoint("a")
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")

	_, err := g.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two static successors")
}

func TestCompile_RequiresBaseState(t *testing.T) {
	type bare struct {
		Value string
	}
	g := NewStateGraph[bare]()
	g.AddNode("a", "", func(_ context.Context, s bare) (Outcome[bare], error) {
		return Advance(s), nil
	})
	g.SetEntryPoint("a")

	_, err := g.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state.Base")
}

func TestCompile_RegistersDefaultTerminals(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", func(_ context.Context, s testState) (Outcome[testState], error) {
		return Goto(NodeWorkflowCompleted, s), nil
	})
	g.SetEntryPoint("a")

	run, err := g.Compile()
	require.NoError(t, err)

	_, hasCompleted := run.nodes[NodeWorkflowCompleted]
	_, hasRejected := run.nodes[NodeWorkflowRejected]
	assert.True(t, hasCompleted)
	assert.True(t, hasRejected)
	assert.Equal(t, "a", run.EntryPoint())
}

func TestCompile_KeepsCustomTerminalBody(t *testing.T) {
	g := NewStateGraph[testState]()
	g.AddNode("a", "", func(_ context.Context, s testState) (Outcome[testState], error) {
		return Goto(NodeWorkflowCompleted, s), nil
	})
	g.AddNode(NodeWorkflowCompleted, "custom", func(_ context.Context, s testState) (Outcome[testState], error) {
		s.Value = "finalized"
		return Advance(s), nil
	})
	g.SetEntryPoint("a")

	run, err := g.Compile()
	require.NoError(t, err)

	rep, err := run.Run(context.Background(), testState{Base: state.NewBase("")}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rep.Status)
	assert.Contains(t, string(rep.State), `"finalized"`)
}

func TestTerminalLabel(t *testing.T) {
	assert.Equal(t, state.StepCompleted, terminalLabel(NodeWorkflowCompleted))
	assert.Equal(t, state.StepRejected, terminalLabel(NodeWorkflowRejected))
	assert.Equal(t, "add_charges", terminalLabel("add_charges"))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(NodeWorkflowCompleted))
	assert.True(t, IsTerminal(NodeWorkflowRejected))
	assert.False(t, IsTerminal("check_in_guest"))
}

func TestResumeValue_AbsentByDefault(t *testing.T) {
	_, ok := ResumeValue(context.Background())
	assert.False(t, ok)
}

func TestResumeValue_NilPayloadIsStillPresent(t *testing.T) {
	ctx := WithResumeValue(context.Background(), nil)

	v, ok := ResumeValue(ctx)
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestResumeValue_RoundTrip(t *testing.T) {
	ctx := WithResumeValue(context.Background(), map[string]any{"approved": true})

	v, ok := ResumeValue(ctx)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"approved": true}, v)
}
