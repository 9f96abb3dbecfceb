package graph

import (
	"context"
	"fmt"

	"github.com/Yosef-Ali/erpnext-workflows/state"
)

// Conventional terminal nodes. Every compiled graph has both; Compile
// registers default bodies when the builder did not define them.
const (
	NodeWorkflowCompleted = "workflow_completed"
	NodeWorkflowRejected  = "workflow_rejected"
)

// NodeFunc is a node body: it receives the current state and returns the
// outcome of the visit. Returning an error records a step failure and routes
// the run to the rejected terminal.
type NodeFunc[S any] func(ctx context.Context, s S) (Outcome[S], error)

// Node is a named step in a workflow graph.
type Node[S any] struct {
	Name        string
	Description string
	Body        NodeFunc[S]
}

// Edge is a static connection: after From advances, To dispatches next.
type Edge struct {
	From string
	To   string
}

// Condition picks the next node name from the post-merge state.
type Condition[S any] func(ctx context.Context, s S) string

// StateGraph builds a workflow over the state type S. S must embed
// state.Base (checked at Compile) so the drive loop can track progress,
// approvals, and errors uniformly.
//
// Build the graph once at startup; it is not safe for concurrent mutation.
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	order            []string
	edges            []Edge
	conditionalEdges map[string]Condition[S]
	entryPoint       string
}

// NewStateGraph creates an empty graph for the state type S.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]Condition[S]),
	}
}

// AddNode registers a node body under a unique name. Re-registering a name
// replaces the body, matching last-write-wins builder semantics.
func (g *StateGraph[S]) AddNode(name, description string, body NodeFunc[S]) {
	if _, exists := g.nodes[name]; !exists {
		g.order = append(g.order, name)
	}
	g.nodes[name] = Node[S]{Name: name, Description: description, Body: body}
}

// AddEdge declares that To dispatches after From advances.
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge declares a runtime successor choice for From. A
// conditional edge shadows any static edge from the same node.
func (g *StateGraph[S]) AddConditionalEdge(from string, cond Condition[S]) {
	g.conditionalEdges[from] = cond
}

// SetEntryPoint names the node every fresh run starts from.
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// Compile validates the graph and freezes it into a Runnable. It checks that
// the entry point is set and present, that S carries the shared base state,
// that every edge endpoint names a node, and that no node declares two
// static successors. The terminal nodes are registered with default bodies
// when absent.
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}

	var probe S
	if _, ok := any(&probe).(state.Carrier); !ok {
		return nil, fmt.Errorf("state type %T does not embed state.Base", probe)
	}

	nodes := make(map[string]Node[S], len(g.nodes)+2)
	for name, n := range g.nodes {
		nodes[name] = n
	}
	if _, ok := nodes[NodeWorkflowCompleted]; !ok {
		nodes[NodeWorkflowCompleted] = Node[S]{
			Name:        NodeWorkflowCompleted,
			Description: "Workflow completed successfully",
			Body:        terminalBody[S](state.StepCompleted),
		}
	}
	if _, ok := nodes[NodeWorkflowRejected]; !ok {
		nodes[NodeWorkflowRejected] = Node[S]{
			Name:        NodeWorkflowRejected,
			Description: "Workflow rejected",
			Body:        terminalBody[S](state.StepRejected),
		}
	}

	if _, ok := nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: entry point %s", ErrNodeNotFound, g.entryPoint)
	}

	static := make(map[string]string, len(g.edges))
	for _, e := range g.edges {
		if _, ok := nodes[e.From]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, fmt.Errorf("%w: edge target %s", ErrNodeNotFound, e.To)
		}
		if prev, dup := static[e.From]; dup {
			return nil, fmt.Errorf("node %s has two static successors (%s, %s)", e.From, prev, e.To)
		}
		static[e.From] = e.To
	}

	conditional := make(map[string]Condition[S], len(g.conditionalEdges))
	for from, cond := range g.conditionalEdges {
		if _, ok := nodes[from]; !ok {
			return nil, fmt.Errorf("%w: conditional edge source %s", ErrNodeNotFound, from)
		}
		conditional[from] = cond
	}

	return &Runnable[S]{
		nodes:       nodes,
		static:      static,
		conditional: conditional,
		entryPoint:  g.entryPoint,
	}, nil
}

// terminalBody enforces the terminal labels even when a run reaches the
// terminal through a custom route.
func terminalBody[S any](label string) NodeFunc[S] {
	return func(_ context.Context, s S) (Outcome[S], error) {
		b := baseOf(&s)
		b.CurrentStep = label
		b.PendingApproval = false
		return Advance(s), nil
	}
}

// baseOf reaches the embedded base record of a compiled state value. Compile
// guarantees the assertion holds for every S that reaches the drive loop.
func baseOf[S any](s *S) *state.Base {
	return any(s).(state.Carrier).BaseState()
}

// IsTerminal reports whether name is one of the conventional terminals.
func IsTerminal(name string) bool {
	return name == NodeWorkflowCompleted || name == NodeWorkflowRejected
}

// terminalLabel maps a terminal node to the current_step label it leaves
// behind; other nodes label as themselves.
func terminalLabel(node string) string {
	switch node {
	case NodeWorkflowCompleted:
		return state.StepCompleted
	case NodeWorkflowRejected:
		return state.StepRejected
	}
	return node
}
