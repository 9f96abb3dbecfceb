package graph

import (
	"encoding/json"

	"github.com/Yosef-Ali/erpnext-workflows/log"
	"github.com/Yosef-Ali/erpnext-workflows/store"
	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

// DefaultRecursionLimit bounds node dispatches per run when the caller does
// not set one. It exists to turn accidental cycles into a rejected run
// instead of a spin.
const DefaultRecursionLimit = 25

// Resume carries the decision delivered to the suspended node of a resumed
// run. The wrapper exists so resuming with a nil payload is still a resume.
type Resume struct {
	Value any
}

// RunConfig parameterizes one drive of a compiled graph. The zero value runs
// without persistence or events; callers usually set at least ThreadID,
// GraphName, and Checkpoints.
type RunConfig struct {
	// ThreadID identifies the run across suspension and resume. Stamped on
	// every event and checkpoint.
	ThreadID string

	// GraphName is the registry name of the workflow, carried on events and
	// checkpoint metadata so a resume can re-hydrate the graph.
	GraphName string

	// RecursionLimit caps node dispatches; zero or negative selects
	// DefaultRecursionLimit.
	RecursionLimit int

	// EstimatedSteps sizes progress percentages. Zero leaves percentages at
	// zero.
	EstimatedSteps int

	// StartNode overrides the entry point; a resume sets it to the
	// suspended node.
	StartNode string

	// Resume delivers a decision to the first dispatched node. Nil means a
	// fresh run.
	Resume *Resume

	// Checkpoints receives the pre-dispatch snapshots. Nil disables
	// persistence.
	Checkpoints store.CheckpointStore

	// Sink receives progress events. Nil discards them.
	Sink stream.Sink

	// Logger receives drive diagnostics. Nil selects the package default.
	Logger log.Logger
}

// withDefaults returns a copy with every optional field filled.
func (c *RunConfig) withDefaults() RunConfig {
	out := RunConfig{}
	if c != nil {
		out = *c
	}
	if out.RecursionLimit <= 0 {
		out.RecursionLimit = DefaultRecursionLimit
	}
	if out.Sink == nil {
		out.Sink = stream.Discard()
	}
	if out.Logger == nil {
		out.Logger = log.GetDefaultLogger()
	}
	return out
}

// Status classifies how a drive ended.
type Status string

const (
	// StatusCompleted means the run reached the completed terminal.
	StatusCompleted Status = "completed"
	// StatusPaused means the run suspended and awaits a decision.
	StatusPaused Status = "paused"
	// StatusRejected means the run reached the rejected terminal, whether by
	// decision, node failure, cancellation, or the recursion bound.
	StatusRejected Status = "rejected"
	// StatusError means the drive aborted on an infrastructure failure; the
	// accompanying error has the cause.
	StatusError Status = "error"
)

// Report is the terminal summary of one drive. State holds the final
// serialized run state; Suspension and SuspendedNode are set when the run
// paused.
type Report struct {
	ThreadID      string
	Status        Status
	State         json.RawMessage
	Suspension    *Suspension
	SuspendedNode string
}
