package graph

// Risk levels carried on suspension tokens, lowest to highest.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Suspension is the token a paused run hands to the outside world. It
// describes the pending operation richly enough for an approval UI: a
// machine-readable detail map plus a markdown preview. At most one
// suspension is live per run.
type Suspension struct {
	Operation     string         `json:"operation"`
	OperationType string         `json:"operation_type"`
	RiskLevel     string         `json:"risk_level"`
	Details       map[string]any `json:"details,omitempty"`
	Preview       string         `json:"preview,omitempty"`
	Action        string         `json:"action,omitempty"`
}

type outcomeKind int

const (
	outcomeAdvance outcomeKind = iota
	outcomeGoto
	outcomeSuspend
)

// Outcome is the result of one node visit. It is a closed sum: nodes either
// advance along their declared edge, jump to a named successor, or suspend
// the run. Construct values with Advance, Goto, or Suspend.
type Outcome[S any] struct {
	kind   outcomeKind
	state  S
	target string
	token  *Suspension
}

// Advance carries the updated state along the node's static or conditional
// edge.
func Advance[S any](s S) Outcome[S] {
	return Outcome[S]{kind: outcomeAdvance, state: s}
}

// Goto carries the updated state and jumps to target, bypassing the node's
// declared edges. Target may be a terminal.
func Goto[S any](target string, s S) Outcome[S] {
	return Outcome[S]{kind: outcomeGoto, state: s, target: target}
}

// Suspend pauses the run pending an out-of-band decision. Any state the node
// mutated before suspending is discarded; the run resumes from the
// pre-dispatch snapshot with the decision delivered through the context.
func Suspend[S any](token *Suspension) Outcome[S] {
	return Outcome[S]{kind: outcomeSuspend, token: token}
}
