package state

// Values for Base.CurrentStep once a run reaches a terminal node.
const (
	StepCompleted = "completed"
	StepRejected  = "rejected"
)

// Values for Base.ApprovalDecision.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Run triggers recorded in RunMetadata.
const (
	TriggerCanvas = "canvas"
	TriggerAgent  = "agent"
	TriggerAPI    = "api"
	TriggerManual = "manual"
)

// StepError records a step failure or rejection on the run state.
type StepError struct {
	Step     string         `json:"step"`
	Reason   string         `json:"reason"`
	Severity string         `json:"severity,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// RunMetadata identifies the run for observability and audit consumers.
type RunMetadata struct {
	WorkflowName string `json:"workflow_name"`
	Industry     string `json:"industry,omitempty"`
	RunID        string `json:"run_id"`
	SessionID    string `json:"session_id,omitempty"`
	InitiatedBy  string `json:"initiated_by,omitempty"`
	Trigger      string `json:"trigger,omitempty"`
}

// Base is the run-state record shared by every workflow graph. Industry
// state structs embed it so the executor can track progress, pending
// approvals, and errors uniformly across graphs.
type Base struct {
	CurrentStep      string       `json:"current_step"`
	StepsCompleted   []string     `json:"steps_completed"`
	Errors           []StepError  `json:"errors"`
	PendingApproval  bool         `json:"pending_approval"`
	ApprovalDecision *string      `json:"approval_decision"`
	Metadata         *RunMetadata `json:"metadata,omitempty"`
}

// Carrier is implemented by any state struct embedding Base. The executor
// relies on it to reach the shared fields of an otherwise opaque state type.
type Carrier interface {
	BaseState() *Base
}

// NewBase returns a Base with all collections allocated. initialStep defaults
// to "start" when empty.
func NewBase(initialStep string) Base {
	if initialStep == "" {
		initialStep = "start"
	}
	return Base{
		CurrentStep:    initialStep,
		StepsCompleted: []string{},
		Errors:         []StepError{},
	}
}

// BaseState returns the embedded record itself.
func (b *Base) BaseState() *Base {
	return b
}

// EnsureDefaults fills zero-valued base fields after decoding partial input:
// collections become empty (never null on re-encode) and CurrentStep falls
// back to initialStep.
func (b *Base) EnsureDefaults(initialStep string) {
	if b.CurrentStep == "" {
		if initialStep == "" {
			initialStep = "start"
		}
		b.CurrentStep = initialStep
	}
	if b.StepsCompleted == nil {
		b.StepsCompleted = []string{}
	}
	if b.Errors == nil {
		b.Errors = []StepError{}
	}
}

// RecordStep appends a completed step label. Called once per node visit.
func (b *Base) RecordStep(name string) {
	b.StepsCompleted = append(b.StepsCompleted, name)
}

// RecordError appends a step error without touching earlier entries.
func (b *Base) RecordError(e StepError) {
	b.Errors = append(b.Errors, e)
}

// Approve resolves a pending approval positively.
func (b *Base) Approve() {
	d := DecisionApproved
	b.ApprovalDecision = &d
	b.PendingApproval = false
}

// Reject resolves a pending approval negatively.
func (b *Base) Reject() {
	d := DecisionRejected
	b.ApprovalDecision = &d
	b.PendingApproval = false
}

// LastError returns the most recent error, or nil.
func (b *Base) LastError() *StepError {
	if len(b.Errors) == 0 {
		return nil
	}
	return &b.Errors[len(b.Errors)-1]
}
