package stream

import (
	"encoding/json"
	"time"
)

// EventType names a progress event emitted during a run.
type EventType string

const (
	// EventWorkflowStart opens every streamed run.
	EventWorkflowStart EventType = "workflow_start"
	// EventStepComplete follows each successfully dispatched node.
	EventStepComplete EventType = "step_complete"
	// EventApprovalRequired carries the suspension token of a paused run.
	EventApprovalRequired EventType = "approval_required"
	// EventWorkflowPaused closes the stream of a suspended run.
	EventWorkflowPaused EventType = "workflow_paused"
	// EventWorkflowComplete closes the stream of a successful run.
	EventWorkflowComplete EventType = "workflow_complete"
	// EventWorkflowRejected closes the stream of a rejected run.
	EventWorkflowRejected EventType = "workflow_rejected"
	// EventWorkflowError reports a failure; a terminal event may follow it.
	EventWorkflowError EventType = "workflow_error"
	// EventNotification carries out-of-band messages from step helpers.
	EventNotification EventType = "notification"
)

// Progress reports how far a run has advanced. CurrentStep is a count of
// completed steps, not a node name.
type Progress struct {
	CurrentStep int     `json:"current_step"`
	TotalSteps  int     `json:"total_steps"`
	Percentage  float64 `json:"percentage"`
}

// NewProgress computes completion against an estimated step total. Unknown
// totals yield zero percentage; overshoot is clamped to 100.
func NewProgress(completed, estimated int) *Progress {
	p := &Progress{CurrentStep: completed, TotalSteps: estimated}
	if estimated > 0 {
		p.Percentage = float64(completed) / float64(estimated) * 100
		if p.Percentage > 100 {
			p.Percentage = 100
		}
		if p.Percentage < 0 {
			p.Percentage = 0
		}
	}
	return p
}

// Notification is the payload of EventNotification frames.
type Notification struct {
	NotificationType string `json:"notification_type"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	ActionURL        string `json:"action_url,omitempty"`
	ActionLabel      string `json:"action_label,omitempty"`
}

// Event is one frame of run progress. State and Interrupt hold pre-serialized
// JSON so frames never re-marshal (or mutate) live run state.
type Event struct {
	Type      EventType       `json:"type"`
	GraphName string          `json:"graph_name,omitempty"`
	ThreadID  string          `json:"thread_id,omitempty"`
	Step      string          `json:"step,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Progress  *Progress       `json:"progress,omitempty"`
	Interrupt json.RawMessage `json:"interrupt,omitempty"`
	Notify    *Notification   `json:"notification,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Terminal reports whether no further events follow this one on a stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventWorkflowPaused, EventWorkflowComplete, EventWorkflowRejected:
		return true
	}
	return false
}

// Now returns the current time as epoch milliseconds, the timestamp unit of
// every event.
func Now() int64 {
	return time.Now().UnixMilli()
}
