package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBase(t *testing.T) {
	b := NewBase("")

	assert.Equal(t, "start", b.CurrentStep)
	assert.NotNil(t, b.StepsCompleted)
	assert.Empty(t, b.StepsCompleted)
	assert.NotNil(t, b.Errors)
	assert.False(t, b.PendingApproval)
	assert.Nil(t, b.ApprovalDecision)
}

func TestNewBase_InitialStep(t *testing.T) {
	b := NewBase("check_in_guest")
	assert.Equal(t, "check_in_guest", b.CurrentStep)
}

func TestBase_RecordStep(t *testing.T) {
	b := NewBase("")
	b.RecordStep("check_in")
	b.RecordStep("create_folio")

	assert.Equal(t, []string{"check_in", "create_folio"}, b.StepsCompleted)
}

func TestBase_RecordError(t *testing.T) {
	b := NewBase("")
	b.RecordError(StepError{Step: "check_in", Reason: "User rejected check-in"})

	require.Len(t, b.Errors, 1)
	assert.Equal(t, "check_in", b.Errors[0].Step)
	assert.Equal(t, "User rejected check-in", b.Errors[0].Reason)
	assert.Equal(t, &b.Errors[0], b.LastError())
}

func TestBase_ApproveReject(t *testing.T) {
	b := NewBase("")
	b.PendingApproval = true

	b.Approve()
	require.NotNil(t, b.ApprovalDecision)
	assert.Equal(t, DecisionApproved, *b.ApprovalDecision)
	assert.False(t, b.PendingApproval)

	b.PendingApproval = true
	b.Reject()
	require.NotNil(t, b.ApprovalDecision)
	assert.Equal(t, DecisionRejected, *b.ApprovalDecision)
	assert.False(t, b.PendingApproval)
}

func TestBase_JSONShape(t *testing.T) {
	b := NewBase("")
	data, err := json.Marshal(&b)
	require.NoError(t, err)

	// Collections serialize as empty arrays and the undecided approval as
	// null; clients key off these exact shapes.
	assert.Contains(t, string(data), `"steps_completed":[]`)
	assert.Contains(t, string(data), `"errors":[]`)
	assert.Contains(t, string(data), `"approval_decision":null`)
	assert.Contains(t, string(data), `"current_step":"start"`)
}

func TestBase_EnsureDefaults(t *testing.T) {
	var b Base
	require.NoError(t, json.Unmarshal([]byte(`{"pending_approval":false}`), &b))

	b.EnsureDefaults("")
	assert.Equal(t, "start", b.CurrentStep)
	assert.NotNil(t, b.StepsCompleted)
	assert.NotNil(t, b.Errors)

	// Populated fields survive untouched.
	b2 := Base{CurrentStep: "add_charges", StepsCompleted: []string{"check_in"}}
	b2.EnsureDefaults("start")
	assert.Equal(t, "add_charges", b2.CurrentStep)
	assert.Equal(t, []string{"check_in"}, b2.StepsCompleted)
}

func TestBase_Carrier(t *testing.T) {
	type hotelState struct {
		Base
		ReservationID string `json:"reservation_id"`
	}

	s := &hotelState{Base: NewBase("")}
	var c Carrier = s
	c.BaseState().RecordStep("check_in")

	assert.Equal(t, []string{"check_in"}, s.StepsCompleted)
}
