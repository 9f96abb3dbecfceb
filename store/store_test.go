package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLayout(t *testing.T) {
	// Exact key shapes are a compatibility contract with existing data.
	assert.Equal(t,
		"langgraph:checkpoint:wf-123:ckpt-1",
		CheckpointKey("langgraph", "wf-123", "ckpt-1"))
	assert.Equal(t,
		"langgraph:metadata:wf-123",
		MetadataKey("langgraph", "wf-123"))
	assert.Equal(t,
		"custom:checkpoint:t:c",
		CheckpointKey("custom", "t", "c"))
}

func TestEncodeDecodeCheckpoint(t *testing.T) {
	stateJSON := []byte(`{"current_step":"create_folio","steps_completed":["check_in"],"room_number":"101"}`)
	ckpt := &Checkpoint{
		ID:        "ckpt-1",
		ThreadID:  "wf-123",
		State:     stateJSON,
		Timestamp: 1700000000123,
		Meta: Metadata{
			GraphName:       "hotel_o2c",
			Node:            "create_folio",
			PendingApproval: true,
			SuspendedNode:   "check_in_guest",
			Interrupt:       json.RawMessage(`{"operation":"check_in_guest"}`),
		},
	}

	blob, err := EncodeCheckpoint(ckpt)
	require.NoError(t, err)

	decoded, err := DecodeCheckpoint(blob)
	require.NoError(t, err)

	assert.Equal(t, ckpt.ID, decoded.ID)
	assert.Equal(t, ckpt.ThreadID, decoded.ThreadID)
	assert.Equal(t, ckpt.Timestamp, decoded.Timestamp)
	assert.Equal(t, ckpt.Meta.GraphName, decoded.Meta.GraphName)
	assert.Equal(t, ckpt.Meta.SuspendedNode, decoded.Meta.SuspendedNode)
	assert.True(t, decoded.Meta.PendingApproval)

	// State bytes round-trip unchanged; the executor depends on this to
	// re-decode suspension snapshots exactly.
	assert.Equal(t, stateJSON, decoded.State)
}

func TestDecodeCheckpoint_BadBlob(t *testing.T) {
	_, err := DecodeCheckpoint([]byte("not json"))
	assert.Error(t, err)
}

func TestNewCheckpointID_Ordered(t *testing.T) {
	// UUIDv7 ids sort by creation time, which keeps a thread's history
	// ordered even when timestamps collide.
	prev := NewCheckpointID()
	for i := 0; i < 50; i++ {
		next := NewCheckpointID()
		assert.NotEqual(t, prev, next)
		assert.Less(t, prev, next)
		prev = next
	}
}
