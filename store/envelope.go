package store

import (
	"encoding/json"
	"fmt"
)

// envelope is the serialized form of a Checkpoint in blob-valued backends.
// State stays raw so the stored bytes round-trip unchanged.
type envelope struct {
	ID       string          `json:"id"`
	ThreadID string          `json:"thread_id"`
	TS       int64           `json:"ts"`
	State    json.RawMessage `json:"state"`
	Meta     Metadata        `json:"meta"`
}

// EncodeCheckpoint renders a checkpoint as a self-contained blob.
func EncodeCheckpoint(c *Checkpoint) ([]byte, error) {
	data, err := json.Marshal(envelope{
		ID:       c.ID,
		ThreadID: c.ThreadID,
		TS:       c.Timestamp,
		State:    json.RawMessage(c.State),
		Meta:     c.Meta,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkpoint %s: %w", c.ID, err)
	}
	return data, nil
}

// DecodeCheckpoint parses a blob produced by EncodeCheckpoint.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return &Checkpoint{
		ID:        env.ID,
		ThreadID:  env.ThreadID,
		State:     []byte(env.State),
		Timestamp: env.TS,
		Meta:      env.Meta,
	}, nil
}
