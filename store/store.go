package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports that a thread has no checkpoints, or that a specific
// checkpoint is absent or expired.
var ErrNotFound = errors.New("checkpoint not found")

// Defaults shared by every backend.
const (
	// DefaultNamespace prefixes all keys; kept for compatibility with
	// existing deployments.
	DefaultNamespace = "langgraph"
	// DefaultTTL is how long checkpoints outlive their last write (or last
	// access, when extension is enabled).
	DefaultTTL = 24 * time.Hour
)

// Metadata is the per-thread record describing the latest checkpoint: which
// graph owns the thread, the node due to run next, and the pending
// suspension, if any. Backends persist it beside the checkpoint so a resume
// can re-hydrate the right graph without decoding state.
type Metadata struct {
	GraphName       string          `json:"graph_name"`
	Node            string          `json:"node,omitempty"`
	PendingApproval bool            `json:"pending_approval"`
	SuspendedNode   string          `json:"suspended_node,omitempty"`
	Interrupt       json.RawMessage `json:"interrupt,omitempty"`
}

// Checkpoint is one immutable snapshot of a run: the complete serialized
// state as it stood before dispatching Meta.Node. Timestamp is epoch
// milliseconds; the thread's latest checkpoint is the one with the greatest
// timestamp.
type Checkpoint struct {
	ID        string
	ThreadID  string
	State     []byte
	Timestamp int64
	Meta      Metadata
}

// CheckpointStore persists run snapshots per thread. Implementations apply
// the configured TTL on Put and, when extension is enabled, refresh it on
// Get and GetLatest. The executor is the only writer for a live thread;
// concurrent readers are safe.
type CheckpointStore interface {
	// Put stores a new checkpoint under its thread, stamping the TTL.
	Put(ctx context.Context, ckpt *Checkpoint) error

	// GetLatest returns the thread's newest checkpoint, or ErrNotFound.
	GetLatest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Get returns one checkpoint by id, or ErrNotFound.
	Get(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// List returns all live checkpoints of a thread, oldest first.
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// Close releases the backend's resources.
	Close() error
}

// NewCheckpointID returns a time-ordered unique id. UUIDv7 keeps ids
// monotonic within a thread so ties on Timestamp cannot reorder history.
func NewCheckpointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// CheckpointKey renders the storage key of one checkpoint:
// {namespace}:checkpoint:{thread_id}:{checkpoint_id}.
func CheckpointKey(namespace, threadID, checkpointID string) string {
	return fmt.Sprintf("%s:checkpoint:%s:%s", namespace, threadID, checkpointID)
}

// MetadataKey renders the storage key of a thread's metadata:
// {namespace}:metadata:{thread_id}.
func MetadataKey(namespace, threadID string) string {
	return fmt.Sprintf("%s:metadata:%s", namespace, threadID)
}
