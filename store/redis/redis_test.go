package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yosef-Ali/erpnext-workflows/store"
)

func newTestStore(t *testing.T, opts Options) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, opts)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func newCheckpoint(threadID string, ts int64, node string) *store.Checkpoint {
	return &store.Checkpoint{
		ID:        store.NewCheckpointID(),
		ThreadID:  threadID,
		State:     []byte(`{"current_step":"` + node + `"}`),
		Timestamp: ts,
		Meta:      store.Metadata{GraphName: "hotel_o2c", Node: node},
	}
}

func TestStore_PutWritesBothKeys(t *testing.T) {
	s, mr := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	ckpt := newCheckpoint("wf-1", 1000, "create_folio")
	require.NoError(t, s.Put(ctx, ckpt))

	// Key layout is a compatibility contract with existing deployments.
	assert.True(t, mr.Exists("langgraph:checkpoint:wf-1:"+ckpt.ID))
	assert.True(t, mr.Exists("langgraph:metadata:wf-1"))

	metaJSON, err := mr.Get("langgraph:metadata:wf-1")
	require.NoError(t, err)
	var meta store.Metadata
	require.NoError(t, json.Unmarshal([]byte(metaJSON), &meta))
	assert.Equal(t, "hotel_o2c", meta.GraphName)
	assert.Equal(t, "create_folio", meta.Node)
}

func TestStore_GetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	ckpt := newCheckpoint("wf-1", 1000, "add_charges")
	require.NoError(t, s.Put(ctx, ckpt))

	got, err := s.Get(ctx, "wf-1", ckpt.ID)
	require.NoError(t, err)
	assert.Equal(t, ckpt.ID, got.ID)
	assert.Equal(t, ckpt.State, got.State)
	assert.Equal(t, ckpt.Timestamp, got.Timestamp)
	assert.Equal(t, "add_charges", got.Meta.Node)

	_, err = s.Get(ctx, "wf-1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_GetLatest(t *testing.T) {
	s, _ := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	_, err := s.GetLatest(ctx, "wf-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 1000, "check_in_guest")))
	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 3000, "add_charges")))
	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 2000, "create_folio")))

	latest, err := s.GetLatest(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), latest.Timestamp)
	assert.Equal(t, "add_charges", latest.Meta.Node)
}

func TestStore_List_OldestFirst(t *testing.T) {
	s, _ := newTestStore(t, DefaultOptions())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 2000, "b")))
	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 1000, "a")))
	require.NoError(t, s.Put(ctx, newCheckpoint("wf-1", 3000, "c")))
	require.NoError(t, s.Put(ctx, newCheckpoint("wf-2", 999, "other")))

	list, err := s.List(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Meta.Node)
	assert.Equal(t, "b", list[1].Meta.Node)
	assert.Equal(t, "c", list[2].Meta.Node)
}

func TestStore_TTLExpiry(t *testing.T) {
	s, mr := newTestStore(t, Options{TTL: 10 * time.Second})
	ctx := context.Background()

	ckpt := newCheckpoint("wf-1", 1000, "check_in_guest")
	require.NoError(t, s.Put(ctx, ckpt))

	mr.FastForward(11 * time.Second)

	_, err := s.Get(ctx, "wf-1", ckpt.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetLatest(ctx, "wf-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, mr.Exists("langgraph:metadata:wf-1"))
}

func TestStore_ExtendOnAccess(t *testing.T) {
	s, mr := newTestStore(t, Options{TTL: 10 * time.Second, ExtendOnAccess: true})
	ctx := context.Background()

	ckpt := newCheckpoint("wf-1", 1000, "check_in_guest")
	require.NoError(t, s.Put(ctx, ckpt))

	// Access at 5s re-arms both TTLs for another 10s.
	mr.FastForward(5 * time.Second)
	_, err := s.GetLatest(ctx, "wf-1")
	require.NoError(t, err)

	// 12s after the write, 7s after the access: still alive.
	mr.FastForward(7 * time.Second)
	got, err := s.Get(ctx, "wf-1", ckpt.ID)
	require.NoError(t, err)
	assert.Equal(t, ckpt.ID, got.ID)
	assert.True(t, mr.Exists("langgraph:metadata:wf-1"))

	// Left untouched past the TTL it finally expires.
	mr.FastForward(11 * time.Second)
	_, err = s.Get(ctx, "wf-1", ckpt.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_NoExtension(t *testing.T) {
	s, mr := newTestStore(t, Options{TTL: 10 * time.Second, ExtendOnAccess: false})
	ctx := context.Background()

	ckpt := newCheckpoint("wf-1", 1000, "check_in_guest")
	require.NoError(t, s.Put(ctx, ckpt))

	mr.FastForward(5 * time.Second)
	_, err := s.GetLatest(ctx, "wf-1")
	require.NoError(t, err)

	// The read at 5s did not move the deadline; 12s in, the thread is gone.
	mr.FastForward(7 * time.Second)
	_, err = s.GetLatest(ctx, "wf-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNew_ParsesURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := New(Options{URL: "redis://" + mr.Addr() + "/0", TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(context.Background(), newCheckpoint("wf-1", 1, "n")))
	_, err = s.GetLatest(context.Background(), "wf-1")
	assert.NoError(t, err)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(Options{URL: "://not-a-url"})
	assert.Error(t, err)
}
