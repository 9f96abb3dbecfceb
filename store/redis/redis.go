package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Yosef-Ali/erpnext-workflows/store"
)

// Options configures the Redis checkpoint store.
type Options struct {
	// URL is a redis:// connection string. When set it wins over
	// Addr/Password/DB.
	URL string

	Addr     string
	Password string
	DB       int

	// Namespace prefixes every key; default store.DefaultNamespace.
	Namespace string

	// TTL bounds checkpoint lifetime; default store.DefaultTTL.
	TTL time.Duration

	// ExtendOnAccess re-arms the TTL of a checkpoint and its thread
	// metadata on Get and GetLatest, keeping active runs resumable while
	// abandoned ones age out.
	ExtendOnAccess bool
}

// DefaultOptions mirrors the production defaults.
func DefaultOptions() Options {
	return Options{
		Addr:           "localhost:6379",
		Namespace:      store.DefaultNamespace,
		TTL:            store.DefaultTTL,
		ExtendOnAccess: true,
	}
}

// Store persists checkpoints in Redis under
// {namespace}:checkpoint:{thread_id}:{checkpoint_id}, with the latest
// metadata beside them at {namespace}:metadata:{thread_id}. Both keys carry
// the TTL.
type Store struct {
	client *redis.Client
	ns     string
	ttl    time.Duration
	extend bool
}

var _ store.CheckpointStore = (*Store)(nil)

// New connects a Redis-backed store.
func New(opts Options) (*Store, error) {
	var ropts *redis.Options
	if opts.URL != "" {
		parsed, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		ropts = parsed
	} else {
		ropts = &redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		}
	}
	return NewWithClient(redis.NewClient(ropts), opts), nil
}

// NewWithClient wraps an existing client; tests hand in one pointed at
// miniredis.
func NewWithClient(client *redis.Client, opts Options) *Store {
	ns := opts.Namespace
	if ns == "" {
		ns = store.DefaultNamespace
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}
	return &Store{
		client: client,
		ns:     ns,
		ttl:    ttl,
		extend: opts.ExtendOnAccess,
	}
}

// Put stores the checkpoint blob and refreshes the thread metadata, both
// with the configured TTL.
func (s *Store) Put(ctx context.Context, ckpt *store.Checkpoint) error {
	blob, err := store.EncodeCheckpoint(ckpt)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(ckpt.Meta)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint metadata: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, store.CheckpointKey(s.ns, ckpt.ThreadID, ckpt.ID), blob, s.ttl)
	pipe.Set(ctx, store.MetadataKey(s.ns, ckpt.ThreadID), metaJSON, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// GetLatest scans the thread's checkpoints and returns the newest one.
func (s *Store) GetLatest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	ckpts, err := s.scanThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	var latest *store.Checkpoint
	for _, c := range ckpts {
		if latest == nil || c.Timestamp > latest.Timestamp ||
			(c.Timestamp == latest.Timestamp && c.ID > latest.ID) {
			latest = c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	if err := s.extendTTL(ctx, threadID, latest.ID); err != nil {
		return nil, err
	}
	return latest, nil
}

// Get returns one checkpoint by id.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*store.Checkpoint, error) {
	blob, err := s.client.Get(ctx, store.CheckpointKey(s.ns, threadID, checkpointID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	ckpt, err := store.DecodeCheckpoint(blob)
	if err != nil {
		return nil, err
	}
	if err := s.extendTTL(ctx, threadID, checkpointID); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// List returns the thread's checkpoints, oldest first.
func (s *Store) List(ctx context.Context, threadID string) ([]*store.Checkpoint, error) {
	ckpts, err := s.scanThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	sortCheckpoints(ckpts)
	return ckpts, nil
}

// Close releases the client's connections.
func (s *Store) Close() error {
	return s.client.Close()
}

// scanThread collects every live checkpoint of a thread. Keys seen by SCAN
// can expire before the fetch, so missing keys are skipped rather than
// treated as errors.
func (s *Store) scanThread(ctx context.Context, threadID string) ([]*store.Checkpoint, error) {
	pattern := store.CheckpointKey(s.ns, threadID, "*")
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()

	var ckpts []*store.Checkpoint
	for iter.Next(ctx) {
		blob, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
		}
		ckpt, err := store.DecodeCheckpoint(blob)
		if err != nil {
			return nil, err
		}
		ckpts = append(ckpts, ckpt)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan checkpoints: %w", err)
	}
	return ckpts, nil
}

// extendTTL re-arms the TTL of the accessed checkpoint and the thread
// metadata when extension is on.
func (s *Store) extendTTL(ctx context.Context, threadID, checkpointID string) error {
	if !s.extend {
		return nil
	}
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, store.CheckpointKey(s.ns, threadID, checkpointID), s.ttl)
	pipe.Expire(ctx, store.MetadataKey(s.ns, threadID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to extend checkpoint ttl: %w", err)
	}
	return nil
}

func sortCheckpoints(ckpts []*store.Checkpoint) {
	sort.Slice(ckpts, func(i, j int) bool {
		if ckpts[i].Timestamp != ckpts[j].Timestamp {
			return ckpts[i].Timestamp < ckpts[j].Timestamp
		}
		return ckpts[i].ID < ckpts[j].ID
	})
}
