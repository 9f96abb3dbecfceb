// Package memory provides an in-process CheckpointStore. It needs no
// external service, honors TTL through an injectable clock, and serves as
// the reference implementation the backend tests compare against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Yosef-Ali/erpnext-workflows/store"
)

// Options configures the in-memory store.
type Options struct {
	// TTL is how long entries live after their last write or, with
	// ExtendOnAccess, their last read. Zero means store.DefaultTTL.
	TTL time.Duration

	// Namespace participates in key rendering for parity with the other
	// backends; entries of different namespaces never collide.
	Namespace string

	// ExtendOnAccess refreshes an entry's TTL on Get and GetLatest.
	ExtendOnAccess bool

	// Clock overrides time.Now, letting TTL tests advance time directly.
	Clock func() time.Time
}

// DefaultOptions mirrors the production defaults: 24h TTL, the standard
// namespace, extension on access.
func DefaultOptions() Options {
	return Options{
		TTL:            store.DefaultTTL,
		Namespace:      store.DefaultNamespace,
		ExtendOnAccess: true,
	}
}

type entry struct {
	ckpt      *store.Checkpoint
	expiresAt time.Time
}

// Store keeps checkpoints in maps guarded by a single RWMutex. Suitable for
// development, tests, and single-process deployments.
type Store struct {
	mu      sync.RWMutex
	ttl     time.Duration
	ns      string
	extend  bool
	now     func() time.Time
	threads map[string]map[string]*entry // threadID -> checkpointID -> entry
}

var _ store.CheckpointStore = (*Store)(nil)

// New creates an in-memory store, filling zero options with defaults.
func New(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = store.DefaultTTL
	}
	if opts.Namespace == "" {
		opts.Namespace = store.DefaultNamespace
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Store{
		ttl:     opts.TTL,
		ns:      opts.Namespace,
		extend:  opts.ExtendOnAccess,
		now:     opts.Clock,
		threads: make(map[string]map[string]*entry),
	}
}

// Put stores a checkpoint under its thread and stamps the TTL.
func (s *Store) Put(_ context.Context, ckpt *store.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.threads[s.threadKey(ckpt.ThreadID)]
	if thread == nil {
		thread = make(map[string]*entry)
		s.threads[s.threadKey(ckpt.ThreadID)] = thread
	}
	cp := *ckpt
	thread[ckpt.ID] = &entry{ckpt: &cp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// GetLatest returns the thread's newest live checkpoint.
func (s *Store) GetLatest(_ context.Context, threadID string) (*store.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *entry
	for _, e := range s.liveEntries(threadID) {
		if latest == nil || e.ckpt.Timestamp > latest.ckpt.Timestamp ||
			(e.ckpt.Timestamp == latest.ckpt.Timestamp && e.ckpt.ID > latest.ckpt.ID) {
			latest = e
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	if s.extend {
		latest.expiresAt = s.now().Add(s.ttl)
	}
	cp := *latest.ckpt
	return &cp, nil
}

// Get returns one checkpoint by id.
func (s *Store) Get(_ context.Context, threadID, checkpointID string) (*store.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	thread := s.threads[s.threadKey(threadID)]
	e, ok := thread[checkpointID]
	if !ok || s.expired(e) {
		return nil, store.ErrNotFound
	}
	if s.extend {
		e.expiresAt = s.now().Add(s.ttl)
	}
	cp := *e.ckpt
	return &cp, nil
}

// List returns the thread's live checkpoints, oldest first.
func (s *Store) List(_ context.Context, threadID string) ([]*store.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.liveEntries(threadID)
	out := make([]*store.Checkpoint, 0, len(live))
	for _, e := range live {
		cp := *e.ckpt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close releases nothing; it exists to satisfy the contract.
func (s *Store) Close() error {
	return nil
}

// Len reports live checkpoints for a thread. Test helper.
func (s *Store) Len(threadID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.liveEntries(threadID))
}

func (s *Store) threadKey(threadID string) string {
	return store.MetadataKey(s.ns, threadID)
}

func (s *Store) expired(e *entry) bool {
	return !s.now().Before(e.expiresAt)
}

// liveEntries prunes the thread's expired entries and returns the rest.
// Callers hold the write lock.
func (s *Store) liveEntries(threadID string) []*entry {
	thread := s.threads[s.threadKey(threadID)]
	live := make([]*entry, 0, len(thread))
	for id, e := range thread {
		if s.expired(e) {
			delete(thread, id)
			continue
		}
		live = append(live, e)
	}
	if len(thread) == 0 {
		delete(s.threads, s.threadKey(threadID))
	}
	return live
}
