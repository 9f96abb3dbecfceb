package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Yosef-Ali/erpnext-workflows/store"
)

// Options configures the SQLite checkpoint store.
type Options struct {
	// Path is the database file path.
	Path string

	// Table is the checkpoint table name, default "workflow_checkpoints".
	Table string

	// Namespace scopes rows the way key prefixes scope Redis keys.
	Namespace string

	// TTL bounds checkpoint lifetime via the expires_at column.
	TTL time.Duration

	// ExtendOnAccess pushes expires_at forward on Get and GetLatest.
	ExtendOnAccess bool
}

// Store persists checkpoints in a SQLite database file. It mirrors the
// postgres backend: state as raw TEXT, metadata as JSON text, expiry as a
// unix-millisecond expires_at column.
type Store struct {
	db     *sql.DB
	table  string
	ns     string
	ttl    time.Duration
	extend bool

	// now is swapped out by TTL tests.
	now func() time.Time
}

var _ store.CheckpointStore = (*Store)(nil)

// New opens the database file and creates the schema.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = "workflow_checkpoints"
	}
	ns := opts.Namespace
	if ns == "" {
		ns = store.DefaultNamespace
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}

	s := &Store{
		db:     db,
		table:  table,
		ns:     ns,
		ttl:    ttl,
		extend: opts.ExtendOnAccess,
		now:    time.Now,
	}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			checkpoint_id TEXT NOT NULL,
			state TEXT NOT NULL,
			metadata TEXT,
			ts INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, thread_id, checkpoint_id)
		);
		CREATE INDEX IF NOT EXISTS idx_%s_thread ON %s (namespace, thread_id, ts);
	`, s.table, s.table, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Put prunes the thread's expired rows and inserts the checkpoint with a
// fresh expiry.
func (s *Store) Put(ctx context.Context, ckpt *store.Checkpoint) error {
	metaJSON, err := json.Marshal(ckpt.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	now := s.now()
	purge := fmt.Sprintf(`DELETE FROM %s WHERE namespace = ? AND thread_id = ? AND expires_at <= ?`, s.table)
	if _, err := s.db.ExecContext(ctx, purge, s.ns, ckpt.ThreadID, now.UnixMilli()); err != nil {
		return fmt.Errorf("failed to prune expired checkpoints: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (namespace, thread_id, checkpoint_id, state, metadata, ts, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace, thread_id, checkpoint_id) DO UPDATE SET
			state = excluded.state,
			metadata = excluded.metadata,
			ts = excluded.ts,
			expires_at = excluded.expires_at
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		s.ns, ckpt.ThreadID, ckpt.ID, string(ckpt.State), string(metaJSON),
		ckpt.Timestamp, now.Add(s.ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// GetLatest returns the thread's newest live checkpoint.
func (s *Store) GetLatest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT checkpoint_id, state, metadata, ts FROM %s
		WHERE namespace = ? AND thread_id = ? AND expires_at > ?
		ORDER BY ts DESC, checkpoint_id DESC LIMIT 1
	`, s.table)

	ckpt, err := s.scanRow(s.db.QueryRowContext(ctx, query, s.ns, threadID, s.now().UnixMilli()), threadID)
	if err != nil {
		return nil, err
	}
	if err := s.extendTTL(ctx, threadID, ckpt.ID); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// Get returns one checkpoint by id.
func (s *Store) Get(ctx context.Context, threadID, checkpointID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT checkpoint_id, state, metadata, ts FROM %s
		WHERE namespace = ? AND thread_id = ? AND checkpoint_id = ? AND expires_at > ?
	`, s.table)

	ckpt, err := s.scanRow(s.db.QueryRowContext(ctx, query, s.ns, threadID, checkpointID, s.now().UnixMilli()), threadID)
	if err != nil {
		return nil, err
	}
	if err := s.extendTTL(ctx, threadID, checkpointID); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// List returns the thread's live checkpoints, oldest first.
func (s *Store) List(ctx context.Context, threadID string) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT checkpoint_id, state, metadata, ts FROM %s
		WHERE namespace = ? AND thread_id = ? AND expires_at > ?
		ORDER BY ts ASC, checkpoint_id ASC
	`, s.table)

	rows, err := s.db.QueryContext(ctx, query, s.ns, threadID, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var ckpts []*store.Checkpoint
	for rows.Next() {
		var (
			id       string
			state    []byte
			metaJSON []byte
			ts       int64
		)
		if err := rows.Scan(&id, &state, &metaJSON, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		ckpt := &store.Checkpoint{ID: id, ThreadID: threadID, State: state, Timestamp: ts}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &ckpt.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		ckpts = append(ckpts, ckpt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return ckpts, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scanRow(row *sql.Row, threadID string) (*store.Checkpoint, error) {
	var (
		id       string
		state    []byte
		metaJSON []byte
		ts       int64
	)
	if err := row.Scan(&id, &state, &metaJSON, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	ckpt := &store.Checkpoint{ID: id, ThreadID: threadID, State: state, Timestamp: ts}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &ckpt.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return ckpt, nil
}

func (s *Store) extendTTL(ctx context.Context, threadID, checkpointID string) error {
	if !s.extend {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET expires_at = ? WHERE namespace = ? AND thread_id = ? AND checkpoint_id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, query, s.now().Add(s.ttl).UnixMilli(), s.ns, threadID, checkpointID); err != nil {
		return fmt.Errorf("failed to extend checkpoint ttl: %w", err)
	}
	return nil
}
