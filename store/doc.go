// Package store persists run checkpoints so suspended workflows survive
// process restarts and resume from their exact suspension point.
//
// A Checkpoint is the complete serialized run state captured before a node
// dispatches; Metadata beside it names the owning graph and any pending
// suspension so a resume can re-hydrate without decoding state. Checkpoints
// are immutable, keyed
//
//	{namespace}:checkpoint:{thread_id}:{checkpoint_id}
//	{namespace}:metadata:{thread_id}
//
// and age out by TTL (default 24h), refreshed on access when the backend is
// configured to extend.
//
// Four backends implement CheckpointStore:
//
//   - store/redis: the production backend (go-redis), TTL native.
//   - store/memory: in-process maps, zero configuration; the default for
//     development and the reference implementation for tests.
//   - store/postgres: pgx-backed, TTL via expires_at columns.
//   - store/sqlite: single-file deployments over mattn/go-sqlite3.
//
// All backends tolerate concurrent readers; the executor guarantees at most
// one writer per thread.
package store
