// Package sqlite provides the SQLite-backed checkpoint store, a single-file
// backend for local development and small deployments.
//
// It mirrors the postgres backend's table shape over database/sql with the
// mattn/go-sqlite3 driver: one row per checkpoint keyed by (namespace,
// thread_id, checkpoint_id), state as raw TEXT, metadata as JSON text, and
// all timestamps as unix-millisecond integers. Expiry works the same way
// too: reads filter on expires_at, Put prunes the thread's dead rows, and
// ExtendOnAccess pushes expires_at forward on Get and GetLatest.
//
//	st, err := sqlite.New(sqlite.Options{
//		Path:           "./data/checkpoints.db",
//		TTL:            24 * time.Hour,
//		ExtendOnAccess: true,
//	})
//	if err != nil {
//		return err
//	}
//	defer st.Close()
//
// New creates the schema on open, so the store is ready immediately.
package sqlite
