// Package redis provides the Redis-backed checkpoint store, the production
// backend of the workflow engine.
//
// Checkpoints are opaque JSON blobs under
//
//	{namespace}:checkpoint:{thread_id}:{checkpoint_id}
//
// with the latest run metadata as JSON text under
//
//	{namespace}:metadata:{thread_id}
//
// Both keys carry the configured TTL (default 24h). With ExtendOnAccess set,
// every Get or GetLatest re-arms both TTLs, so threads stay resumable while
// anyone is working with them and expire only once truly abandoned. The
// latest checkpoint of a thread is found by scanning its key range and
// taking the greatest timestamp, so no index key has to be kept in sync with
// expirations.
//
//	st, err := redis.New(redis.Options{
//		URL:            "redis://localhost:6379/0",
//		TTL:            24 * time.Hour,
//		ExtendOnAccess: true,
//	})
//
// Tests run against miniredis via NewWithClient.
package redis
