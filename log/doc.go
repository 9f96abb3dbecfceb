// Package log provides a simple, leveled logging interface for the workflow
// engine and its server.
//
// The package supports five log levels, in order of increasing severity:
//
//   - LogLevelDebug: detailed debugging information for development
//   - LogLevelInfo: general informational messages about normal operation
//   - LogLevelWarn: warning messages for potentially problematic situations
//   - LogLevelError: error messages for failures that need attention
//   - LogLevelNone: disables all logging output
//
// Two implementations ship with the package: DefaultLogger over Go's standard
// log package, and GologLogger over github.com/kataras/golog (used by the
// workflowd binary). Engine components accept any Logger and fall back to the
// package-level default, so callers only configure logging once:
//
//	log.SetDefaultLogger(log.NewGolog("[workflowd] ", log.ParseLevel(os.Getenv("LOG_LEVEL"))))
//	log.Info("checkpoint store: %s", storeKind)
//
// The DefaultLogger is safe for concurrent use; the standard library handles
// synchronization internally. golog does its own locking as well.
package log
