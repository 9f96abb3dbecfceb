// Package engine orchestrates workflow runs end to end: request validation
// against the registry, thread identity, the live-thread conflict guard,
// metadata stamping, and mapping drive reports onto API results.
//
// The engine owns the base context runs execute on. Request contexts only
// scope the bookkeeping around a run; once dispatched, a run outlives its
// originating HTTP request and stops through Cancel or Close.
package engine
