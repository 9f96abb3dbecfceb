package engine

import "errors"

var (
	// ErrThreadBusy reports an execute or resume against a thread id that is
	// currently live.
	ErrThreadBusy = errors.New("thread is already running")

	// ErrUnknownThread reports a thread id with no persisted checkpoints.
	ErrUnknownThread = errors.New("no workflow found for thread")

	// ErrNotSuspended reports a resume or approval lookup against a thread
	// whose latest checkpoint is not awaiting a decision.
	ErrNotSuspended = errors.New("workflow is not awaiting approval")
)
