package graph

import "errors"

var (
	// ErrEntryPointNotSet is returned by Compile when no entry point was set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a dispatch target is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when a node advances but declares no
	// static or conditional edge to follow.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")
)
