package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownGraph is returned when a workflow name is not registered.
var ErrUnknownGraph = errors.New("unknown workflow graph")

// ValidationError reports an initial state that does not satisfy the
// workflow's declared schema. Exactly one of the three shapes is populated:
// Missing for absent required fields, Field/Expected/Got for a hint
// mismatch, Reason for everything else.
type ValidationError struct {
	Graph    string
	Missing  []string
	Field    string
	Expected string
	Got      string
	Reason   string
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return "Missing required fields: " + strings.Join(e.Missing, ", ")
	case e.Field != "":
		return fmt.Sprintf("invalid type for field %q: expected %s, got %s", e.Field, e.Expected, e.Got)
	default:
		return e.Reason
	}
}

// LoadError reports a workflow whose factory failed or produced an unusable
// graph.
type LoadError struct {
	Graph string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load workflow graph %s: %v", e.Graph, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
