package graph

import "context"

type resumeKey struct{}

// resumeBox wraps the delivered value so a nil decision is still
// distinguishable from "no resume value present".
type resumeBox struct {
	value any
}

// WithResumeValue attaches an out-of-band decision to the context. The drive
// loop injects it for the first dispatch of a resumed run only.
func WithResumeValue(ctx context.Context, value any) context.Context {
	return context.WithValue(ctx, resumeKey{}, &resumeBox{value: value})
}

// ResumeValue reports the decision delivered to a resumed node. ok is false
// on a fresh dispatch; a node that needs outside input suspends in that case.
// A present-but-nil value means the caller resumed without a payload.
func ResumeValue(ctx context.Context) (value any, ok bool) {
	box, ok := ctx.Value(resumeKey{}).(*resumeBox)
	if !ok {
		return nil, false
	}
	return box.value, true
}
