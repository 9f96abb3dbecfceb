package stream

import (
	"context"
	"sync"
)

// Sink consumes the ordered progress events of a single run.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Stream is a channel-backed Sink connecting a run to one consumer, usually
// an SSE response writer. The run goroutine is the only sender and calls
// Close after its final event; the consumer ranges over Events.
type Stream struct {
	ch        chan Event
	closeOnce sync.Once
}

// New creates a Stream with the given channel buffer. A zero buffer makes
// every Send rendezvous with the consumer.
func New(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Send delivers ev to the consumer. It blocks while the buffer is full
// (backpressure) and gives up only when ctx ends, so an abandoned consumer
// cannot outlive its run.
func (s *Stream) Send(ctx context.Context, ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the consumer side of the stream. The channel closes after
// the producer's final event.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close ends the stream. Only the producer may call it, after its last Send.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.ch)
	})
}

type discardSink struct{}

func (discardSink) Send(context.Context, Event) error { return nil }

// Discard returns a Sink that drops every event; non-streaming executions
// run against it.
func Discard() Sink {
	return discardSink{}
}
