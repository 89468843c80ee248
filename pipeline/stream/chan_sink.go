package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrSinkClosed is returned by Send once the sink has been closed.
var ErrSinkClosed = errors.New("stream: sink closed")

// ChanSink adapts the Sink interface onto a Go channel so transports can
// range over events as they are emitted. The channel is unbuffered by default,
// which gives the orchestrator natural backpressure: Send blocks until the
// consumer is ready to receive, stops pulling when the consumer stops, and
// unblocks with an error when the consumer's context is canceled.
//
// Contract: a single producer goroutine calls Send and then Close; Close must
// not be called concurrently with Send. The events channel is closed by Close
// so consumers can use a plain range loop.
type ChanSink struct {
	ch    chan Event
	done  chan struct{}
	close sync.Once
}

// NewChanSink constructs a channel-backed sink with the given buffer size.
// A buffer of zero yields fully synchronous handoff.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events exposes the consumer side of the sink. The channel is closed when
// the producer calls Close, terminating consumer range loops.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Send delivers the event to the consumer, blocking until it is received,
// the sink is closed, or ctx is canceled.
func (s *ChanSink) Send(ctx context.Context, event Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	select {
	case s.ch <- event:
		return nil
	case <-s.done:
		return ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close marks the sink closed and closes the events channel. Idempotent.
func (s *ChanSink) Close(context.Context) error {
	s.close.Do(func() {
		close(s.done)
		close(s.ch)
	})
	return nil
}
