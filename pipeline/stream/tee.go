package stream

import "context"

// TeeSink forwards events to a primary sink and mirrors them to secondary
// sinks. Mirror failures are reported through the OnMirrorError callback and
// never fail the run; only primary sink errors propagate to the producer.
type TeeSink struct {
	primary Sink
	mirrors []Sink

	// OnMirrorError is invoked with the failing mirror's error. Nil means
	// mirror errors are silently dropped.
	OnMirrorError func(ctx context.Context, err error)
}

var _ Sink = (*TeeSink)(nil)

// NewTeeSink builds a sink that delivers to primary and mirrors to the rest.
func NewTeeSink(primary Sink, mirrors ...Sink) *TeeSink {
	return &TeeSink{primary: primary, mirrors: mirrors}
}

// Send mirrors the event best-effort, then delivers it to the primary sink.
func (s *TeeSink) Send(ctx context.Context, event Event) error {
	for _, m := range s.mirrors {
		if err := m.Send(ctx, event); err != nil && s.OnMirrorError != nil {
			s.OnMirrorError(ctx, err)
		}
	}
	return s.primary.Send(ctx, event)
}

// Close closes the primary sink and all mirrors. The primary's close error
// wins; mirror close errors go through OnMirrorError.
func (s *TeeSink) Close(ctx context.Context) error {
	for _, m := range s.mirrors {
		if err := m.Close(ctx); err != nil && s.OnMirrorError != nil {
			s.OnMirrorError(ctx, err)
		}
	}
	return s.primary.Close(ctx)
}
