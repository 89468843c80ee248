// Package pulse exposes a stream.Sink that mirrors workflow events to
// goa.design/pulse streams. Each run publishes to its own stream so external
// consumers (dashboards, replay tooling) can follow a run independently of the
// SSE connection that initiated it.
package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/draftforge/draftforge/features/stream/pulse/clients/pulse"
	"github.com/draftforge/draftforge/pipeline/stream"
)

type (
	// Options configures the mirror sink.
	Options struct {
		// Client publishes events to Pulse. Required.
		Client pulse.Client
		// StreamName derives the target Pulse stream from an event. Defaults
		// to "run/<RunID>".
		StreamName func(stream.Event) (string, error)
	}

	// Sink mirrors workflow events into Pulse streams. Events are wrapped in
	// a JSON envelope carrying type, run ID and timestamp. Safe for
	// concurrent Send calls.
	Sink struct {
		client     pulse.Client
		streamName func(stream.Event) (string, error)

		mu      sync.Mutex
		handles map[string]pulse.Stream
		closed  bool
	}

	// envelope is the wire format for mirrored events.
	envelope struct {
		Type      string `json:"type"`
		RunID     string `json:"run_id"`
		Timestamp string `json:"timestamp"`
		Payload   any    `json:"payload,omitempty"`
	}
)

var _ stream.Sink = (*Sink)(nil)

// NewSink constructs a Pulse-backed mirror sink.
func NewSink(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	name := opts.StreamName
	if name == nil {
		name = defaultStreamName
	}
	return &Sink{
		client:     opts.Client,
		streamName: name,
		handles:    make(map[string]pulse.Stream),
	}, nil
}

// Send publishes the event to its run's Pulse stream. Stream handles are
// cached per stream name for the lifetime of the sink.
func (s *Sink) Send(ctx context.Context, event stream.Event) error {
	name, err := s.streamName(event)
	if err != nil {
		return err
	}
	handle, err := s.handle(name)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(envelope{
		Type:      string(event.Type()),
		RunID:     event.RunID(),
		Timestamp: event.Occurred().UTC().Format(time.RFC3339Nano),
		Payload:   event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	if _, err := handle.Add(ctx, string(event.Type()), payload); err != nil {
		return fmt.Errorf("publish to pulse stream %q: %w", name, err)
	}
	return nil
}

// Close releases the sink. Further Send calls fail with ErrSinkClosed.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handles = nil
	s.mu.Unlock()
	return s.client.Close(ctx)
}

func (s *Sink) handle(name string) (pulse.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, stream.ErrSinkClosed
	}
	if h, ok := s.handles[name]; ok {
		return h, nil
	}
	h, err := s.client.Stream(name)
	if err != nil {
		return nil, err
	}
	s.handles[name] = h
	return h, nil
}

func defaultStreamName(event stream.Event) (string, error) {
	if event.RunID() == "" {
		return "", errors.New("event missing run id")
	}
	return "run/" + event.RunID(), nil
}
