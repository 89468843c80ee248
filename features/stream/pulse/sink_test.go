package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	streamopts "goa.design/pulse/streaming/options"

	"github.com/draftforge/draftforge/features/stream/pulse/clients/pulse"
	"github.com/draftforge/draftforge/pipeline/stream"
)

type fakeStream struct {
	name    string
	events  []string
	payload [][]byte
	addErr  error
}

func (f *fakeStream) Add(_ context.Context, event string, payload []byte) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.events = append(f.events, event)
	f.payload = append(f.payload, payload)
	return "1-0", nil
}

func (f *fakeStream) Destroy(context.Context) error { return nil }

type fakeClient struct {
	streams   map[string]*fakeStream
	streamErr error
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{streams: make(map[string]*fakeStream)}
}

func (f *fakeClient) Stream(name string, _ ...streamopts.Stream) (pulse.Stream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	if s, ok := f.streams[name]; ok {
		return s, nil
	}
	s := &fakeStream{name: name}
	f.streams[name] = s
	return s, nil
}

func (f *fakeClient) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestSendMirrorsEnvelope(t *testing.T) {
	fc := newFakeClient()
	sink, err := NewSink(Options{Client: fc})
	require.NoError(t, err)

	ev := stream.NewAgentComplete("run-1", stream.AgentCompletePayload{
		Role:    "writer",
		Content: "draft text",
	})
	require.NoError(t, sink.Send(context.Background(), ev))

	fs := fc.streams["run/run-1"]
	require.NotNil(t, fs)
	require.Len(t, fs.events, 1)
	assert.Equal(t, "agent_complete", fs.events[0])

	var env struct {
		Type      string          `json:"type"`
		RunID     string          `json:"run_id"`
		Timestamp string          `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(fs.payload[0], &env))
	assert.Equal(t, "agent_complete", env.Type)
	assert.Equal(t, "run-1", env.RunID)
	assert.NotEmpty(t, env.Timestamp)
	var data stream.AgentCompletePayload
	require.NoError(t, json.Unmarshal(env.Payload, &data))
	assert.Equal(t, "writer", data.Role)
	assert.Equal(t, "draft text", data.Content)
}

func TestSendReusesStreamHandle(t *testing.T) {
	fc := newFakeClient()
	sink, err := NewSink(Options{Client: fc})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, stream.NewAgentStart("run-1", "researcher", 0)))
	require.NoError(t, sink.Send(ctx, stream.NewAgentComplete("run-1", stream.AgentCompletePayload{Role: "researcher"})))
	require.NoError(t, sink.Send(ctx, stream.NewRunComplete("run-1", "article", 0)))

	require.Len(t, fc.streams, 1)
	assert.Equal(t, []string{"agent_start", "agent_complete", "run_complete"}, fc.streams["run/run-1"].events)
}

func TestSendSeparateRunsSeparateStreams(t *testing.T) {
	fc := newFakeClient()
	sink, err := NewSink(Options{Client: fc})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, stream.NewAgentStart("run-a", "writer", 0)))
	require.NoError(t, sink.Send(ctx, stream.NewAgentStart("run-b", "writer", 0)))

	assert.Contains(t, fc.streams, "run/run-a")
	assert.Contains(t, fc.streams, "run/run-b")
}

func TestSendMissingRunID(t *testing.T) {
	sink, err := NewSink(Options{Client: newFakeClient()})
	require.NoError(t, err)
	err = sink.Send(context.Background(), stream.NewAgentStart("", "writer", 0))
	require.Error(t, err)
}

func TestSendCustomStreamName(t *testing.T) {
	fc := newFakeClient()
	sink, err := NewSink(Options{
		Client: fc,
		StreamName: func(e stream.Event) (string, error) {
			return "events/" + e.RunID(), nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), stream.NewAgentStart("run-1", "writer", 0)))
	assert.Contains(t, fc.streams, "events/run-1")
}

func TestSendPublishFailure(t *testing.T) {
	fc := newFakeClient()
	boom := errors.New("redis down")
	fc.streams["run/run-1"] = &fakeStream{addErr: boom}
	sink, err := NewSink(Options{Client: fc})
	require.NoError(t, err)
	err = sink.Send(context.Background(), stream.NewAgentStart("run-1", "writer", 0))
	require.ErrorIs(t, err, boom)
}

func TestSendAfterClose(t *testing.T) {
	fc := newFakeClient()
	sink, err := NewSink(Options{Client: fc})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	assert.True(t, fc.closed)

	err = sink.Send(context.Background(), stream.NewAgentStart("run-1", "writer", 0))
	require.ErrorIs(t, err, stream.ErrSinkClosed)

	require.NoError(t, sink.Close(context.Background()))
}

func TestNewSinkRequiresClient(t *testing.T) {
	_, err := NewSink(Options{})
	require.Error(t, err)
}
