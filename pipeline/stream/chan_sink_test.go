package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanSinkDeliversInOrder(t *testing.T) {
	sink := NewChanSink(0)
	done := make(chan []Event)
	go func() {
		var got []Event
		for e := range sink.Events() {
			got = append(got, e)
		}
		done <- got
	}()

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, NewAgentStart("r1", "researcher", 0)))
	require.NoError(t, sink.Send(ctx, NewAgentComplete("r1", AgentCompletePayload{Role: "researcher"})))
	require.NoError(t, sink.Send(ctx, NewRunComplete("r1", "article", 0)))
	require.NoError(t, sink.Close(ctx))

	got := <-done
	require.Len(t, got, 3)
	assert.Equal(t, EventAgentStart, got[0].Type())
	assert.Equal(t, EventAgentComplete, got[1].Type())
	assert.Equal(t, EventRunComplete, got[2].Type())
}

func TestChanSinkSendBlocksUntilReceived(t *testing.T) {
	sink := NewChanSink(0)
	started := make(chan struct{})
	sent := make(chan error)
	go func() {
		close(started)
		sent <- sink.Send(context.Background(), NewAgentStart("r1", "writer", 0))
	}()

	<-started
	select {
	case err := <-sent:
		t.Fatalf("send returned before receive: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	<-sink.Events()
	require.NoError(t, <-sent)
}

func TestChanSinkSendUnblocksOnContextCancel(t *testing.T) {
	sink := NewChanSink(0)
	ctx, cancel := context.WithCancel(context.Background())

	sent := make(chan error)
	go func() {
		sent <- sink.Send(ctx, NewAgentStart("r1", "writer", 0))
	}()

	cancel()
	require.ErrorIs(t, <-sent, context.Canceled)
}

func TestChanSinkSendAfterClose(t *testing.T) {
	sink := NewChanSink(0)
	require.NoError(t, sink.Close(context.Background()))
	err := sink.Send(context.Background(), NewAgentStart("r1", "writer", 0))
	require.ErrorIs(t, err, ErrSinkClosed)
}

func TestChanSinkCloseIsIdempotent(t *testing.T) {
	sink := NewChanSink(0)
	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))
}

func TestChanSinkCloseTerminatesConsumerRange(t *testing.T) {
	sink := NewChanSink(1)
	require.NoError(t, sink.Send(context.Background(), NewAgentStart("r1", "writer", 0)))
	require.NoError(t, sink.Close(context.Background()))

	var got []Event
	for e := range sink.Events() {
		got = append(got, e)
	}
	assert.Len(t, got, 1)
}
