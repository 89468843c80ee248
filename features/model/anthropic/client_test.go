package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/pipeline/model"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestCompleteTextOnly(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Model: "claude-sonnet-4-5",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "world"},
		},
		StopReason: sdk.StopReasonEndTurn,
		Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &model.Request{
		System:   "be brief",
		Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Text)
	assert.Equal(t, string(sdk.StopReasonEndTurn), resp.StopReason)
	assert.Equal(t, model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, sdk.Model("claude-sonnet-4-5"), stub.lastParams.Model)
	assert.EqualValues(t, 128, stub.lastParams.MaxTokens)
	require.Len(t, stub.lastParams.System, 1)
	assert.Equal(t, "be brief", stub.lastParams.System[0].Text)
	require.Len(t, stub.lastParams.Messages, 1)
}

func TestCompleteRequiresMessages(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 64})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
}

func TestCompleteRequiresMaxTokens(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "claude-sonnet-4-5"})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
}

func TestCompleteRateLimited(t *testing.T) {
	stub := &stubMessagesClient{err: model.ErrRateLimited}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 64})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
	pe, ok := model.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, model.ProviderErrorKindRateLimited, pe.Kind())
	assert.True(t, pe.Retryable())
}

func TestCompleteProviderFailure(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("connection reset")}
	cl, err := New(stub, Options{DefaultModel: "claude-sonnet-4-5", MaxTokens: 64})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	pe, ok := model.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "anthropic", pe.Provider())
	assert.Equal(t, model.ProviderErrorKindUnknown, pe.Kind())
}
