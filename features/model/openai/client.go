// Package openai provides a model.Client implementation backed by the OpenAI
// Chat Completions API using github.com/openai/openai-go.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/draftforge/draftforge/pipeline/model"
)

const providerName = "openai"

type (
	// CompletionsClient captures the subset of the OpenAI SDK used by the
	// adapter. It is satisfied by *sdk.ChatCompletionService so callers can
	// pass either a real client or a mock in tests.
	CompletionsClient interface {
		New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// DefaultModel is used when model.Request.Model is empty.
		DefaultModel string

		// MaxTokens caps completions when a request does not specify
		// MaxTokens. When zero, callers must set Request.MaxTokens.
		MaxTokens int

		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client via OpenAI chat completions.
	Client struct {
		completions  CompletionsClient
		defaultModel string
		maxTok       int
		temp         float64
	}
)

// New builds an OpenAI-backed model client.
func New(completions CompletionsClient, opts Options) (*Client, error) {
	if completions == nil {
		return nil, errors.New("openai completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		completions:  completions,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	oc := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a single chat completion request.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.completions.New(ctx, *params)
	if err != nil {
		return nil, wrapError("chat.completions.new", err)
	}
	return translateResponse(resp)
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, sdk.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleAssistant:
			messages = append(messages, sdk.AssistantMessage(m.Content))
		default:
			messages = append(messages, sdk.UserMessage(m.Content))
		}
	}
	params := sdk.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(maxTokens))
	}
	if t := effectiveTemperature(req.Temperature, c.temp); t > 0 {
		params.Temperature = sdk.Float(t)
	}
	return &params, nil
}

func effectiveTemperature(requested, fallback float64) float64 {
	if requested > 0 {
		return requested
	}
	return fallback
}

func translateResponse(resp *sdk.ChatCompletion) (*model.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty completion response")
	}
	choice := resp.Choices[0]
	out := &model.Response{
		Text:       choice.Message.Content,
		Model:      resp.Model,
		StopReason: string(choice.FinishReason),
	}
	if u := resp.Usage; u.TotalTokens != 0 {
		out.Usage = model.TokenUsage{
			InputTokens:  int(u.PromptTokens),
			OutputTokens: int(u.CompletionTokens),
			TotalTokens:  int(u.TotalTokens),
		}
	}
	return out, nil
}

// wrapError maps SDK failures onto the provider error taxonomy. Rate limiting
// additionally joins model.ErrRateLimited so the adaptive limiter reacts.
func wrapError(operation string, err error) error {
	var apierr *sdk.Error
	status := 0
	code := ""
	message := err.Error()
	if errors.As(err, &apierr) {
		status = apierr.StatusCode
		code = apierr.Code
		message = apierr.Message
	}

	kind := model.ProviderErrorKindUnknown
	retryable := false
	switch {
	case errors.Is(err, model.ErrRateLimited), status == http.StatusTooManyRequests:
		kind = model.ProviderErrorKindRateLimited
		retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = model.ProviderErrorKindAuth
	case status == http.StatusBadRequest:
		kind = model.ProviderErrorKindInvalidRequest
	case status >= http.StatusInternalServerError:
		kind = model.ProviderErrorKindUnavailable
		retryable = true
	}

	pe := model.NewProviderError(providerName, operation, status, kind, code, message, retryable, err)
	if kind == model.ProviderErrorKindRateLimited {
		return errors.Join(model.ErrRateLimited, pe)
	}
	return fmt.Errorf("openai %s: %w", operation, pe)
}
