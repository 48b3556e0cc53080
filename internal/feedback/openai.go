package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"lautcoach/internal/scoring"
)

// ErrEmptyReply is returned when the model answers without any choice.
var ErrEmptyReply = errors.New("feedback: model returned no choices")

// OpenAIGenerator implements scoring.FeedbackGenerator with the chat
// completions API.
type OpenAIGenerator struct {
	client      oai.Client
	model       string
	temperature float64
}

// Option configures an OpenAIGenerator.
type Option func(*options)

type options struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewOpenAIGenerator creates a generator for model.
func NewOpenAIGenerator(apiKey, model string, opts ...Option) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("feedback: apiKey must not be empty")
	}
	if model == "" {
		model = string(shared.ChatModelGPT4oMini)
	}

	var o options
	for _, fn := range opts {
		fn(&o)
	}

	// Retries are handled by the resilience wrapper.
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: o.timeout}))
	}

	return &OpenAIGenerator{
		client:      oai.NewClient(reqOpts...),
		model:       model,
		temperature: 0.3,
	}, nil
}

// GenerateFeedback implements scoring.FeedbackGenerator.
func (g *OpenAIGenerator) GenerateFeedback(ctx context.Context, req scoring.FeedbackRequest) (*scoring.Feedback, error) {
	resp, err := g.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(BuildPrompt(req)),
		},
		Temperature: oai.Float(g.temperature),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feedback: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReply
	}

	fb := Parse(resp.Choices[0].Message.Content)
	return &fb, nil
}
