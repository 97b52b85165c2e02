package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/metrics"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ContentGenerator = (*OpenAIGenerator)(nil)

// OpenAIOptions configures an OpenAI-compatible Chat Completions backend.
// BaseURL points the client at compatible gateways (Metis, Together, local proxies).
type OpenAIOptions struct {
	Name                  string
	APIKey                string
	BaseURL               string
	Model                 string
	MaxTokens             int
	Temperature           float64
	RegenerateTemperature float64
	Timeout               time.Duration
}

// OpenAIGenerator generates articles through the official openai-go SDK.
type OpenAIGenerator struct {
	client openai.Client
	opts   OpenAIOptions
	tokens tokenCounter
}

func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if opts.Name == "" {
		opts.Name = "openai"
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	if opts.RegenerateTemperature <= 0 {
		opts.RegenerateTemperature = opts.Temperature
	}

	// Retries belong to the caller.
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
		tokens: newTokenCounter(opts.Model),
	}, nil
}

func (o *OpenAIGenerator) Name() string { return o.opts.Name }

func (o *OpenAIGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	if req.Topic == "" {
		return nil, domain.Validationf("topic is empty")
	}
	prompt := buildUserPrompt(req, o.tokens)
	temperature := o.opts.Temperature
	if req.Previous != nil {
		temperature = o.opts.RegenerateTemperature
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(int64(o.opts.MaxTokens)),
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, o.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &domain.GenerationError{Provider: o.Name(), Reason: "malformed response", Retryable: true, Err: errors.New("no choices")}
	}

	promptTokens := int(resp.Usage.PromptTokens)
	if promptTokens == 0 {
		promptTokens = o.tokens.Count(systemPrompt) + o.tokens.Count(prompt)
	}
	metrics.AddTokens(o.Name(), o.opts.Model, promptTokens, int(resp.Usage.CompletionTokens))

	return parseArticle(o.Name(), resp.Choices[0].Message.Content)
}

func (o *OpenAIGenerator) classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		reason := fmt.Sprintf("upstream returned status %d", code)
		switch {
		case code == 401 || code == 403:
			reason = "upstream rejected the credentials"
		case code == 429:
			reason = "upstream quota or rate limit exceeded"
		}
		return &domain.GenerationError{Provider: o.Name(), Reason: reason, Retryable: code == 429 || code >= 500, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.GenerationError{Provider: o.Name(), Reason: "upstream timed out", Retryable: ctx.Err() == nil, Err: err}
	}
	return &domain.GenerationError{Provider: o.Name(), Reason: "upstream request failed", Retryable: ctx.Err() == nil, Err: err}
}
