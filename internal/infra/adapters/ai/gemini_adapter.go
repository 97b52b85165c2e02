// File: internal/infra/adapters/ai/gemini_adapter.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/metrics"
)

var _ adapter.ContentGenerator = (*GeminiGenerator)(nil)

type GeminiOptions struct {
	APIKey                string
	BaseURL               string
	Model                 string
	MaxTokens             int
	Temperature           float64
	RegenerateTemperature float64
}

type GeminiGenerator struct {
	client *genai.Client
	opts   GeminiOptions
}

// NewGeminiGenerator creates a Gemini generator using the official SDK.
func NewGeminiGenerator(ctx context.Context, opts GeminiOptions) (*GeminiGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.RegenerateTemperature <= 0 {
		opts.RegenerateTemperature = opts.Temperature
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: opts.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: c, opts: opts}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	if req.Topic == "" {
		return nil, domain.Validationf("topic is empty")
	}
	temperature := g.opts.Temperature
	if req.Previous != nil {
		temperature = g.opts.RegenerateTemperature
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		MaxOutputTokens:   int32(g.opts.MaxTokens),
	}
	if temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.opts.Model, genai.Text(buildUserPrompt(req, heuristicCounter{})), cfg)
	if err != nil {
		return nil, g.classify(ctx, err)
	}

	// Extract text
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return nil, &domain.GenerationError{Provider: g.Name(), Reason: "malformed response", Retryable: true, Err: errors.New("empty candidates")}
	}
	if resp.UsageMetadata != nil {
		metrics.AddTokens(g.Name(), g.opts.Model, int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return parseArticle(g.Name(), sb.String())
}

func (g *GeminiGenerator) classify(ctx context.Context, err error) error {
	if code := apiErrorCode(err); code > 0 {
		reason := fmt.Sprintf("upstream returned status %d", code)
		if code == 429 {
			reason = "upstream quota or rate limit exceeded"
		}
		return &domain.GenerationError{Provider: g.Name(), Reason: reason, Retryable: code == 429 || code >= 500, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.GenerationError{Provider: g.Name(), Reason: "upstream timed out", Retryable: ctx.Err() == nil, Err: err}
	}
	return &domain.GenerationError{Provider: g.Name(), Reason: "upstream request failed", Retryable: ctx.Err() == nil, Err: err}
}

func apiErrorCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
