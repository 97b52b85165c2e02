// File: internal/infra/adapters/ai/multi_adapter.go
package ai

import (
	"context"
	"errors"
	"strings"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

var _ adapter.ContentGenerator = (*FallbackGenerator)(nil)

// FallbackGenerator tries providers in order and returns the first success.
// Validation errors and caller cancellation stop the chain.
type FallbackGenerator struct {
	chain []adapter.ContentGenerator
}

func NewFallbackGenerator(chain ...adapter.ContentGenerator) adapter.ContentGenerator {
	var out []adapter.ContentGenerator
	for _, g := range chain {
		if g != nil {
			out = append(out, g)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return &FallbackGenerator{chain: out}
}

func (f *FallbackGenerator) Name() string {
	names := make([]string, 0, len(f.chain))
	for _, g := range f.chain {
		names = append(names, g.Name())
	}
	return strings.Join(names, ">")
}

func (f *FallbackGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	if len(f.chain) == 0 {
		return nil, &domain.GenerationError{Provider: "none", Reason: "no generator configured"}
	}
	var lastErr error
	for _, g := range f.chain {
		c, err := g.Generate(ctx, req)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrValidation) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
