package ai

import (
	"context"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.ContentGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner adapter.ContentGenerator
	sem   chan struct{}
}

// NewLimitedGenerator caps concurrent calls to inner.
func NewLimitedGenerator(inner adapter.ContentGenerator, maxConcurrent int) adapter.ContentGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Name() string { return l.inner.Name() }

func (l *limitedGenerator) Generate(ctx context.Context, req adapter.GenerationRequest) (*model.Content, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, &domain.GenerationError{Provider: l.Name(), Reason: "timed out waiting for a free generation slot", Err: ctx.Err()}
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, req)
}
