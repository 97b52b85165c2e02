package adapter

import (
	"context"

	"telegram-ai-autoposter/internal/domain/model"
)

// GenerationRequest asks for an article about Topic. Previous, when set, is the
// content being replaced and should steer the model towards a different take.
type GenerationRequest struct {
	Topic    string
	Previous *model.Content
}

// ContentGenerator is the port for LLM article generation. Implementations
// return *domain.GenerationError on failure and never retry on their own.
type ContentGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (*model.Content, error)
}
