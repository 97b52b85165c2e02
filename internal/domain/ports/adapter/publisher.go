package adapter

import (
	"context"

	"telegram-ai-autoposter/internal/domain/model"
)

// PlatformPublisher submits content to one external platform.
// Failures are *domain.PublishError.
type PlatformPublisher interface {
	Platform() model.Platform
	Publish(ctx context.Context, content model.Content) (*model.PublishedRef, error)
}

// PublishCoordinator fans content out to platforms and reports exactly one
// result per requested platform. It never returns an aggregate error.
type PublishCoordinator interface {
	PublishToAll(ctx context.Context, content model.Content, platforms []model.Platform) map[model.Platform]model.PublicationResult
	// Configured lists platforms that have credentials.
	Configured() []model.Platform
}
