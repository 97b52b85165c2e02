package repository

import (
	"context"

	"telegram-ai-autoposter/internal/domain/model"
)

// PostRepository persists Post aggregates. Reads and writes are scoped to the owner.
//
// GetByID returns domain.ErrNotFound for missing posts, posts of another owner
// and Deleted posts. ListByOwner never returns Deleted posts and orders newest first.
//
// Update replaces the whole aggregate only if the stored version still equals
// post.Version and the stored status still equals expected; otherwise it
// returns domain.ErrConflict and writes nothing. On success the stored version
// and post.Version are incremented.
type PostRepository interface {
	Create(ctx context.Context, tx Tx, post *model.Post) error
	GetByID(ctx context.Context, tx Tx, ownerID int64, id string) (*model.Post, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID int64, limit int) ([]*model.Post, error)
	Update(ctx context.Context, tx Tx, post *model.Post, expected model.PostStatus) error
}
