//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func TestPostRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	post := &model.Post{ID: "01HZX", OwnerID: 42, Topic: "AI", Status: model.PostStatusPendingReview,
		Content: &model.Content{Title: "T", Body: "B"}}

	t.Run("GetByID should fetch from DB and set cache on miss", func(t *testing.T) {
		innerCalls := 0
		cache := newMemRedis()
		inner := &mockInnerPostRepo{
			GetByIDFunc: func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
				innerCalls++
				return post, nil
			},
		}

		got, err := NewPostRepoCacheDecorator(inner, cache, time.Minute, &logger).GetByID(ctx, nil, 42, "01HZX")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerCalls != 1 {
			t.Errorf("inner repository should be called once on a miss, got %d", innerCalls)
		}
		if !cache.has("post:42:01HZX:0") {
			t.Error("expected the post to be cached under its owner-scoped key at generation 0")
		}
		if got.ID != post.ID {
			t.Errorf("wrong post returned: %+v", got)
		}
	})

	t.Run("GetByID should serve hits without touching the DB", func(t *testing.T) {
		cache := newMemRedis()
		b, _ := json.Marshal(post)
		_ = cache.Set(ctx, "post:gen:42:01HZX", 3, 0)
		_ = cache.Set(ctx, "post:42:01HZX:3", b, time.Minute)
		inner := &mockInnerPostRepo{
			GetByIDFunc: func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
				t.Fatal("inner repository must not be called on a hit")
				return nil, nil
			},
		}
		got, err := NewPostRepoCacheDecorator(inner, cache, time.Minute, &logger).GetByID(ctx, nil, 42, "01HZX")
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != model.PostStatusPendingReview || got.Content.Title != "T" {
			t.Errorf("unexpected cached post: %+v", got)
		}
	})

	t.Run("GetByID should not cache missing posts", func(t *testing.T) {
		cache := newMemRedis()
		inner := &mockInnerPostRepo{
			GetByIDFunc: func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
				return nil, domain.ErrNotFound
			},
		}
		_, err := NewPostRepoCacheDecorator(inner, cache, time.Minute, &logger).GetByID(ctx, nil, 42, "nope")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if cache.has("post:42:nope:0") {
			t.Error("a miss must not be cached")
		}
	})

	t.Run("GetByID should bypass the cache when the generation is unreadable", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) { return "", errors.New("connection refused") },
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				t.Error("nothing may be cached without a generation")
				return nil
			},
		}
		inner := &mockInnerPostRepo{
			GetByIDFunc: func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
				return post, nil
			},
		}
		got, err := NewPostRepoCacheDecorator(inner, mockRedis, time.Minute, &logger).GetByID(ctx, nil, 42, "01HZX")
		if err != nil || got.ID != post.ID {
			t.Fatalf("post=%+v err=%v", got, err)
		}
	})

	t.Run("Update should advance the generation even on conflict", func(t *testing.T) {
		cache := newMemRedis()
		inner := &mockInnerPostRepo{
			UpdateFunc: func(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) error {
				return domain.ErrConflict
			},
		}
		err := NewPostRepoCacheDecorator(inner, cache, time.Minute, &logger).Update(ctx, nil, post, model.PostStatusPendingReview)
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict to pass through, got %v", err)
		}
		gen, _ := cache.Get(ctx, "post:gen:42:01HZX")
		if gen != "1" {
			t.Errorf("generation = %q, want 1", gen)
		}
		if ttl := cache.ttl("post:gen:42:01HZX"); ttl != 2*time.Minute {
			t.Errorf("generation ttl = %v, want twice the entry ttl", ttl)
		}
	})

	t.Run("a reader that loaded the row before a delete cannot revive it", func(t *testing.T) {
		cache := newMemRedis()
		var (
			mu      sync.Mutex
			stored  = post.Clone()
			paused  = make(chan struct{})
			resume  = make(chan struct{})
			pauseMu sync.Once
		)
		inner := &mockInnerPostRepo{
			GetByIDFunc: func(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
				mu.Lock()
				snapshot := stored.Clone()
				mu.Unlock()
				// The first reader stalls between its DB read and the cache fill.
				pauseMu.Do(func() {
					close(paused)
					<-resume
				})
				if snapshot.Status == model.PostStatusDeleted {
					return nil, domain.ErrNotFound
				}
				return snapshot, nil
			},
			UpdateFunc: func(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) error {
				mu.Lock()
				defer mu.Unlock()
				stored = p.Clone()
				return nil
			},
		}
		repo := NewPostRepoCacheDecorator(inner, cache, time.Hour, &logger)

		done := make(chan *model.Post, 1)
		go func() {
			p, _ := repo.GetByID(ctx, nil, 42, "01HZX")
			done <- p
		}()
		<-paused

		deleted := post.Clone()
		if err := deleted.Delete(); err != nil {
			t.Fatal(err)
		}
		if err := repo.Update(ctx, nil, deleted, model.PostStatusPendingReview); err != nil {
			t.Fatal(err)
		}
		close(resume)
		if p := <-done; p == nil || p.Status != model.PostStatusPendingReview {
			t.Fatalf("the in-flight reader should see its own snapshot, got %+v", p)
		}

		if _, err := repo.GetByID(ctx, nil, 42, "01HZX"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("deleted post served from cache: err=%v", err)
		}
	})
}
