package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PostUseCase = (*postUC)(nil)

// PostUseCase drives the post lifecycle. Every method returns the current
// post snapshot or a typed failure (see internal/domain/error.go).
//
// When the store rejects a stale transition, the method returns the re-read
// post together with an error matching domain.ErrConflict.
// GenerateContent and RegenerateContent return the Failed post together with
// an error matching domain.ErrGeneration when the generator fails.
// A transition that is not allowed from the current status returns the
// unchanged post and an error matching domain.ErrInvalidState.
type PostUseCase interface {
	CreatePost(ctx context.Context, ownerID int64, topic string) (*model.Post, error)
	GenerateContent(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	ConfirmPost(ctx context.Context, ownerID int64, postID string, platforms []model.Platform) (*model.Post, error)
	RegenerateContent(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	DeletePost(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	ReopenPost(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	GetPost(ctx context.Context, ownerID int64, postID string) (*model.Post, error)
	ListMyPosts(ctx context.Context, ownerID int64) ([]*model.Post, error)
	// ConfiguredPlatforms lists platforms that have credentials.
	ConfiguredPlatforms() []model.Platform
}

// PostOptions tunes the orchestrator.
type PostOptions struct {
	MaxTopicLength    int
	ListLimit         int
	GenerationRetry   model.RetryPolicy
	StoreRetry        model.RetryPolicy
	GenerationTimeout time.Duration
	PublishTimeout    time.Duration
}

type postUC struct {
	posts       repository.PostRepository
	generator   adapter.ContentGenerator
	coordinator adapter.PublishCoordinator
	opts        PostOptions
	log         *zerolog.Logger
}

func NewPostUseCase(
	posts repository.PostRepository,
	generator adapter.ContentGenerator,
	coordinator adapter.PublishCoordinator,
	opts PostOptions,
	logger *zerolog.Logger,
) *postUC {
	l := logger.With().Str("component", "PostUseCase").Logger()
	if opts.ListLimit <= 0 {
		opts.ListLimit = 10
	}
	return &postUC{
		posts:       posts,
		generator:   generator,
		coordinator: coordinator,
		opts:        opts,
		log:         &l,
	}
}

func (u *postUC) CreatePost(ctx context.Context, ownerID int64, topic string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.CreatePost")()

	post, err := model.NewPost(ownerID, topic, u.opts.MaxTopicLength)
	if err != nil {
		return nil, err
	}
	if err := u.posts.Create(ctx, repository.NoTX, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	metrics.IncPostTransition("", string(model.PostStatusDraft))
	logging.With(logging.WithPostID(ctx, post.ID), u.log).Info().Str("topic", post.Topic).Msg("post created")

	return u.GenerateContent(ctx, ownerID, post.ID)
}

func (u *postUC) GenerateContent(ctx context.Context, ownerID int64, postID string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.GenerateContent")()

	post, err := u.transition(ctx, "generate", ownerID, postID, func(p *model.Post) error {
		return p.StartGeneration()
	})
	if err != nil {
		return post, err
	}
	return u.generate(ctx, post, nil)
}

func (u *postUC) RegenerateContent(ctx context.Context, ownerID int64, postID string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.RegenerateContent")()

	var previous *model.Content
	post, err := u.transition(ctx, "regenerate", ownerID, postID, func(p *model.Post) error {
		previous = p.Content.Clone()
		return p.StartRegeneration()
	})
	if err != nil {
		return post, err
	}
	return u.generate(ctx, post, previous)
}

// generate calls the generator for a post already in GeneratingContent and
// records the outcome. The call is not cancelled by the caller's context.
func (u *postUC) generate(ctx context.Context, post *model.Post, previous *model.Content) (*model.Post, error) {
	ctx = logging.WithPostID(context.WithoutCancel(ctx), post.ID)
	log := logging.With(ctx, u.log)

	gctx, cancel := withOptionalTimeout(ctx, u.opts.GenerationTimeout)
	defer cancel()

	var content *model.Content
	genErr := u.opts.GenerationRetry.Do(gctx, func(ctx context.Context) error {
		c, err := u.generator.Generate(ctx, adapter.GenerationRequest{Topic: post.Topic, Previous: previous})
		if err != nil {
			log.Warn().Err(err).Msg("generation attempt failed")
			return err
		}
		content = c
		return nil
	}, retryableGeneration)

	if genErr == nil {
		genErr = post.CompleteGeneration(content)
	}
	if genErr != nil {
		if !errors.Is(genErr, domain.ErrGeneration) {
			genErr = &domain.GenerationError{Provider: u.generator.Name(), Reason: "unexpected generator failure", Err: genErr}
		}
		if err := post.FailGeneration(generationReason(genErr)); err != nil {
			return post, err
		}
	}

	if err := u.saveOutcome(ctx, post, model.PostStatusGeneratingContent); err != nil {
		return u.reread(ctx, "generate", post.OwnerID, post.ID, err)
	}
	if genErr != nil {
		log.Error().Err(genErr).Msg("content generation failed")
		return post, genErr
	}
	log.Info().Str("title", post.Content.Title).Msg("content ready for review")
	return post, nil
}

func (u *postUC) ConfirmPost(ctx context.Context, ownerID int64, postID string, platforms []model.Platform) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.ConfirmPost")()

	selection, err := model.NormalizePlatforms(platforms)
	if err != nil {
		return nil, err
	}
	post, err := u.transition(ctx, "confirm", ownerID, postID, func(p *model.Post) error {
		return p.StartPublishing(selection)
	})
	if err != nil {
		return post, err
	}

	ctx = logging.WithPostID(context.WithoutCancel(ctx), post.ID)
	pctx, cancel := withOptionalTimeout(ctx, u.opts.PublishTimeout)
	defer cancel()

	results := u.coordinator.PublishToAll(pctx, *post.Content, post.Platforms)
	if err := post.CompletePublishing(results); err != nil {
		return post, err
	}
	if err := u.saveOutcome(ctx, post, model.PostStatusPublishing); err != nil {
		return u.reread(ctx, "confirm", ownerID, postID, err)
	}

	logging.With(ctx, u.log).Info().
		Str("status", string(post.Status)).
		Int("platforms", len(post.Platforms)).
		Int("succeeded", len(post.SucceededPlatforms())).
		Msg("publish finished")
	return post, nil
}

func (u *postUC) DeletePost(ctx context.Context, ownerID int64, postID string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.DeletePost")()
	return u.transition(ctx, "delete", ownerID, postID, func(p *model.Post) error {
		return p.Delete()
	})
}

func (u *postUC) ReopenPost(ctx context.Context, ownerID int64, postID string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.ReopenPost")()
	return u.transition(ctx, "reopen", ownerID, postID, func(p *model.Post) error {
		return p.Reopen()
	})
}

func (u *postUC) GetPost(ctx context.Context, ownerID int64, postID string) (*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.GetPost")()
	return u.posts.GetByID(ctx, repository.NoTX, ownerID, postID)
}

func (u *postUC) ListMyPosts(ctx context.Context, ownerID int64) ([]*model.Post, error) {
	defer logging.TraceDuration(u.log, "PostUC.ListMyPosts")()
	return u.posts.ListByOwner(ctx, repository.NoTX, ownerID, u.opts.ListLimit)
}

func (u *postUC) ConfiguredPlatforms() []model.Platform {
	return u.coordinator.Configured()
}

// transition loads the owner's post, applies mutate and stores it with a
// compare-and-swap on the version it was loaded with.
func (u *postUC) transition(ctx context.Context, op string, ownerID int64, postID string, mutate func(*model.Post) error) (*model.Post, error) {
	post, err := u.posts.GetByID(ctx, repository.NoTX, ownerID, postID)
	if err != nil {
		return nil, err
	}
	expected := post.Status
	if err := mutate(post); err != nil {
		// Transitions validate before mutating, so post is still the stored snapshot.
		return post, err
	}
	if err := u.save(ctx, post, expected); err != nil {
		return u.reread(ctx, op, ownerID, postID, err)
	}
	return post, nil
}

func (u *postUC) save(ctx context.Context, post *model.Post, expected model.PostStatus) error {
	if err := u.posts.Update(ctx, repository.NoTX, post, expected); err != nil {
		return err
	}
	metrics.IncPostTransition(string(expected), string(post.Status))
	return nil
}

// saveOutcome stores the result of a generation or publish call. The post is
// in a transient status until this write lands, so store failures other than
// conflicts are retried.
func (u *postUC) saveOutcome(ctx context.Context, post *model.Post, expected model.PostStatus) error {
	attempt := 0
	return u.opts.StoreRetry.Do(ctx, func(ctx context.Context) error {
		attempt++
		err := u.save(ctx, post, expected)
		if err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Int("attempt", attempt).Str("status", string(post.Status)).Msg("storing outcome failed")
		}
		return err
	}, retryableStore)
}

// reread reports the current state after a failed write. Conflicts are not
// retried: the caller gets the winner's snapshot and the conflict error.
func (u *postUC) reread(ctx context.Context, op string, ownerID int64, postID string, writeErr error) (*model.Post, error) {
	if !errors.Is(writeErr, domain.ErrConflict) {
		logging.With(ctx, u.log).Error().Err(writeErr).Str("op", op).Str("post_id", postID).Msg("post write failed")
		return nil, writeErr
	}
	metrics.IncPostConflict(op)
	logging.With(ctx, u.log).Warn().Str("op", op).Str("post_id", postID).Msg("stale post transition rejected")

	current, err := u.posts.GetByID(context.WithoutCancel(ctx), repository.NoTX, ownerID, postID)
	if err != nil {
		return nil, err
	}
	return current, writeErr
}

func retryableGeneration(err error) bool {
	var ge *domain.GenerationError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return !errors.Is(err, domain.ErrValidation)
}

func retryableStore(err error) bool {
	return !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrNotFound)
}

func generationReason(err error) string {
	var ge *domain.GenerationError
	if errors.As(err, &ge) && ge.Reason != "" {
		return ge.Reason
	}
	return err.Error()
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
