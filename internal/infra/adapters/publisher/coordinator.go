package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"telegram-ai-autoposter/internal/config"
	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/adapter"
	"telegram-ai-autoposter/internal/infra/logging"
	"telegram-ai-autoposter/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var _ adapter.PublishCoordinator = (*Coordinator)(nil)

// Set holds one publisher per supported platform. A nil entry means the
// platform has no credentials.
type Set struct {
	Medium adapter.PlatformPublisher
	DevTo  adapter.PlatformPublisher
	Reddit adapter.PlatformPublisher
}

// NewSet builds publishers for every platform configured in cfg.
func NewSet(cfg config.PublishersConfig, hc *http.Client) Set {
	var s Set
	if cfg.Medium.Configured() {
		s.Medium = NewMediumPublisher(cfg.Medium, hc)
	}
	if cfg.DevTo.Configured() {
		s.DevTo = NewDevToPublisher(cfg.DevTo, hc)
	}
	if cfg.Reddit.Configured() {
		s.Reddit = NewRedditPublisher(cfg.Reddit, hc)
	}
	return s
}

func (s Set) get(p model.Platform) adapter.PlatformPublisher {
	switch p {
	case model.PlatformMedium:
		return s.Medium
	case model.PlatformDevTo:
		return s.DevTo
	case model.PlatformReddit:
		return s.Reddit
	default:
		return nil
	}
}

type CoordinatorOptions struct {
	// Concurrency bounds platforms published in parallel; <= 0 means all at once.
	Concurrency int
	// RatePerMinute throttles calls per platform; 0 disables throttling.
	RatePerMinute int
	// Timeout bounds one platform including retries.
	Timeout time.Duration
	Retry   model.RetryPolicy
}

// Coordinator fans content out to the selected platforms in parallel and
// turns every outcome into a PublicationResult.
type Coordinator struct {
	set      Set
	opts     CoordinatorOptions
	limiters map[model.Platform]*rate.Limiter
	log      *zerolog.Logger
	now      func() time.Time
}

func NewCoordinator(set Set, opts CoordinatorOptions, logger *zerolog.Logger) *Coordinator {
	l := logger.With().Str("component", "publish_coordinator").Logger()
	c := &Coordinator{
		set:      set,
		opts:     opts,
		limiters: make(map[model.Platform]*rate.Limiter),
		log:      &l,
		now:      time.Now,
	}
	if opts.RatePerMinute > 0 {
		for _, p := range model.AllPlatforms() {
			c.limiters[p] = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
		}
	}
	return c
}

func (c *Coordinator) Configured() []model.Platform {
	var out []model.Platform
	for _, p := range model.AllPlatforms() {
		if c.set.get(p) != nil {
			out = append(out, p)
		}
	}
	return out
}

func (c *Coordinator) PublishToAll(ctx context.Context, content model.Content, platforms []model.Platform) map[model.Platform]model.PublicationResult {
	results := make(map[model.Platform]model.PublicationResult, len(platforms))
	var mu sync.Mutex

	g := new(errgroup.Group)
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}
	seen := make(map[model.Platform]bool, len(platforms))
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		g.Go(func() error {
			res := c.publishOne(ctx, p, content)
			mu.Lock()
			results[p] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Coordinator) publishOne(ctx context.Context, p model.Platform, content model.Content) model.PublicationResult {
	log := logging.With(ctx, c.log).With().Str("platform", string(p)).Logger()
	pub := c.set.get(p)
	if pub == nil {
		metrics.IncPublish(string(p), string(model.OutcomeNotConfigured))
		log.Info().Msg("platform not configured")
		return model.NotConfiguredResult(p)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var ref *model.PublishedRef
	err := c.opts.Retry.Do(ctx, func(ctx context.Context) error {
		if lim := c.limiters[p]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return &domain.PublishError{Platform: string(p), Reason: "gave up waiting for the platform rate limit", Err: err}
			}
		}
		r, err := pub.Publish(ctx, content)
		if err != nil {
			return err
		}
		ref = r
		return nil
	}, retryablePublish)
	metrics.ObservePublishLatency(string(p), time.Since(start))

	if err != nil {
		metrics.IncPublish(string(p), string(model.OutcomeFailed))
		log.Warn().Err(err).Msg("publish failed")
		return model.FailedResult(p, failureReason(err))
	}
	metrics.IncPublish(string(p), string(model.OutcomeSuccess))
	log.Info().Str("url", ref.URL).Msg("published")
	return model.SuccessResult(p, *ref, c.now())
}

func retryablePublish(err error) bool {
	var pe *domain.PublishError
	return errors.As(err, &pe) && pe.Retryable
}

func failureReason(err error) string {
	var pe *domain.PublishError
	if errors.As(err, &pe) {
		if pe.StatusCode > 0 {
			return fmt.Sprintf("%s (status %d)", pe.Reason, pe.StatusCode)
		}
		return pe.Reason
	}
	return err.Error()
}
