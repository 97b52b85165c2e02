package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	"telegram-ai-autoposter/internal/infra/metrics"
	red "telegram-ai-autoposter/internal/infra/redis"
)

var _ repository.PostRepository = (*postRepoCacheDecorator)(nil)

// postRepoCacheDecorator caches single-post reads in Redis. Reads inside a
// transaction and all lists go straight to the inner repository.
//
// Entries are keyed by a per-post generation that every write increments, so a
// reader that loaded a row before a write can only fill a key nobody reads any
// more.
type postRepoCacheDecorator struct {
	inner repository.PostRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPostRepoCacheDecorator(inner repository.PostRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PostRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := logger.With().Str("component", "post_cache").Logger()
	return &postRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func postGenKey(ownerID int64, id string) string {
	return fmt.Sprintf("post:gen:%d:%s", ownerID, id)
}

func postKey(ownerID int64, id string, gen int64) string {
	return fmt.Sprintf("post:%d:%s:%d", ownerID, id, gen)
}

func (d *postRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, p *model.Post) error {
	return d.inner.Create(ctx, tx, p)
}

// generation returns the current write generation of a post. A missing
// counter is generation zero.
func (d *postRepoCacheDecorator) generation(ctx context.Context, ownerID int64, id string) (int64, error) {
	val, err := d.cache.Get(ctx, postGenKey(ownerID, id))
	if red.IsMiss(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (d *postRepoCacheDecorator) GetByID(ctx context.Context, tx repository.Tx, ownerID int64, id string) (*model.Post, error) {
	if tx != nil {
		metrics.IncCacheRequest("post", "bypass")
		return d.inner.GetByID(ctx, tx, ownerID, id)
	}
	gen, err := d.generation(ctx, ownerID, id)
	if err != nil {
		d.log.Warn().Err(err).Str("post_id", id).Msg("cache generation read failed")
		metrics.IncCacheRequest("post", "bypass")
		return d.inner.GetByID(ctx, tx, ownerID, id)
	}
	key := postKey(ownerID, id, gen)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Post
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("post", "hit")
			return &p, nil
		}
	} else if !red.IsMiss(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("post", "miss")
	p, err := d.inner.GetByID(ctx, tx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *postRepoCacheDecorator) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64, limit int) ([]*model.Post, error) {
	return d.inner.ListByOwner(ctx, tx, ownerID, limit)
}

// Update moves the post to a new cache generation after the write, whatever
// its outcome. The counter lives twice the entry TTL so entries of earlier
// generations expire before it can reset to zero.
func (d *postRepoCacheDecorator) Update(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) error {
	err := d.inner.Update(ctx, tx, p, expected)
	genKey := postGenKey(p.OwnerID, p.ID)
	if _, incErr := d.cache.Incr(ctx, genKey); incErr != nil {
		d.log.Warn().Err(incErr).Str("key", genKey).Msg("cache invalidation failed")
		return err
	}
	if expErr := d.cache.Expire(ctx, genKey, 2*d.ttl); expErr != nil {
		d.log.Warn().Err(expErr).Str("key", genKey).Msg("cache generation expiry failed")
	}
	return err
}
