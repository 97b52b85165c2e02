package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	"telegram-ai-autoposter/internal/infra/metrics"
)

var _ repository.PostRepository = (*PostgresPostRepo)(nil)

const driverName = "postgres"

// PostgresPostRepo stores posts in `posts` and their per-platform results in
// `post_publications`. Both tables are written in one transaction.
type PostgresPostRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewPostgresPostRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *PostgresPostRepo {
	return &PostgresPostRepo{pool: pool, tm: tm}
}

const postColumns = `id, owner_id, topic, title, body, tags, status, platforms, failure_reason, version, created_at, updated_at`

func (r *PostgresPostRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) (err error) {
	defer metrics.ObserveStoreOp(driverName, "create", time.Now(), &err)
	return r.inTx(ctx, tx, func(ctx context.Context, ex executor) error {
		title, body, tags := contentColumns(p.Content)
		_, err := ex.Exec(ctx, `
INSERT INTO posts (`+postColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			p.ID, p.OwnerID, p.Topic, title, body, tags, string(p.Status), platformStrings(p.Platforms), p.FailureReason, p.Version, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		return r.writePublications(ctx, ex, p)
	})
}

func (r *PostgresPostRepo) GetByID(ctx context.Context, tx repository.Tx, ownerID int64, id string) (_ *model.Post, err error) {
	defer metrics.ObserveStoreOp(driverName, "get", time.Now(), &err)
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx, `
SELECT `+postColumns+`
  FROM posts
 WHERE id=$1 AND owner_id=$2 AND status <> 'deleted'`, id, ownerID)
	p, err := scanPost(row)
	if err != nil {
		return nil, mapError(err)
	}
	if err := r.loadPublications(ctx, ex, []*model.Post{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresPostRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64, limit int) (_ []*model.Post, err error) {
	defer metrics.ObserveStoreOp(driverName, "list", time.Now(), &err)
	if limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT `+postColumns+`
  FROM posts
 WHERE owner_id=$1 AND status <> 'deleted'
 ORDER BY id DESC
 LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if err := r.loadPublications(ctx, ex, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresPostRepo) Update(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) (err error) {
	defer metrics.ObserveStoreOp(driverName, "update", time.Now(), &err)
	err = r.inTx(ctx, tx, func(ctx context.Context, ex executor) error {
		title, body, tags := contentColumns(p.Content)
		tag, err := ex.Exec(ctx, `
UPDATE posts
   SET topic=$5, title=$6, body=$7, tags=$8, status=$9, platforms=$10, failure_reason=$11, updated_at=$12,
       version=version+1
 WHERE id=$1 AND owner_id=$2 AND status=$3 AND version=$4`,
			p.ID, p.OwnerID, string(expected), p.Version, p.Topic, title, body, tags, string(p.Status), platformStrings(p.Platforms), p.FailureReason, p.UpdatedAt)
		if err != nil {
			return mapError(err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		if _, err := ex.Exec(ctx, `DELETE FROM post_publications WHERE post_id=$1`, p.ID); err != nil {
			return err
		}
		return r.writePublications(ctx, ex, p)
	})
	if err != nil {
		return err
	}
	p.Version++
	return nil
}

// inTx runs fn on the caller's transaction, or on a new one when tx is nil.
func (r *PostgresPostRepo) inTx(ctx context.Context, tx repository.Tx, fn func(ctx context.Context, ex executor) error) error {
	if tx != nil {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		return fn(ctx, ex)
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		return fn(ctx, ex)
	})
}

func (r *PostgresPostRepo) writePublications(ctx context.Context, ex executor, p *model.Post) error {
	for _, res := range p.PublicationResults {
		_, err := ex.Exec(ctx, `
INSERT INTO post_publications (post_id, platform, outcome, url, platform_post_id, error_reason, published_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, string(res.Platform), string(res.Outcome), res.URL, res.PlatformPostID, res.ErrorReason, res.PublishedAt)
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *PostgresPostRepo) loadPublications(ctx context.Context, ex executor, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	byID := make(map[string]*model.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	rows, err := ex.Query(ctx, `
SELECT post_id, platform, outcome, url, platform_post_id, error_reason, published_at
  FROM post_publications
 WHERE post_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			postID, platform, outcome string
			res                       model.PublicationResult
		)
		if err := rows.Scan(&postID, &platform, &outcome, &res.URL, &res.PlatformPostID, &res.ErrorReason, &res.PublishedAt); err != nil {
			return err
		}
		res.Platform, res.Outcome = model.Platform(platform), model.PublicationOutcome(outcome)
		p := byID[postID]
		if p.PublicationResults == nil {
			p.PublicationResults = make(map[model.Platform]model.PublicationResult)
		}
		p.PublicationResults[res.Platform] = res
	}
	return rows.Err()
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var (
		p           model.Post
		status      string
		title, body *string
		tags        []string
		platforms   []string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Topic, &title, &body, &tags, &status, &platforms, &p.FailureReason, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PostStatus(status)
	if title != nil && body != nil {
		p.Content = &model.Content{Title: *title, Body: *body, Tags: nilIfEmpty(tags)}
	}
	for _, s := range platforms {
		p.Platforms = append(p.Platforms, model.Platform(s))
	}
	return &p, nil
}

func contentColumns(c *model.Content) (title, body *string, tags []string) {
	if c == nil {
		return nil, nil, []string{}
	}
	tags = c.Tags
	if tags == nil {
		tags = []string{}
	}
	return &c.Title, &c.Body, tags
}

func platformStrings(ps []model.Platform) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, string(p))
	}
	return out
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
