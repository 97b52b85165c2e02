package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
	"telegram-ai-autoposter/internal/domain/ports/repository"
	"telegram-ai-autoposter/internal/infra/metrics"
)

var _ repository.PostRepository = (*PostRepo)(nil)

const driverName = "sqlite"

// PostRepo keeps each post in one row; content, platforms and results are JSON text.
type PostRepo struct {
	db *sqlx.DB
}

func NewPostRepo(db *sqlx.DB) *PostRepo { return &PostRepo{db: db} }

type postRow struct {
	ID            string         `db:"id"`
	OwnerID       int64          `db:"owner_id"`
	Topic         string         `db:"topic"`
	Content       sql.NullString `db:"content"`
	Status        string         `db:"status"`
	Platforms     string         `db:"platforms"`
	Results       string         `db:"results"`
	FailureReason string         `db:"failure_reason"`
	Version       int64          `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Expected      string         `db:"expected"`
}

const postColumns = `id, owner_id, topic, content, status, platforms, results, failure_reason, version, created_at, updated_at`

func toRow(p *model.Post) (*postRow, error) {
	r := &postRow{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Topic:         p.Topic,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.Content != nil {
		b, err := json.Marshal(p.Content)
		if err != nil {
			return nil, err
		}
		r.Content = sql.NullString{String: string(b), Valid: true}
	}
	platforms := p.Platforms
	if platforms == nil {
		platforms = []model.Platform{}
	}
	b, err := json.Marshal(platforms)
	if err != nil {
		return nil, err
	}
	r.Platforms = string(b)
	results := p.PublicationResults
	if results == nil {
		results = map[model.Platform]model.PublicationResult{}
	}
	if b, err = json.Marshal(results); err != nil {
		return nil, err
	}
	r.Results = string(b)
	return r, nil
}

func (r *postRow) toPost() (*model.Post, error) {
	p := &model.Post{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Topic:         r.Topic,
		Status:        model.PostStatus(r.Status),
		FailureReason: r.FailureReason,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Content.Valid {
		var c model.Content
		if err := json.Unmarshal([]byte(r.Content.String), &c); err != nil {
			return nil, err
		}
		p.Content = &c
	}
	if err := json.Unmarshal([]byte(r.Platforms), &p.Platforms); err != nil {
		return nil, err
	}
	if len(p.Platforms) == 0 {
		p.Platforms = nil
	}
	if err := json.Unmarshal([]byte(r.Results), &p.PublicationResults); err != nil {
		return nil, err
	}
	if len(p.PublicationResults) == 0 {
		p.PublicationResults = nil
	}
	return p, nil
}

func (s *PostRepo) Create(ctx context.Context, tx repository.Tx, p *model.Post) (err error) {
	defer metrics.ObserveStoreOp(driverName, "create", time.Now(), &err)
	ex, err := getExecutor(s.db, tx)
	if err != nil {
		return err
	}
	row, err := toRow(p)
	if err != nil {
		return err
	}
	_, err = ex.NamedExecContext(ctx, `insert into posts (`+postColumns+`)
		values (:id, :owner_id, :topic, :content, :status, :platforms, :results, :failure_reason, :version, :created_at, :updated_at)`, row)
	return mapError(err)
}

func (s *PostRepo) GetByID(ctx context.Context, tx repository.Tx, ownerID int64, id string) (_ *model.Post, err error) {
	defer metrics.ObserveStoreOp(driverName, "get", time.Now(), &err)
	ex, err := getExecutor(s.db, tx)
	if err != nil {
		return nil, err
	}
	var row postRow
	err = ex.GetContext(ctx, &row, `select `+postColumns+` from posts where id = ? and owner_id = ? and status <> 'deleted'`, id, ownerID)
	if err != nil {
		return nil, mapError(err)
	}
	return row.toPost()
}

func (s *PostRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID int64, limit int) (_ []*model.Post, err error) {
	defer metrics.ObserveStoreOp(driverName, "list", time.Now(), &err)
	if limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	ex, err := getExecutor(s.db, tx)
	if err != nil {
		return nil, err
	}
	var rows []postRow
	err = ex.SelectContext(ctx, &rows, `select `+postColumns+` from posts
		where owner_id = ? and status <> 'deleted' order by id desc limit ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Post, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toPost()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *PostRepo) Update(ctx context.Context, tx repository.Tx, p *model.Post, expected model.PostStatus) (err error) {
	defer metrics.ObserveStoreOp(driverName, "update", time.Now(), &err)
	ex, err := getExecutor(s.db, tx)
	if err != nil {
		return err
	}
	row, err := toRow(p)
	if err != nil {
		return err
	}
	row.Expected = string(expected)
	res, err := ex.NamedExecContext(ctx, `update posts
		set topic = :topic, content = :content, status = :status, platforms = :platforms,
		    results = :results, failure_reason = :failure_reason, updated_at = :updated_at,
		    version = version + 1
		where id = :id and owner_id = :owner_id and status = :expected and version = :version`, row)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConflict
	}
	p.Version++
	return nil
}
