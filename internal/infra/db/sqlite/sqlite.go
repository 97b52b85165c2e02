package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/ports/repository"
)

const schema = `
create table if not exists posts(
	id             text    not null primary key,
	owner_id       integer not null,
	topic          text    not null,
	content        text    null,
	status         text    not null,
	platforms      text    not null default '[]',
	results        text    not null default '{}',
	failure_reason text    not null default '',
	version        integer not null default 0,
	created_at     DATETIME not null,
	updated_at     DATETIME not null
);
create index if not exists idx_posts_owner on posts(owner_id, id desc);
`

// Open connects to a SQLite database file and applies the schema.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps CAS updates serialized.
	db.SetMaxOpenConns(1)
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	// Files created before posts carried a version.
	var n int
	if err := db.GetContext(ctx, &n, `select count(*) from pragma_table_info('posts') where name = 'version'`); err != nil {
		return fmt.Errorf("inspecting posts: %w", err)
	}
	if n == 0 {
		if _, err := db.ExecContext(ctx, `alter table posts add column version integer not null default 0`); err != nil {
			return fmt.Errorf("adding version column: %w", err)
		}
	}
	return nil
}

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager hands repositories a *sqlx.Tx. Only the access mode of the
// options is honoured.
type TxManager struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *TxManager { return &TxManager{db: db} }

func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: txOpt.AccessMode == pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

type executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func getExecutor(db *sqlx.DB, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case *sqlx.Tx:
		return v, nil
	case nil:
		if db != nil {
			return db, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidArgument
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) && (sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		return domain.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %w", domain.ErrOperationFailed, err)
}
