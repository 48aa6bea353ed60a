package authtoken

import (
	"context"
	"errors"
	"time"

	"call-insights/internal/pagination"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("authtoken: not found")

// Store is the persistence contract for auth tokens.
type Store interface {
	Create(ctx context.Context, t AuthToken) (AuthToken, error)
	List(ctx context.Context, page pagination.Page) ([]AuthToken, int, error)
	Get(ctx context.Context, id uuid.UUID) (AuthToken, error)
	// Delete removes the row and returns the token it carried.
	Delete(ctx context.Context, id uuid.UUID) (string, error)
	// Rotate replaces the token and returns the previous value.
	Rotate(ctx context.Context, id uuid.UUID, token string) (string, error)
	FindByToken(ctx context.Context, token string) (AuthToken, error)
	// Bulk reports the optional bulk capability; ok is false when the store has none.
	Bulk() (ops BulkOps, ok bool)
}

// BulkOps groups multi-row operations a store may support natively.
type BulkOps interface {
	// DeleteMany removes the rows that exist and returns their tokens.
	DeleteMany(ctx context.Context, ids []uuid.UUID) ([]string, error)
}

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore { return &PostgresStore{db: db} }

const tokenColumns = `id, name, orgs, token, created_at, updated_at`

func scanToken(row pgx.Row) (AuthToken, error) {
	var t AuthToken
	err := row.Scan(&t.ID, &t.Name, &t.Orgs, &t.Token, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthToken{}, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) Create(ctx context.Context, t AuthToken) (AuthToken, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO auth_tokens (id, name, orgs, token, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
RETURNING `+tokenColumns, t.ID, t.Name, t.Orgs, t.Token, now)
	return scanToken(row)
}

func (s *PostgresStore) List(ctx context.Context, page pagination.Page) ([]AuthToken, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM auth_tokens`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, `
SELECT `+tokenColumns+`
FROM auth_tokens
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]AuthToken, 0)
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (AuthToken, error) {
	return scanToken(s.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE id = $1`, id))
}

func (s *PostgresStore) FindByToken(ctx context.Context, token string) (AuthToken, error) {
	return scanToken(s.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM auth_tokens WHERE token = $1`, token))
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) (string, error) {
	var token string
	err := s.db.QueryRow(ctx, `DELETE FROM auth_tokens WHERE id = $1 RETURNING token`, id).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return token, err
}

func (s *PostgresStore) Bulk() (BulkOps, bool) { return s, true }

func (s *PostgresStore) DeleteMany(ctx context.Context, ids []uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, `DELETE FROM auth_tokens WHERE id = ANY($1) RETURNING token`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *PostgresStore) Rotate(ctx context.Context, id uuid.UUID, token string) (string, error) {
	var previous string
	err := s.db.QueryRow(ctx, `
WITH old AS (
	SELECT id, token FROM auth_tokens WHERE id = $1 FOR UPDATE
)
UPDATE auth_tokens t
SET token = $2, updated_at = now()
FROM old
WHERE t.id = old.id
RETURNING old.token`, id, token).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return previous, err
}
