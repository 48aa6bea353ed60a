package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepo appends events to audit_events. The table is INSERT-only.
type PostgresRepo struct {
	db execer
}

func NewPostgresRepo(db execer) *PostgresRepo { return &PostgresRepo{db: db} }

const insertEventSQL = `
INSERT INTO audit_events (id, org_id, type, actor_scope, ip_address, target_id, message, metadata, created_at)
VALUES ($1, NULLIF($2, 0), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, '')::jsonb, $9)`

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.Exec(ctx, insertEventSQL,
		e.ID, e.OrgID, string(e.Type), e.ActorScope, e.IPAddress, e.TargetID, e.Message, e.Metadata, e.CreatedAt)
	return err
}
