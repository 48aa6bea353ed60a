package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"call-insights/internal/pagination"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound         = errors.New("clients: not found")
	ErrUnknownAttribute = errors.New("clients: unknown attribute")
)

// Sort orders a client listing. Empty means newest first.
type Sort struct {
	CreatedAt string `json:"createdAt,omitempty"`
}

func (s Sort) direction() string {
	if strings.EqualFold(s.CreatedAt, "asc") {
		return "ASC"
	}
	return "DESC"
}

// Reader serves the client listing endpoints.
type Reader interface {
	List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Client, int, error)
	Get(ctx context.Context, orgID int64, id uuid.UUID) (Client, error)
}

// Writer is the aggregation-side capability set. Every call runs inside the
// caller's unit of work and becomes visible only when it commits.
type Writer interface {
	// ResolveOrCreate returns the client for (orgID, phone), creating it when absent,
	// and keeps it locked for the rest of the unit of work.
	ResolveOrCreate(ctx context.Context, orgID int64, phone string) (uuid.UUID, error)
	// MergeIncrement adds one to the counter for value in the attribute's frequency map
	// as a single atomic read-modify-write on the client row.
	MergeIncrement(ctx context.Context, clientID uuid.UUID, attr Attribute, value string) error
	InsertRelative(ctx context.Context, clientID uuid.UUID, r Relative) error
}

// Querier is satisfied by pgx.Tx, *pgxpool.Pool and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore { return &PostgresStore{db: db} }

// Writer binds the aggregation capabilities to tx.
func (s *PostgresStore) Writer(tx Querier) Writer { return &pgWriter{q: tx} }

const clientColumns = `id, phone_number, org_id, age, name, sex, hobbies, job_title, marital_status,
	place_of_residence, place_of_work, having_children, sphere_of_activity, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID, &c.PhoneNumber, &c.OrgID,
		&c.Age, &c.Name, &c.Sex, &c.Hobbies, &c.JobTitle, &c.MaritalStatus,
		&c.PlaceOfResidence, &c.PlaceOfWork, &c.HavingChildren, &c.SphereOfActivity,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Client, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM clients WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM clients
WHERE org_id = $1
ORDER BY created_at %s, id
LIMIT $2 OFFSET $3`, clientColumns, sort.direction()), orgID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachRelatives(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) Get(ctx context.Context, orgID int64, id uuid.UUID) (Client, error) {
	c, err := scanClient(s.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE org_id = $1 AND id = $2`, orgID, id))
	if err != nil {
		return Client{}, err
	}
	list := []Client{c}
	if err := s.attachRelatives(ctx, list); err != nil {
		return Client{}, err
	}
	return list[0], nil
}

func (s *PostgresStore) attachRelatives(ctx context.Context, list []Client) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(list))
	idx := make(map[uuid.UUID]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		idx[list[i].ID] = i
		list[i].Relatives = []Relative{}
	}

	rows, err := s.db.Query(ctx, `
SELECT id, client_id, name, age, place_of_work, degree_of_kinship, created_at, updated_at
FROM client_relatives
WHERE client_id = ANY($1)
ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r Relative
		if err := rows.Scan(&r.ID, &r.ClientID, &r.Name, &r.Age, &r.PlaceOfWork, &r.DegreeOfKinship, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return err
		}
		if i, ok := idx[r.ClientID]; ok {
			list[i].Relatives = append(list[i].Relatives, r)
		}
	}
	return rows.Err()
}

type pgWriter struct {
	q Querier
}

func (w *pgWriter) ResolveOrCreate(ctx context.Context, orgID int64, phone string) (uuid.UUID, error) {
	if _, err := w.q.Exec(ctx, `
INSERT INTO clients (id, org_id, phone_number, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (org_id, phone_number) DO NOTHING`, uuid.New(), orgID, phone); err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err := w.q.QueryRow(ctx,
		`SELECT id FROM clients WHERE org_id = $1 AND phone_number = $2 FOR UPDATE`, orgID, phone).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// mergeIncrementSQL folds the increment into one UPDATE so concurrent writers never lose a count.
func mergeIncrementSQL(column string) string {
	return fmt.Sprintf(`
UPDATE clients
SET %[1]s = COALESCE(%[1]s, '{}'::jsonb) || jsonb_build_object($2::text, COALESCE((%[1]s ->> $2::text)::bigint, 0) + 1),
	updated_at = now()
WHERE id = $1`, column)
}

func (w *pgWriter) MergeIncrement(ctx context.Context, clientID uuid.UUID, attr Attribute, value string) error {
	column, ok := attr.Column()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	tag, err := w.q.Exec(ctx, mergeIncrementSQL(column), clientID, value)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (w *pgWriter) InsertRelative(ctx context.Context, clientID uuid.UUID, r Relative) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	_, err := w.q.Exec(ctx, `
INSERT INTO client_relatives (id, client_id, name, age, place_of_work, degree_of_kinship, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		r.ID, clientID, r.Name, r.Age, r.PlaceOfWork, r.DegreeOfKinship)
	return err
}
