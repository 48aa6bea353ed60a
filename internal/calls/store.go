package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"call-insights/internal/clients"
	"call-insights/internal/pagination"
	"call-insights/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrAlreadyAnalyzed = errors.New("calls: analysis already uploaded")
	// ErrDuplicate is returned by in-process stores for a unique key clash.
	ErrDuplicate = errors.New("calls: duplicate")
)

// Store is the persistence contract for calls.
type Store interface {
	Create(ctx context.Context, c Call) (Call, error)
	List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Call, int, error)
	Get(ctx context.Context, orgID int64, id uuid.UUID) (Call, error)
	// Aggregate runs fn as one unit of work: everything done through tx commits
	// together when fn returns nil and is rolled back otherwise.
	Aggregate(ctx context.Context, fn AggregateFunc) error
}

type AggregateFunc func(ctx context.Context, tx AnalysisTx) error

// AnalysisTx is the write surface available while folding one analysis into the store.
type AnalysisTx interface {
	// LockByCallID loads the call by its external id and holds it until the unit ends.
	LockByCallID(ctx context.Context, callID int64) (Call, error)
	// ApplyAnalysis writes the derived fields and marks the call analyzed.
	ApplyAnalysis(ctx context.Context, id uuid.UUID, a Analysis, at time.Time) error
	InsertDetails(ctx context.Context, id uuid.UUID, d Details) error
	Clients() clients.Writer
}

// DB is what the Postgres store needs from a pool.
type DB interface {
	clients.Querier
	utils.TxBeginner
}

type PostgresStore struct {
	db      DB
	clients *clients.PostgresStore
	timeout time.Duration
}

// NewPostgresStore bounds every Aggregate unit by timeout; zero leaves it unbounded.
func NewPostgresStore(db DB, timeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, clients: clients.NewPostgresStore(db), timeout: timeout}
}

const callColumns = `id, call_id, client_phone, datetime, direction, duration, manager_name, manager_phone, org_id,
	essence, initiator_of_topics, identified_problem, conversation_driver, problem_resolution_status,
	next_contact_date, client_interest, manager_task, transcription_key, analyzed_at, created_at, updated_at`

func scanCall(row pgx.Row) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID, &c.CallID, &c.ClientPhone, &c.Datetime, &c.Direction, &c.Duration,
		&c.ManagerName, &c.ManagerPhone, &c.OrgID,
		&c.Essence, &c.InitiatorOfTopics, &c.IdentifiedProblem, &c.ConversationDriver,
		&c.ProblemResolutionStatus, &c.NextContactDate, &c.ClientInterest, &c.ManagerTask,
		&c.TranscriptionKey, &c.AnalyzedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) Create(ctx context.Context, c Call) (Call, error) {
	now := time.Now().UTC()
	return scanCall(s.db.QueryRow(ctx, `
INSERT INTO calls (id, call_id, client_phone, datetime, direction, duration, manager_name, manager_phone,
	org_id, transcription_key, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
RETURNING `+callColumns,
		c.ID, c.CallID, c.ClientPhone, c.Datetime, c.Direction, c.Duration, c.ManagerName, c.ManagerPhone,
		c.OrgID, c.TranscriptionKey, now))
}

func (s Sort) direction() string {
	if strings.EqualFold(s.Datetime, "asc") {
		return "ASC"
	}
	return "DESC"
}

func (s *PostgresStore) List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Call, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM calls WHERE org_id = $1`, orgID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT %s
FROM calls
WHERE org_id = $1
ORDER BY datetime %s, id
LIMIT $2 OFFSET $3`, callColumns, sort.direction()), orgID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := s.attachDetails(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) Get(ctx context.Context, orgID int64, id uuid.UUID) (Call, error) {
	return scanCall(s.db.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE org_id = $1 AND id = $2`, orgID, id))
}

// attachDetails loads the child records of the analyzed calls in list.
func (s *PostgresStore) attachDetails(ctx context.Context, list []Call) error {
	idx := map[uuid.UUID]int{}
	ids := make([]uuid.UUID, 0, len(list))
	for i := range list {
		if list[i].AnalyzedAt != nil {
			idx[list[i].ID] = i
			ids = append(ids, list[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := s.db.Query(ctx, `
SELECT call_id, name, sex, age, job_title, place_of_work, having_children, place_of_residence, hobbies,
	marital_status, sphere_of_activity, age_assessment_reason,
	relative_name, relative_age, relative_place_of_work, relative_degree_of_kinship
FROM call_client_info WHERE call_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uuid.UUID
		var ci ClientInfo
		if err := rows.Scan(&id, &ci.Name, &ci.Sex, &ci.Age, &ci.JobTitle, &ci.PlaceOfWork, &ci.HavingChildren,
			&ci.PlaceOfResidence, &ci.Hobbies, &ci.MaritalStatus, &ci.SphereOfActivity, &ci.AgeAssessmentReason,
			&ci.RelativeInfo.Name, &ci.RelativeInfo.Age, &ci.RelativeInfo.PlaceOfWork, &ci.RelativeInfo.DegreeOfKinship); err != nil {
			rows.Close()
			return err
		}
		list[idx[id]].ClientInfo = &ci
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(ctx, `SELECT call_id, pain, interests, needs FROM call_client_insights_info WHERE call_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id uuid.UUID
		var in InsightsInfo
		if err := rows.Scan(&id, &in.Pain, &in.Interests, &in.Needs); err != nil {
			rows.Close()
			return err
		}
		list[idx[id]].ClientInsightsInfo = &in
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(ctx, `
SELECT call_id, recommendations, initial_rating_score, initial_rating_reason,
	final_rating_score, final_rating_reason, comparison
FROM call_satisfaction_info WHERE call_id = ANY($1)`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var si SatisfactionInfo
		if err := rows.Scan(&id, &si.Recommendations, &si.InitialRating.Score, &si.InitialRating.Reason,
			&si.FinalRating.Score, &si.FinalRating.Reason, &si.Comparison); err != nil {
			return err
		}
		list[idx[id]].SatisfactionInfo = &si
	}
	return rows.Err()
}

func (s *PostgresStore) Aggregate(ctx context.Context, fn AggregateFunc) error {
	return utils.WithTxTimeout(ctx, s.db, s.timeout, pgx.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgAnalysisTx{tx: tx, clients: s.clients.Writer(tx)})
	})
}

type pgAnalysisTx struct {
	tx      pgx.Tx
	clients clients.Writer
}

func (t *pgAnalysisTx) Clients() clients.Writer { return t.clients }

func (t *pgAnalysisTx) LockByCallID(ctx context.Context, callID int64) (Call, error) {
	return scanCall(t.tx.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE call_id = $1 FOR UPDATE`, callID))
}

func (t *pgAnalysisTx) ApplyAnalysis(ctx context.Context, id uuid.UUID, a Analysis, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE calls
SET essence = $2, initiator_of_topics = $3, identified_problem = $4, conversation_driver = $5,
	problem_resolution_status = $6, next_contact_date = $7, client_interest = $8, manager_task = $9,
	analyzed_at = $10, updated_at = $10
WHERE id = $1 AND analyzed_at IS NULL`,
		id, a.Essence, a.InitiatorOfTopics, a.IdentifiedProblem, a.ConversationDriver,
		a.ProblemResolutionStatus, a.NextContactDate, a.ClientInterest, a.ManagerTask, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyAnalyzed
	}
	return nil
}

func (t *pgAnalysisTx) InsertDetails(ctx context.Context, id uuid.UUID, d Details) error {
	ci := d.ClientInfo
	if _, err := t.tx.Exec(ctx, `
INSERT INTO call_client_info (call_id, name, sex, age, job_title, place_of_work, having_children,
	place_of_residence, hobbies, marital_status, sphere_of_activity, age_assessment_reason,
	relative_name, relative_age, relative_place_of_work, relative_degree_of_kinship)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, ci.Name, ci.Sex, ci.Age, ci.JobTitle, ci.PlaceOfWork, ci.HavingChildren,
		ci.PlaceOfResidence, ci.Hobbies, ci.MaritalStatus, ci.SphereOfActivity, ci.AgeAssessmentReason,
		ci.RelativeInfo.Name, ci.RelativeInfo.Age, ci.RelativeInfo.PlaceOfWork, ci.RelativeInfo.DegreeOfKinship); err != nil {
		return fmt.Errorf("insert client info: %w", err)
	}

	in := d.Insights
	if _, err := t.tx.Exec(ctx, `
INSERT INTO call_client_insights_info (call_id, pain, interests, needs)
VALUES ($1, $2::jsonb, $3::jsonb, $4::jsonb)`, id, in.Pain, in.Interests, in.Needs); err != nil {
		return fmt.Errorf("insert insights info: %w", err)
	}

	si := d.Satisfaction
	if _, err := t.tx.Exec(ctx, `
INSERT INTO call_satisfaction_info (call_id, recommendations, initial_rating_score, initial_rating_reason,
	final_rating_score, final_rating_reason, comparison)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, si.Recommendations, si.InitialRating.Score, si.InitialRating.Reason,
		si.FinalRating.Score, si.FinalRating.Reason, si.Comparison); err != nil {
		return fmt.Errorf("insert satisfaction info: %w", err)
	}
	return nil
}
