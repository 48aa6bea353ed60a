package calls

import (
	"context"
	"testing"
	"time"

	"call-insights/internal/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callCols = []string{
	"id", "call_id", "client_phone", "datetime", "direction", "duration", "manager_name", "manager_phone", "org_id",
	"essence", "initiator_of_topics", "identified_problem", "conversation_driver", "problem_resolution_status",
	"next_contact_date", "client_interest", "manager_task", "transcription_key", "analyzed_at", "created_at", "updated_at",
}

func callRow(id uuid.UUID, callID int64, analyzedAt *time.Time) *pgxmock.Rows {
	now := time.Now().UTC()
	var none *string
	return pgxmock.NewRows(callCols).AddRow(
		id.String(), callID, testPhone, now, "incoming", 60, none, none, int64(1),
		none, none, none, none, none, none, none, none, none, analyzedAt, now, now,
	)
}

func expectUntilMerges(mock pgxmock.PgxPoolIface, callID int64, clientID uuid.UUID) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM calls WHERE call_id = \$1 FOR UPDATE`).
		WithArgs(callID).
		WillReturnRows(callRow(uuid.New(), callID, nil))
	mock.ExpectExec(`UPDATE calls\s+SET essence`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO call_client_info`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO call_client_insights_info`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO call_satisfaction_info`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO clients`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT id FROM clients .* FOR UPDATE`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(clientID.String()))
}

func TestPostgresAggregate_CommitsWholeUnit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectUntilMerges(mock, 42, uuid.New())
	for _, col := range []string{"age", "name", "sex", "hobbies", "job_title", "marital_status",
		"place_of_residence", "place_of_work", "having_children", "sphere_of_activity"} {
		mock.ExpectExec(`UPDATE clients\s+SET ` + col + ` = COALESCE`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	}
	mock.ExpectExec(`INSERT INTO client_relatives`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rel := unknownRelative()
	rel.Age = "40"
	svc := NewService(NewPostgresStore(mock, time.Second), nil, nil, nil)
	got, err := svc.UploadInfo(context.Background(), analysisFor(42, "male", rel))
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzed, got.Status())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAggregate_MergeFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectUntilMerges(mock, 42, uuid.New())
	mock.ExpectExec(`UPDATE clients\s+SET age`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE clients\s+SET name`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE clients\s+SET sex`).WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	svc := NewService(NewPostgresStore(mock, time.Second), nil, nil, nil)
	_, err = svc.UploadInfo(context.Background(), analysisFor(42, "male", unknownRelative()))
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAggregate_AnalyzedCallIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	at := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(8)).WillReturnRows(callRow(uuid.New(), 8, &at))
	mock.ExpectRollback()

	svc := NewService(NewPostgresStore(mock, time.Second), nil, nil, nil)
	_, err = svc.UploadInfo(context.Background(), analysisFor(8, "male", unknownRelative()))
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAggregate_TimeoutIsUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(callRow(uuid.New(), 8, nil)).WillDelayFor(time.Second)
	mock.ExpectRollback()

	svc := NewService(NewPostgresStore(mock, 20*time.Millisecond), nil, nil, nil)
	_, err = svc.UploadInfo(context.Background(), analysisFor(8, "male", unknownRelative()))
	assert.True(t, apperr.IsKind(err, apperr.KindUnavailable), "got %v", err)
}
