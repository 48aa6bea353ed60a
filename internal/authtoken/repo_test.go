package authtoken

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-insights/internal/pagination"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenCols = []string{"id", "name", "orgs", "token", "created_at", "updated_at"}

func TestPostgresStore_FindByToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery("FROM auth_tokens WHERE token = \\$1").
		WithArgs("abc").
		WillReturnRows(pgxmock.NewRows(tokenCols).AddRow(id.String(), "crm", []int64{1, 5}, "abc", now, now))

	got, err := NewPostgresStore(mock).FindByToken(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []int64{1, 5}, got.Orgs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_NoRowsIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("WITH old AS").
		WithArgs(pgxmock.AnyArg(), "next").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("DELETE FROM auth_tokens WHERE id = \\$1").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresStore(mock)
	_, err = s.Rotate(context.Background(), uuid.New(), "next")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RotateReturnsPrevious(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("WITH old AS").
		WithArgs(id, "next").
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("prev"))

	prev, err := NewPostgresStore(mock).Rotate(context.Background(), id, "next")
	require.NoError(t, err)
	assert.Equal(t, "prev", prev)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCountsThenPages(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT count").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(pgxmock.AnyArg(), int64(2)).
		WillReturnRows(pgxmock.NewRows(tokenCols).AddRow(uuid.NewString(), "c", []int64{1}, "t", now, now))

	limit := 2
	items, total, err := NewPostgresStore(mock).List(context.Background(), pagination.Page{Page: 2, Limit: &limit, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteManyReturnsTokens(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("DELETE FROM auth_tokens WHERE id = ANY").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("a").AddRow("b"))

	toks, err := NewPostgresStore(mock).DeleteMany(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, toks)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DriverErrorsPassThrough(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("conn reset")
	mock.ExpectQuery("SELECT count").WillReturnError(boom)
	_, _, err = NewPostgresStore(mock).List(context.Background(), pagination.Page{Page: 1})
	assert.ErrorIs(t, err, boom)
}

func TestService_DeleteManyUsesBulkCapability(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("DELETE FROM auth_tokens WHERE id = ANY").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"token"}).AddRow("a"))

	svc := NewService(NewPostgresStore(mock), nil, 0, nil)
	n, err := svc.DeleteMany(context.Background(), []uuid.UUID{uuid.New(), uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
