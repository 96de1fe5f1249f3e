package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"clockreport.service/internal/core/model"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventColumns = []string{"id", "user_ref", "meta_key", "meta_value"}

func newTestRepo(t *testing.T) (*ClockEventRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewClockEventRepository(db, StoreOptions{
		Keys:        model.NewMetaKeys(model.DefaultNamespace),
		EventType:   "etimeclockwp_clock",
		EventStatus: "publish",
	})
	return repo, mock
}

func TestClockEventRepository_FindOpenEvents(t *testing.T) {
	repo, mock := newTestRepo(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow(int64(12), "3", "etimeclockwp-in_07", "1717243200").
		AddRow(int64(9), "4", "etimeclockwp-in_01", "1717200000")

	mock.ExpectQuery(regexp.QuoteMeta("AND NOT EXISTS (")).
		WithArgs("etimeclockwp_clock", "publish", `etimeclockwp-in\_%`, `etimeclockwp-out\_%`, int64(1717000000), int64(0), 20).
		WillReturnRows(rows)

	events, err := repo.FindOpenEvents(context.Background(), model.Window{From: 1717000000}, 20)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(12), events[0].ID)
	assert.Equal(t, "3", events[0].UserRef)
	in, ok := events[0].ClockIn()
	assert.True(t, ok)
	assert.Equal(t, int64(1717243200), in.Timestamp)
	assert.Equal(t, "07", in.Suffix)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_FindOpenEvents_InvalidWindow(t *testing.T) {
	repo, mock := newTestRepo(t)

	_, err := repo.FindOpenEvents(context.Background(), model.Window{From: 10, Until: 5}, 30)
	assert.ErrorIs(t, err, model.ErrInvalidWindow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_FindOpenEvents_QueryError(t *testing.T) {
	repo, mock := newTestRepo(t)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("AND NOT EXISTS (")).WillReturnError(dbErr)

	_, err := repo.FindOpenEvents(context.Background(), model.Window{From: 1, Until: 100}, 30)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_FindClosedEvents(t *testing.T) {
	repo, mock := newTestRepo(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow(int64(5), "7", "etimeclockwp-out_05", "1700000000|extra").
		AddRow(int64(8), "8", "etimeclockwp-out_09", "notanumber")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.ts DESC NULLS LAST")).
		WithArgs("etimeclockwp_clock", "publish", `etimeclockwp-out\_%`, 10).
		WillReturnRows(rows)

	events, err := repo.FindClosedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	out, ok := events[0].ClockOut()
	require.True(t, ok)
	assert.True(t, out.Valid)
	assert.Equal(t, int64(1700000000), out.Timestamp)
	assert.Equal(t, "extra", out.Extra)

	out, ok = events[1].ClockOut()
	require.True(t, ok)
	assert.False(t, out.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_FindClosedEvents_NullValue(t *testing.T) {
	repo, mock := newTestRepo(t)

	rows := sqlmock.NewRows(eventColumns).
		AddRow(int64(5), "7", "etimeclockwp-out_05", "1700000000|extra").
		AddRow(int64(8), "8", "etimeclockwp-out_09", nil)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.ts DESC NULLS LAST")).
		WithArgs("etimeclockwp_clock", "publish", `etimeclockwp-out\_%`, 10).
		WillReturnRows(rows)

	events, err := repo.FindClosedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	out, ok := events[1].ClockOut()
	require.True(t, ok)
	assert.False(t, out.Valid)
	assert.Equal(t, "etimeclockwp-out_09", out.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_FindClosedEvents_ScanError(t *testing.T) {
	repo, mock := newTestRepo(t)

	rows := sqlmock.NewRows(eventColumns).AddRow("not-an-id", "7", "etimeclockwp-out_05", "1")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY c.ts DESC NULLS LAST")).WillReturnRows(rows)

	_, err := repo.FindClosedEvents(context.Background(), 10)
	assert.Error(t, err)
}

func TestClockEventRepository_GetAttribute(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM clock_event_meta")).
		WithArgs(int64(3), "etimeclockwp_name").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("Jane Doe"))

	value, ok, err := repo.GetAttribute(context.Background(), 3, "etimeclockwp_name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClockEventRepository_GetAttribute_Missing(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM clock_event_meta")).
		WithArgs(int64(4), "etimeclockwp_name").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))

	value, ok, err := repo.GetAttribute(context.Background(), 4, "etimeclockwp_name")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestClockEventRepository_GetAttribute_Null(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM clock_event_meta")).
		WithArgs(int64(5), "etimeclockwp_name").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow(nil))

	value, ok, err := repo.GetAttribute(context.Background(), 5, "etimeclockwp_name")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, `etimeclockwp-in\_%`, likePrefix("etimeclockwp-in_"))
	assert.Equal(t, `a\%b\\c%`, likePrefix(`a%b\c`))
}
