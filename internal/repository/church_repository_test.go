package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/churchfinder/internal/model"
)

var churchCols = []string{"id", "source_ref", "name", "denomination", "street", "city", "state",
	"postal_code", "country", "latitude", "longitude", "phone", "email", "website", "description",
	"founded_year", "average_attendance", "schedule", "languages", "image_url", "verified",
	"created_at", "updated_at"}

func churchRow(id int64) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(churchCols).AddRow(id, "osm-42", "St. Mark", "Lutheran", "1 Main St",
		"Springfield", "IL", "62701", "US", 39.8, -89.6, "", "", "", "Historic parish",
		int64(1901), nil, []byte(`{"sunday":["10:00 AM"]}`), []byte(`["english","german"]`), "",
		int64(0), now, now)
}

func newMock(t *testing.T) (*ChurchRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewChurchRepo(db), mock
}

func TestGetByIDReturnsRecord(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM churches WHERE id = ?")).WithArgs(5).WillReturnRows(churchRow(5))

	c, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), c.ID)
	require.NotNil(t, c.SourceRef)
	assert.Equal(t, "osm-42", *c.SourceRef)
	require.NotNil(t, c.FoundedYear)
	assert.Equal(t, uint16(1901), *c.FoundedYear)
	assert.Nil(t, c.AverageAttendance)
	assert.Equal(t, model.Languages{"english", "german"}, c.Languages)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM churches WHERE id = ?")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows(churchCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrChurchNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateReloadsRow(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO churches SET source_ref = ?, verified = ?, name = ?")).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM churches WHERE id = ?")).WithArgs(5).WillReturnRows(churchRow(5))

	c := &model.Church{Name: "St. Mark", Latitude: 39.8, Longitude: -89.6}
	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, uint64(5), c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateSourceRef(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO churches").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.Church{Name: "x"})
	assert.ErrorIs(t, err, ErrSourceRefExists)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateMissingChurch(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE churches SET name = ?")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &model.Church{ID: 77, Name: "x"})
	assert.ErrorIs(t, err, ErrChurchNotFound)
}

func TestSetVerified(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE churches SET verified = ? WHERE id = ?")).
		WithArgs(true, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetVerified(context.Background(), 3, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBySourceRef(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)")).
		WillReturnResult(sqlmock.NewResult(12, 2))

	ref := "osm-1"
	id, err := repo.UpsertBySourceRef(context.Background(), &model.Church{SourceRef: &ref, Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), id)

	_, err = repo.UpsertBySourceRef(context.Background(), &model.Church{Name: "x"})
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT 1 FROM churches").WithArgs(1).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM churches").WithArgs(2).WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectQuery("SELECT 1 FROM churches").WithArgs(3).WillReturnError(errors.New("boom"))

	ok, err := repo.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Exists(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = repo.Exists(context.Background(), 3)
	assert.Error(t, err)
}

func TestListAfter(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id > ? ORDER BY id LIMIT ?")).WithArgs(0, 100).WillReturnRows(churchRow(1))

	got, err := repo.ListAfter(context.Background(), 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "St. Mark", got[0].Name)
}
