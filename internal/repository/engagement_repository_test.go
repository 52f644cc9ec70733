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

var (
	dupErr         = &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	missingErr     = fkErr("favorites", "church_id", "churches")
	missingUserErr = fkErr("check_ins", "user_id", "users")
)

// fkErr mimics the server's ER_NO_REFERENCED_ROW_2 report.
func fkErr(child, column, parent string) *mysql.MySQLError {
	return &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails " +
		"(`churchfinder`.`" + child + "`, CONSTRAINT `fk` FOREIGN KEY (`" + column + "`) REFERENCES `" + parent + "` (`id`))"}
}

func TestFavoriteAdd(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO favorites (user_id, church_id) VALUES (?, ?)")).
		WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(10, 1))
	mock.ExpectQuery("SELECT created_at FROM favorites").WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	f, err := NewFavoriteRepo(db).Add(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.Favorite{ID: 10, UserID: 1, ChurchID: 2, CreatedAt: now}, *f)
}

func TestFavoriteAddDuplicateIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO favorites").WillReturnError(dupErr)

	_, err = NewFavoriteRepo(db).Add(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrAlreadyFavorited)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFavoriteAddUnknownChurch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO favorites").WillReturnError(missingErr)

	_, err = NewFavoriteRepo(db).Add(context.Background(), 1, 999)
	assert.ErrorIs(t, err, ErrChurchNotFound)
}

func TestInsertUnknownUserIsNotChurchNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO favorites").WillReturnError(missingUserErr)
	mock.ExpectExec("INSERT INTO check_ins").WillReturnError(missingUserErr)
	mock.ExpectExec("INSERT INTO church_claims").WillReturnError(missingUserErr)

	_, err = NewFavoriteRepo(db).Add(context.Background(), 404, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NotErrorIs(t, err, ErrChurchNotFound)

	_, err = NewCheckInRepo(db).Create(context.Background(), 404, 1, time.Now())
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = NewClaimRepo(db).Create(context.Background(), &model.ChurchClaim{ChurchID: 1, UserID: 404})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingParentIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, missingParent(dupErr))
	assert.Nil(t, missingParent(errors.New("boom")))
	assert.Nil(t, missingParent(&mysql.MySQLError{Number: 1452, Message: "REFERENCES `regions` (`id`)"}))
}

func TestFavoriteRemove(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("DELETE FROM favorites").WithArgs(1, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM favorites").WithArgs(1, 3).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewFavoriteRepo(db)
	require.NoError(t, repo.Remove(context.Background(), 1, 2))
	assert.ErrorIs(t, repo.Remove(context.Background(), 1, 3), ErrNotFound)
}

func TestFavoriteListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	saved := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM favorites WHERE user_id = ?")).WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY f.created_at DESC, f.id DESC")).WithArgs(4, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "denomination", "city", "state", "latitude",
			"longitude", "schedule", "languages", "image_url", "verified", "created_at"}).
			AddRow(int64(2), "Grace", "Baptist", "Austin", "TX", 30.0, -97.0, []byte(`{}`), []byte(`[]`), "", int64(1), saved))

	got, total, err := NewFavoriteRepo(db).ListByUser(context.Background(), 4, NewPage(1, 0, 20, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "Grace", got[0].Church.Name)
	assert.Equal(t, saved, got[0].SavedAt)
}

func TestCheckInCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO check_ins").WithArgs(1, 2, "2024-06-02").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectQuery("SELECT visited_on, created_at FROM check_ins").WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"visited_on", "created_at"}).AddRow(day, day))

	ci, err := NewCheckInRepo(db).Create(context.Background(), 1, 2, day.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-02", ci.VisitDate())
}

func TestCheckInDuplicateDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO check_ins").WillReturnError(dupErr)

	_, err = NewCheckInRepo(db).Create(context.Background(), 1, 2, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
}

func TestCheckInCountAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM check_ins WHERE church_id").WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(8)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM check_ins WHERE user_id").WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY ci.visited_on DESC")).WithArgs(1, 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "church_id", "name", "city", "state", "visited_on"}).
			AddRow(int64(5), int64(2), "Grace", "Austin", "TX", "2024-06-02"))

	repo := NewCheckInRepo(db)
	n, err := repo.CountForChurch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	got, total, err := repo.ListByUser(context.Background(), 1, Page{Number: 2, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []model.CheckInEntry{{ID: 5, ChurchID: 2, ChurchName: "Grace", City: "Austin", State: "TX", VisitedOn: "2024-06-02"}}, got)
}

func TestClaimCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	mock.ExpectExec("INSERT INTO church_claims").
		WithArgs(2, 1, "Pat", "Pastor", "I lead this church", "PENDING").
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery("SELECT created_at FROM church_claims").WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec("INSERT INTO church_claims").WillReturnError(dupErr)

	repo := NewClaimRepo(db)
	cl := &model.ChurchClaim{ChurchID: 2, UserID: 1, ContactName: "Pat", ContactRole: "Pastor", Message: "I lead this church"}
	require.NoError(t, repo.Create(context.Background(), cl))
	assert.Equal(t, uint64(4), cl.ID)
	assert.Equal(t, model.ClaimPending, cl.Status)

	err = repo.Create(context.Background(), &model.ChurchClaim{ChurchID: 2, UserID: 1, ContactName: "Pat"})
	assert.ErrorIs(t, err, ErrClaimPending)
}
