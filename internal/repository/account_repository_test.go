package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserCreateDuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("INSERT INTO users").
		WithArgs("ann@example.com", sqlmock.AnyArg(), "Ann", "USER").
		WillReturnError(dupErr)

	_, err = NewUserRepo(db).Create(context.Background(), " Ann@Example.com ", "longenough", " Ann ", "USER", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	cols := []string{"id", "email", "password_hash", "display_name", "home_latitude", "home_longitude",
		"role", "is_active", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "ann@example.com", "h", "Ann", 30.5, -97.1, "USER", int64(1), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).WithArgs("bob@example.com").
		WillReturnRows(sqlmock.NewRows(cols))

	repo := NewUserRepo(db)
	u, err := repo.GetByEmail(context.Background(), "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.ID)
	require.NotNil(t, u.HomeLatitude)
	assert.Equal(t, 30.5, *u.HomeLatitude)

	_, err = repo.GetByEmail(context.Background(), "bob@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserUpdateProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectExec("UPDATE users SET display_name=").WithArgs("Ann", nil, nil, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewUserRepo(db).UpdateProfile(context.Background(), 1, " Ann ", nil, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRotate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewTokenRepo(db)
	repo.Now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(int64(7), now.Add(time.Hour), nil))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs("old").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").WithArgs(7, "new", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	uid, err := repo.Rotate(context.Background(), "old", "new", now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRotateRevokedRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("old").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(int64(7), now.Add(time.Hour), now))
	mock.ExpectRollback()

	_, err = NewTokenRepo(db).Rotate(context.Background(), "old", "new", now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenValidateExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("h").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}).AddRow(int64(7), now.Add(-time.Minute), nil))
	mock.ExpectQuery("SELECT user_id, expires_at, revoked_at FROM refresh_tokens").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "revoked_at"}))

	repo := NewTokenRepo(db)
	_, err = repo.ValidateRefresh(context.Background(), "h")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
	_, err = repo.ValidateRefresh(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvalidRefresh)
}
