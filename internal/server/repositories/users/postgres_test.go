package users

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/server/models"
)

var userCols = []string{
	"id", "username", "email", "full_name", "password_hash", "avatar_url",
	"cover_image_url", "current_refresh_token", "created_at", "updated_at",
}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).AddRow(
		"id-1", "alice", "alice@example.com", "alice liddell", "$2a$hash",
		"https://cdn/avatar.png", nil, nil, now, now,
	)
}

func TestCreate_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "alice@example.com", "alice liddell", "$2a$hash", "https://cdn/avatar.png", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("id-1", now, now))

	repo := NewPostgresRepository(db)
	user, err := repo.Create(context.Background(), &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "alice liddell",
		PasswordHash: "$2a$hash",
		AvatarURL:    "https://cdn/avatar.png",
	})

	require.NoError(t, err)
	assert.Equal(t, "id-1", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_UniqueViolation(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email index", "users_email_key", common.ErrEmailExists},
		{"username index", "users_username_key", common.ErrUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
				WillReturnError(&pgconn.PgError{
					Code:           pgerrcode.UniqueViolation,
					ConstraintName: tt.constraint,
				})

			repo := NewPostgresRepository(db)
			_, err = repo.Create(context.Background(), &models.User{
				Username: "alice", Email: "alice@example.com",
				FullName: "alice liddell", PasswordHash: "h", AvatarURL: "a",
			})

			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	repo := NewPostgresRepository(db)
	_, err = repo.FindByID(context.Background(), "missing")

	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameOrEmail_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1 OR email = $1")).
		WithArgs("alice").
		WillReturnRows(userRow(time.Now()))

	repo := NewPostgresRepository(db)
	user, err := repo.FindByUsernameOrEmail(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Nil(t, user.CurrentRefreshToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken(t *testing.T) {
	tests := []struct {
		name    string
		rows    int64
		rotated bool
	}{
		{"stored token matches", 1, true},
		{"stored token superseded", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET current_refresh_token = $3")).
				WithArgs("id-1", "old-token", "new-token").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			repo := NewPostgresRepository(db)
			rotated, err := repo.RotateRefreshToken(context.Background(), "id-1", "old-token", "new-token")

			require.NoError(t, err)
			assert.Equal(t, tt.rotated, rotated)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClearRefreshToken_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Clearing when nothing is stored still succeeds.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET current_refresh_token = NULL")).
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	assert.NoError(t, repo.ClearRefreshToken(context.Background(), "id-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash = $2")).
		WithArgs("missing", "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepository(db)
	err = repo.UpdatePassword(context.Background(), "missing", "new-hash")

	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDetails_EmailConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET full_name = $2, email = $3")).
		WithArgs("id-1", "new name", "taken@example.com").
		WillReturnError(&pgconn.PgError{
			Code:           pgerrcode.UniqueViolation,
			ConstraintName: "users_email_key",
		})

	repo := NewPostgresRepository(db)
	_, err = repo.UpdateDetails(context.Background(), "id-1", "new name", "taken@example.com")

	assert.ErrorIs(t, err, common.ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapDBError_Passthrough(t *testing.T) {
	err := mapDBError(errors.New("connection reset"))
	assert.NotErrorIs(t, err, common.ErrEmailExists)
	assert.NotErrorIs(t, err, common.ErrUsernameExists)
	assert.Contains(t, err.Error(), "connection reset")
}
