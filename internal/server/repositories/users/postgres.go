package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/dbx"
	"github.com/clipstream/clipstream/internal/server/models"
)

const userColumns = `id, username, email, full_name, password_hash, avatar_url,
	cover_image_url, current_refresh_token, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, full_name, password_hash, avatar_url, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.PasswordHash,
		user.AvatarURL, user.CoverImageURL,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, mapDBError(err)
	}
	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, query, id)
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(ctx, query, username)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, query, email)
}

func (r *PostgresRepository) FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return r.scanUser(ctx, query, identifier)
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id, fullName, email string) (*models.User, error) {
	query := `
		UPDATE users SET full_name = $2, email = $3, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanUser(ctx, query, id, fullName, email)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) UpdateAvatarURL(ctx context.Context, id, url string) (*models.User, error) {
	query := `
		UPDATE users SET avatar_url = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanUser(ctx, query, id, url)
}

func (r *PostgresRepository) UpdateCoverImageURL(ctx context.Context, id, url string) (*models.User, error) {
	query := `
		UPDATE users SET cover_image_url = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanUser(ctx, query, id, url)
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	query := `UPDATE users SET current_refresh_token = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, id, token)
}

// RotateRefreshToken is a single conditional UPDATE: it swaps in the next
// token only where the stored value still equals the presented one, so two
// concurrent refreshes with the same token cannot both win.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error) {
	query := `
		UPDATE users SET current_refresh_token = $3, updated_at = now()
		WHERE id = $1 AND current_refresh_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, id, presented, next)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users SET current_refresh_token = NULL, updated_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.AvatarURL, &user.CoverImageURL,
		&user.CurrentRefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, mapDBError(err)
	}
	return user, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// mapDBError converts unique-constraint violations into the conflict
// sentinels; the constraint name tells us which field collided.
func mapDBError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return common.ErrEmailExists
		}
		return common.ErrUsernameExists
	}
	return fmt.Errorf("db error: %w", err)
}
