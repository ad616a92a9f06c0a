// Package users declares the credential store contract: persistence of user
// records including the single currently-valid refresh token per user.
package users

import (
	"context"

	"github.com/clipstream/clipstream/internal/server/models"
)

// Repository defines the operations the session and profile services need.
// Lookups return common.ErrNotFound when no record matches; Create and the
// detail updates surface common.ErrEmailExists / common.ErrUsernameExists on
// unique-constraint violations.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// FindByUsernameOrEmail resolves a login identifier that may be either.
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error)

	UpdateDetails(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatarURL(ctx context.Context, id, url string) (*models.User, error)
	UpdateCoverImageURL(ctx context.Context, id, url string) (*models.User, error)

	// SetRefreshToken overwrites the stored refresh token unconditionally
	// (login: any prior session's token stops working).
	SetRefreshToken(ctx context.Context, id, token string) error

	// RotateRefreshToken replaces the stored token only if it still equals
	// presented, reporting whether the swap happened. This is the single
	// compare-and-swap that makes rotation safe under concurrent refreshes.
	RotateRefreshToken(ctx context.Context, id, presented, next string) (bool, error)

	// ClearRefreshToken nulls the stored token. Clearing an already-clear
	// token is not an error.
	ClearRefreshToken(ctx context.Context, id string) error
}
