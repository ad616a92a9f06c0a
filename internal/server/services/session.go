// Package services contains the server-side business logic. This file
// implements SessionService: registration, login, logout, refresh-token
// rotation, and password change.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/auth"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/models"
	"github.com/clipstream/clipstream/internal/server/repositories/repomanager"
	"github.com/clipstream/clipstream/internal/server/storage"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RegisterInput carries the registration form. AvatarPath and CoverImagePath
// are local file references (spooled uploads); the avatar is mandatory.
type RegisterInput struct {
	FullName       string
	Email          string
	Username       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// SessionService owns the session lifecycle. It is the single source of truth
// for "is this refresh token still valid": the only server-side revocation
// mechanism is the comparison against the user's stored current token.
type SessionService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	issuer        *auth.TokenIssuer
	hasher        *auth.PasswordHasher
	uploader      storage.Uploader
	logger        logging.Logger
	uploadTimeout time.Duration
}

// NewSessionService constructs a SessionService from repositories, the media
// uploader, and server config.
func NewSessionService(db *sql.DB, repos repomanager.RepositoryManager, uploader storage.Uploader, logger logging.Logger, cfg *config.Config) *SessionService {
	return &SessionService{
		db:    db,
		repos: repos,
		issuer: auth.NewTokenIssuer(
			[]byte(cfg.AccessTokenSecret), []byte(cfg.RefreshTokenSecret),
			cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration,
		),
		hasher:        auth.NewPasswordHasher(cfg.BcryptCost),
		uploader:      uploader,
		logger:        logger.With("service", "session"),
		uploadTimeout: cfg.UploadTimeout,
	}
}

// Issuer exposes the token issuer so the HTTP layer can verify access tokens
// with the same secrets the service signs with.
func (s *SessionService) Issuer() *auth.TokenIssuer {
	return s.issuer
}

// Register validates the form, checks uniqueness, uploads media, and persists
// the new user. The uniqueness check runs before the (expensive, irreversible)
// uploads so a conflicting registration never orphans an object in the bucket;
// the remaining race window is closed by the store's unique indexes.
func (s *SessionService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	fullName := strings.ToLower(strings.TrimSpace(in.FullName))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.ToLower(strings.TrimSpace(in.Username))

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: all fields are required", common.ErrValidation)
	}
	if in.AvatarPath == "" {
		return nil, fmt.Errorf("%w: avatar file is required", common.ErrValidation)
	}

	repo := s.repos.Users(s.db)

	// Pre-check both identifiers so the caller learns which one collided.
	// When both collide, the email conflict is reported.
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if _, err := repo.FindByUsername(ctx, username); err == nil {
		return nil, common.ErrUsernameExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	avatarURL, err := s.upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "op", "register", "username", username)
		return nil, err
	}

	var coverImageURL *string
	if in.CoverImagePath != "" {
		u, err := s.upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.Error(ctx, "cover image upload failed", "op", "register", "username", username)
			return nil, err
		}
		coverImageURL = &u
	}

	// The password is stored exactly as typed; trimming applies only to the
	// non-empty check. Login and ChangePassword verify the raw string, so the
	// two paths must hash the same bytes.
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user, err := repo.Create(ctx, &models.User{
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverImageURL,
	})
	if err != nil {
		// A racing registration may still hit the unique index here.
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", username)
	return user.Sanitized(), nil
}

// Login resolves the identifier as username or email, verifies the password,
// and mints a fresh token pair. The new refresh token overwrites any stored
// one, so earlier sessions can no longer refresh (last refresh wins).
func (s *SessionService) Login(ctx context.Context, usernameOrEmail, password string) (*models.User, *TokenPair, error) {
	identifier := strings.ToLower(strings.TrimSpace(usernameOrEmail))
	if identifier == "" {
		return nil, nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}

	repo := s.repos.Users(s.db)

	user, err := repo.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrNotFound
		}
		return nil, nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn(ctx, "password verification failed", "op", "login", "user_id", user.ID)
		return nil, nil, common.ErrUnauthorized
	}

	pair, err := s.mintTokenPair(user)
	if err != nil {
		return nil, nil, common.ErrInternal
	}

	if err := repo.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return user.Sanitized(), pair, nil
}

// Refresh rotates the refresh token: the presented token must verify against
// the refresh secret AND exactly equal the user's stored current token.
// Strict equality, not just signature validity, is what makes logout and
// prior rotations effective.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	if presented == "" {
		return nil, common.ErrUnauthorized
	}

	claims, err := s.issuer.VerifyRefreshToken(presented)
	if err != nil {
		return nil, common.ErrInvalidRefreshToken
	}

	repo := s.repos.Users(s.db)

	user, err := repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, err
	}

	pair, err := s.mintTokenPair(user)
	if err != nil {
		return nil, common.ErrInternal
	}

	rotated, err := repo.RotateRefreshToken(ctx, user.ID, presented, pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// Superseded or cleared: the token was already used, or the user
		// logged out since it was issued.
		s.logger.Warn(ctx, "stale refresh token presented", "op", "refresh", "user_id", user.ID)
		return nil, common.ErrRefreshTokenUsed
	}

	return pair, nil
}

// Logout clears the stored refresh token. Calling it twice is harmless.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	if err := s.repos.Users(s.db).ClearRefreshToken(ctx, userID); err != nil {
		return err
	}
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// ChangePassword re-hashes and persists the new password after verifying the
// old one. Outstanding access and refresh tokens stay valid: password change
// does not end existing sessions. Known gap, kept for compatibility.
func (s *SessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}

	repo := s.repos.Users(s.db)

	user, err := repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		s.logger.Warn(ctx, "password verification failed", "op", "change_password", "user_id", userID)
		return common.ErrUnauthorized
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return common.ErrInternal
	}

	return repo.UpdatePassword(ctx, userID, hash)
}

func (s *SessionService) mintTokenPair(user *models.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(user.ID, user.Email, user.Username, user.FullName)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) upload(ctx context.Context, localPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	return s.uploader.Upload(ctx, localPath)
}
