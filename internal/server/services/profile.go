package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/models"
	"github.com/clipstream/clipstream/internal/server/repositories/repomanager"
	"github.com/clipstream/clipstream/internal/server/storage"
)

// ProfileService reads and mutates the non-auth user fields. Callers supply a
// verified identity; authentication itself is the HTTP layer's concern.
type ProfileService struct {
	db            *sql.DB
	repos         repomanager.RepositoryManager
	uploader      storage.Uploader
	logger        logging.Logger
	uploadTimeout time.Duration
}

func NewProfileService(db *sql.DB, repos repomanager.RepositoryManager, uploader storage.Uploader, logger logging.Logger, cfg *config.Config) *ProfileService {
	return &ProfileService{
		db:            db,
		repos:         repos,
		uploader:      uploader,
		logger:        logger.With("service", "profile"),
		uploadTimeout: cfg.UploadTimeout,
	}
}

// GetCurrentUser returns the sanitized record for the authenticated user.
func (s *ProfileService) GetCurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repos.Users(s.db).FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// UpdateAccountDetails changes the display name and email. Both are required
// and lowercase-normalized; an email collision surfaces as ErrEmailExists.
func (s *ProfileService) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.User, error) {
	fullName = strings.ToLower(strings.TrimSpace(fullName))
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" || email == "" {
		return nil, fmt.Errorf("%w: all fields are required", common.ErrValidation)
	}

	user, err := s.repos.Users(s.db).UpdateDetails(ctx, userID, fullName, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "account details updated", "user_id", userID)
	return user.Sanitized(), nil
}

// UpdateAvatar uploads the replacement image and persists its URL.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.User, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: avatar file is required", common.ErrValidation)
	}

	url, err := s.upload(ctx, localPath)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "op", "update_avatar", "user_id", userID)
		return nil, err
	}

	user, err := s.repos.Users(s.db).UpdateAvatarURL(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

// UpdateCoverImage uploads the replacement cover and persists its URL.
func (s *ProfileService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.User, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: cover image file is required", common.ErrValidation)
	}

	url, err := s.upload(ctx, localPath)
	if err != nil {
		s.logger.Error(ctx, "cover image upload failed", "op", "update_cover_image", "user_id", userID)
		return nil, err
	}

	user, err := s.repos.Users(s.db).UpdateCoverImageURL(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *ProfileService) upload(ctx context.Context, localPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()
	return s.uploader.Upload(ctx, localPath)
}
