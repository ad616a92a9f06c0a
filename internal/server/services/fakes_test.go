package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/dbx"
	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/models"
	"github.com/clipstream/clipstream/internal/server/repositories/users"
)

// fakeUserRepo is an in-memory users.Repository matching the store's
// contract: ErrNotFound on misses, conflict sentinels on duplicates,
// compare-and-swap rotation semantics.
type fakeUserRepo struct {
	seq     int
	records map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{records: map[string]*models.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	for _, u := range r.records {
		if u.Email == user.Email {
			return nil, common.ErrEmailExists
		}
		if u.Username == user.Username {
			return nil, common.ErrUsernameExists
		}
	}
	r.seq++
	c := *user
	c.ID = fmt.Sprintf("user-%d", r.seq)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.records[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) FindByUsernameOrEmail(_ context.Context, identifier string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool {
		return u.Username == identifier || u.Email == identifier
	})
}

func (r *fakeUserRepo) findBy(match func(*models.User) bool) (*models.User, error) {
	for _, u := range r.records {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) UpdateDetails(_ context.Context, id, fullName, email string) (*models.User, error) {
	u, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	for _, other := range r.records {
		if other.ID != id && other.Email == email {
			return nil, common.ErrEmailExists
		}
	}
	u.FullName = fullName
	u.Email = email
	u.UpdatedAt = time.Now()
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	u, ok := r.records[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) UpdateAvatarURL(_ context.Context, id, url string) (*models.User, error) {
	u, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u.AvatarURL = url
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) UpdateCoverImageURL(_ context.Context, id, url string) (*models.User, error) {
	u, ok := r.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	u.CoverImageURL = &url
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) SetRefreshToken(_ context.Context, id, token string) error {
	u, ok := r.records[id]
	if !ok {
		return common.ErrNotFound
	}
	u.CurrentRefreshToken = &token
	return nil
}

func (r *fakeUserRepo) RotateRefreshToken(_ context.Context, id, presented, next string) (bool, error) {
	u, ok := r.records[id]
	if !ok {
		return false, nil
	}
	if u.CurrentRefreshToken == nil || *u.CurrentRefreshToken != presented {
		return false, nil
	}
	u.CurrentRefreshToken = &next
	return true, nil
}

func (r *fakeUserRepo) ClearRefreshToken(_ context.Context, id string) error {
	if u, ok := r.records[id]; ok {
		u.CurrentRefreshToken = nil
	}
	return nil
}

// stored exposes the raw record for assertions on persisted state.
func (r *fakeUserRepo) stored(id string) *models.User {
	return r.records[id]
}

type fakeRepoManager struct {
	repo *fakeUserRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.repo }

// fakeUploader records upload paths and returns deterministic URLs.
type fakeUploader struct {
	calls []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, localPath string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.calls = append(u.calls, localPath)
	return "https://cdn.test/" + filepath.Base(localPath), nil
}

func testConfig() *config.Config {
	return &config.Config{
		AccessTokenSecret:            "test-access-secret",
		RefreshTokenSecret:           "test-refresh-secret",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		BcryptCost:                   bcrypt.MinCost,
		UploadTimeout:                time.Second,
	}
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestSessionService() (*SessionService, *fakeUserRepo, *fakeUploader) {
	repo := newFakeUserRepo()
	uploader := &fakeUploader{}
	svc := NewSessionService(nil, &fakeRepoManager{repo: repo}, uploader, testLogger(), testConfig())
	return svc, repo, uploader
}

func newTestProfileService() (*ProfileService, *fakeUserRepo, *fakeUploader) {
	repo := newFakeUserRepo()
	uploader := &fakeUploader{}
	svc := NewProfileService(nil, &fakeRepoManager{repo: repo}, uploader, testLogger(), testConfig())
	return svc, repo, uploader
}
