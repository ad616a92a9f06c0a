package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clipstream/clipstream/internal/common"
	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/auth"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/models"
	"github.com/clipstream/clipstream/internal/server/services"
)

// maxUploadBytes bounds multipart form memory; larger files spill to disk.
const maxUploadBytes = 32 << 20

// Handler carries the services and the cookie/token settings the HTTP shell
// needs. Business rules live in the services; handlers only translate.
type Handler struct {
	sessions        *services.SessionService
	profiles        *services.ProfileService
	issuer          *auth.TokenIssuer
	logger          logging.Logger
	secureCookies   bool
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewHandler(sessions *services.SessionService, profiles *services.ProfileService, logger logging.Logger, cfg *config.Config) *Handler {
	return &Handler{
		sessions:        sessions,
		profiles:        profiles,
		issuer:          sessions.Issuer(),
		logger:          logger.With("component", "httpapi"),
		secureCookies:   cfg.SecureCookies,
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}
}

// POST /api/v1/users/register (multipart/form-data)
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(r.Context(), w, common.ErrValidation)
		return
	}

	avatarPath, cleanupAvatar, err := h.spoolFormFile(r, "avatar")
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	defer cleanupAvatar()

	coverPath, cleanupCover, err := h.spoolOptionalFormFile(r, "coverImage")
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	defer cleanupCover()

	user, err := h.sessions.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		Username:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     avatarPath,
		CoverImagePath: coverPath,
	})
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusCreated, user, "user registered successfully")
}

// POST /api/v1/users/login
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(r.Context(), w, common.ErrValidation)
		return
	}

	identifier := in.Username
	if identifier == "" {
		identifier = in.Email
	}

	user, pair, err := h.sessions.Login(r.Context(), identifier, in.Password)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.setAuthCookies(w, pair)
	respond(w, http.StatusOK, map[string]any{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "user logged in successfully")
}

// POST /api/v1/users/refresh-token
func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		var in struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		presented = in.RefreshToken
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.setAuthCookies(w, pair)
	respond(w, http.StatusOK, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	}, "access token refreshed")
}

// POST /api/v1/users/logout
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), UserIDFromContext(r.Context())); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	h.clearAuthCookies(w)
	respond(w, http.StatusOK, nil, "user logged out")
}

// POST /api/v1/users/change-password
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(r.Context(), w, common.ErrValidation)
		return
	}

	if err := h.sessions.ChangePassword(r.Context(), UserIDFromContext(r.Context()), in.OldPassword, in.NewPassword); err != nil {
		h.respondError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusOK, nil, "password changed successfully")
}

// GET /api/v1/users/current-user
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.GetCurrentUser(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, user, "current user fetched")
}

// PATCH /api/v1/users/update-account
func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(r.Context(), w, common.ErrValidation)
		return
	}

	user, err := h.profiles.UpdateAccountDetails(r.Context(), UserIDFromContext(r.Context()), in.FullName, in.Email)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, user, "account details updated")
}

// PATCH /api/v1/users/avatar (multipart/form-data)
func (h *Handler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", h.profiles.UpdateAvatar, "avatar updated")
}

// PATCH /api/v1/users/cover-image (multipart/form-data)
func (h *Handler) updateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", h.profiles.UpdateCoverImage, "cover image updated")
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request, field string,
	update func(ctx context.Context, userID, localPath string) (*models.User, error), message string) {

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(r.Context(), w, common.ErrValidation)
		return
	}

	path, cleanup, err := h.spoolFormFile(r, field)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	defer cleanup()

	user, err := update(r.Context(), UserIDFromContext(r.Context()), path)
	if err != nil {
		h.respondError(r.Context(), w, err)
		return
	}
	respond(w, http.StatusOK, user, message)
}

// spoolFormFile copies a required multipart file to a temp path the services
// can read, returning a cleanup func that removes it.
func (h *Handler) spoolFormFile(r *http.Request, field string) (string, func(), error) {
	path, cleanup, err := h.spoolOptionalFormFile(r, field)
	if err != nil {
		return "", cleanup, err
	}
	if path == "" {
		return "", cleanup, fmt.Errorf("%w: %s file is required", common.ErrValidation, field)
	}
	return path, cleanup, nil
}

// spoolOptionalFormFile is spoolFormFile for optional fields: a missing file
// yields an empty path, not an error.
func (h *Handler) spoolOptionalFormFile(r *http.Request, field string) (string, func(), error) {
	noop := func() {}

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", noop, nil
		}
		return "", noop, fmt.Errorf("%w: invalid %s file", common.ErrValidation, field)
	}
	defer file.Close()

	path, err := spoolTemp(file, header)
	if err != nil {
		return "", noop, common.ErrInternal
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func spoolTemp(file multipart.File, header *multipart.FileHeader) (string, error) {
	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
