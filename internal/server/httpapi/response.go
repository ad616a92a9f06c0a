// Package httpapi is the thin HTTP shell over the session and profile
// services: routing, cookie handling, the uniform response envelope, and the
// mapping from error sentinels to status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipstream/clipstream/internal/common"
)

// apiResponse is the uniform success envelope.
type apiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
}

// apiError is the uniform error envelope.
type apiError struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{StatusCode: status, Data: data, Message: message})
}

// respondError maps a service error to its status code and envelope. Unknown
// errors become opaque 500s; the caller is expected to have logged them.
func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, common.ErrDependency) {
		h.logger.Error(ctx, "request failed", "error", err.Error())
		message = "internal server error"
	}
	writeJSON(w, status, apiError{StatusCode: status, Message: message})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrEmailExists), errors.Is(err, common.ErrUsernameExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrRefreshTokenUsed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
