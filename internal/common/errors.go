// Package common defines sentinel errors shared by all layers of the account
// backend. Callers match them with errors.Is; the HTTP layer owns the mapping
// from sentinel to status code.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound       = errors.New("not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrUsernameExists = errors.New("username already exists")

	// Service-level errors.
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")

	// External-dependency errors (object storage, upload).
	ErrDependency = errors.New("dependency failure")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenUsed    = errors.New("refresh token expired or used")
)
