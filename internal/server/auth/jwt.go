// Package auth provides the authentication primitives of the account backend:
// password hashing and signed, time-bound access/refresh tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/clipstream/internal/common"
)

// AccessClaims are embedded in access tokens: enough identity to render a
// session without a store round-trip.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// RefreshClaims are embedded in refresh tokens: the subject id only.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenIssuer mints and verifies the two token kinds. Access and refresh
// tokens are signed with independent secrets so compromise of one cannot
// forge the other.
type TokenIssuer struct {
	accessSecret    []byte
	refreshSecret   []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret []byte, accessValidity, refreshValidity time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:    accessSecret,
		refreshSecret:   refreshSecret,
		accessValidity:  accessValidity,
		refreshValidity: refreshValidity,
	}
}

// IssueAccessToken signs a short-lived token carrying the user's identity claims.
func (i *TokenIssuer) IssueAccessToken(userID, email, username, fullName string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessValidity)),
		},
		UserID:   userID,
		Email:    email,
		Username: username,
		FullName: fullName,
	})
	return token.SignedString(i.accessSecret)
}

// IssueRefreshToken signs a long-lived token carrying only the user id.
// Each token gets a unique jti: rotation compares tokens byte-for-byte, so
// two tokens minted in the same second must still differ.
func (i *TokenIssuer) IssueRefreshToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshValidity)),
		},
		UserID: userID,
	})
	return token.SignedString(i.refreshSecret)
}

// VerifyAccessToken parses and validates an access token, returning its claims.
// Expired tokens yield common.ErrTokenExpired; anything else that fails
// signature or structural checks yields common.ErrInvalidToken.
func (i *TokenIssuer) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.verify(tokenString, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken parses and validates a refresh token, returning its claims.
func (i *TokenIssuer) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.verify(tokenString, claims, i.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) verify(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return common.ErrInvalidToken
	}
	if !token.Valid {
		return common.ErrInvalidToken
	}
	return nil
}
