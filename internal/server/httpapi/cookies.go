package httpapi

import (
	"net/http"
	"time"

	"github.com/clipstream/clipstream/internal/server/services"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setAuthCookies writes the access/refresh pair as httpOnly cookies. Secure is
// configurable so local development over plain HTTP still works.
func (h *Handler) setAuthCookies(w http.ResponseWriter, pair *services.TokenPair) {
	sameSite := http.SameSiteLaxMode
	if h.secureCookies {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(h.accessValidity / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(h.refreshValidity / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: sameSite,
	})
}

// clearAuthCookies deletes both session cookies together.
func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
