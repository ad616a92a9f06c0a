package httpapi

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/clipstream/clipstream/internal/logging"
	"github.com/clipstream/clipstream/internal/server/config"
)

// NewRouter assembles the full HTTP handler: public auth routes, protected
// profile/session routes behind the access-token middleware, CORS, and the
// request logger.
func NewRouter(h *Handler, logger logging.Logger, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	// ---------- public routes ----------
	mux.HandleFunc("POST /api/v1/users/register", h.register)
	mux.HandleFunc("POST /api/v1/users/login", h.login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", h.refreshToken)

	// ---------- protected routes ----------
	protected := http.NewServeMux()
	protected.HandleFunc("POST /logout", h.logout)
	protected.HandleFunc("POST /change-password", h.changePassword)
	protected.HandleFunc("GET /current-user", h.currentUser)
	protected.HandleFunc("PATCH /update-account", h.updateAccount)
	protected.HandleFunc("PATCH /avatar", h.updateAvatar)
	protected.HandleFunc("PATCH /cover-image", h.updateCoverImage)

	mux.Handle("/api/v1/users/",
		http.StripPrefix("/api/v1/users", h.authMiddleware(protected)),
	)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.CORSOrigin},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)
	handler = requestLogger(logger, handler)
	return handler
}
