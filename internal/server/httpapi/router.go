package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router returns the handler tree:
//
//	GET  /healthz
//	POST /api/v1/auth/{register,login,external-login,refresh,logout,forgot-password,reset-password}
//	GET  /api/v1/auth/verify-email?token=
//	GET  /api/v1/profile                (bearer)
//	PUT  /api/v1/profile/password       (bearer)
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/external-login", s.externalLogin)
			r.Post("/refresh", s.refresh)
			r.Post("/logout", s.logout)
			r.Get("/verify-email", s.verifyEmail)
			r.Post("/forgot-password", s.forgotPassword)
			r.Post("/reset-password", s.resetPassword)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(s.requireAccessToken)
			r.Get("/", s.getProfile)
			r.Put("/password", s.changePassword)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
