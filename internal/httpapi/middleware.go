package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

type contextKey int

const profileKey contextKey = iota

func profileFrom(ctx context.Context) storage.Profile {
	p, _ := ctx.Value(profileKey).(storage.Profile)
	return p
}

// requireUser authenticates the bearer token and loads the caller's profile.
// Deactivated accounts are rejected even when their token is still valid.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			respondJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}

		claims, err := s.auth.Verify(raw)
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}

		profile, err := s.store.GetProfileByID(r.Context(), claims.UserID)
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		if !profile.IsActive {
			respondJSON(w, http.StatusForbidden, errorBody{Error: "account is deactivated"})
			return
		}

		ctx := context.WithValue(r.Context(), profileKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if profileFrom(r.Context()).Role != storage.RoleAdmin {
			respondJSON(w, http.StatusForbidden, errorBody{Error: "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(started)).
			Msg("http request")
	})
}
