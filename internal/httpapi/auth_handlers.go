package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/auth"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

type profileJSON struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FullName  *string         `json:"full_name"`
	Role      string          `json:"role"`
	IsActive  bool            `json:"is_active"`
	Tokens    decimal.Decimal `json:"tokens"`
	CreatedAt time.Time       `json:"created_at"`
}

func toProfileJSON(p storage.Profile) profileJSON {
	return profileJSON{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Role:      p.Role,
		IsActive:  p.IsActive,
		Tokens:    p.Tokens,
		CreatedAt: p.CreatedAt,
	}
}

type signupRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

type sessionResponse struct {
	Token   string      `json:"token"`
	Profile profileJSON `json:"profile"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "email and a password of at least 6 characters are required"})
		return
	}

	if _, err := s.store.GetProfileByEmail(r.Context(), req.Email); err == nil {
		respondJSON(w, http.StatusConflict, errorBody{Error: "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}

	profile, err := s.store.CreateProfile(r.Context(), storage.Profile{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         storage.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	token, err := s.auth.Issue(profile.ID, profile.Role, time.Now())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{Token: token, Profile: toProfileJSON(profile)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	profile, err := s.store.GetProfileByEmail(r.Context(), req.Email)
	if err != nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}
	if err := auth.CheckPassword(profile.PasswordHash, req.Password); err != nil {
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid credentials"})
		return
	}
	if !profile.IsActive {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "account is deactivated"})
		return
	}

	token, err := s.auth.Issue(profile.ID, profile.Role, time.Now())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Token: token, Profile: toProfileJSON(profile)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toProfileJSON(profileFrom(r.Context())))
}
