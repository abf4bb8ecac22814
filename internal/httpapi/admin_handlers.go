package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/auth"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/settings"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.ListProfiles(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]profileJSON, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileJSON(p))
	}
	respondJSON(w, http.StatusOK, out)
}

type adminCreateUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminCreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if req.Email == "" || len(req.Password) < 6 {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "email and a password of at least 6 characters are required"})
		return
	}
	role := req.Role
	if role == "" {
		role = storage.RoleUser
	}
	if role != storage.RoleUser && role != storage.RoleAdmin {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "unknown role"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.store.CreateProfile(r.Context(), storage.Profile{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProfileJSON(p))
}

type adminUpdateUserRequest struct {
	Email    string  `json:"email"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
	IsActive bool    `json:"is_active"`
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req adminUpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if req.Role != storage.RoleUser && req.Role != storage.RoleAdmin {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "unknown role"})
		return
	}
	if err := s.store.UpdateProfile(r.Context(), id, req.Email, req.FullName, req.Role, req.IsActive); err != nil {
		s.respondError(w, err)
		return
	}
	p, err := s.store.GetProfileByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileJSON(p))
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == profileFrom(r.Context()).ID {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "cannot delete your own account"})
		return
	}
	if err := s.store.DeleteProfile(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenGrantRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type balanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleAdminGrantTokens(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req tokenGrantRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	balance, err := s.ledger.Credit(r.Context(), id, req.Amount, req.Description)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{UserID: id, Balance: balance})
}

type tokenSetRequest struct {
	Balance     decimal.Decimal `json:"balance"`
	Description string          `json:"description"`
}

func (s *Server) handleAdminSetTokens(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req tokenSetRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	balance, err := s.ledger.SetBalance(r.Context(), id, req.Balance, req.Description)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{UserID: id, Balance: balance})
}

const defaultTransactionLimit = 100

func (s *Server) handleAdminListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	limit := uint64(defaultTransactionLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	txs, err := s.ledger.History(r.Context(), userID, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

const maskedValue = "********"

// handleAdminListSettings returns the settings table with credential values
// masked; only their presence is reported.
func (s *Server) handleAdminListSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := s.settings.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	values := snap.Values()
	for k, v := range values {
		if settings.APIKeySettingName(k) && v != "" {
			values[k] = maskedValue
		}
	}
	respondJSON(w, http.StatusOK, values)
}

type updateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// handleAdminUpdateSetting writes one setting. Credential values are
// envelope-encrypted before they touch the table.
func (s *Server) handleAdminUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req updateSettingRequest
	if err := decodeBody(r, &req); err != nil || req.Key == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "key is required"})
		return
	}

	value := req.Value
	if settings.APIKeySettingName(req.Key) && value != "" && s.crypto != nil {
		enc, err := s.crypto.MarshalEncryptedString(value)
		if err != nil {
			s.respondError(w, err)
			return
		}
		value = enc
	}

	if err := s.settings.Update(r.Context(), req.Key, value); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const defaultConversationLimit = 200

func (s *Server) handleAdminListConversations(w http.ResponseWriter, r *http.Request) {
	limit := uint64(defaultConversationLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	cs, err := s.store.ListAllConversations(r.Context(), limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConversationList(cs))
}

func (s *Server) handleAdminDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConversation(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMessage(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
