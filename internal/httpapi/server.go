// Package httpapi exposes the chat product over HTTP: auth, conversations,
// the turn-send protocol, the bare completions boundary, uploads and the
// administrative back-office.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/auth"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/blob"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/chat"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/crypto"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/gateway"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/ledger"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/ratelimit"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/settings"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

type Server struct {
	store        *storage.Store
	ledger       *ledger.Service
	orchestrator *chat.Orchestrator
	gateway      *gateway.Gateway
	settings     *settings.Service
	blobs        *blob.Store
	auth         *auth.Manager
	limiter      *ratelimit.Limiter
	crypto       *crypto.Manager
	logger       zerolog.Logger
	blobPublic   string
	healthPath   string
	metricsPath  string
}

type Config struct {
	Store          *storage.Store
	Ledger         *ledger.Service
	Orchestrator   *chat.Orchestrator
	Gateway        *gateway.Gateway
	Settings       *settings.Service
	Blobs          *blob.Store
	Auth           *auth.Manager
	Limiter        *ratelimit.Limiter
	Crypto         *crypto.Manager
	Logger         zerolog.Logger
	BlobPublicPath string
	HealthPath     string
	MetricsPath    string
}

func New(cfg Config) *Server {
	return &Server{
		store:        cfg.Store,
		ledger:       cfg.Ledger,
		orchestrator: cfg.Orchestrator,
		gateway:      cfg.Gateway,
		settings:     cfg.Settings,
		blobs:        cfg.Blobs,
		auth:         cfg.Auth,
		limiter:      cfg.Limiter,
		crypto:       cfg.Crypto,
		logger:       cfg.Logger,
		blobPublic:   cfg.BlobPublicPath,
		healthPath:   orDefault(cfg.HealthPath, "/healthz"),
		metricsPath:  orDefault(cfg.MetricsPath, "/metrics"),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc(s.healthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle(s.metricsPath, promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.handleSend).Methods(http.MethodPost)
	api.HandleFunc("/completions", s.handleCompletions).Methods(http.MethodPost)
	api.HandleFunc("/uploads", s.handleUpload).Methods(http.MethodPost)

	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleRenameConversation).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/share", s.handleShareConversation).Methods(http.MethodPost)
	api.HandleFunc("/shared-conversations", s.handleListShared).Methods(http.MethodGet)

	api.HandleFunc("/teams", s.handleCreateTeam).Methods(http.MethodPost)
	api.HandleFunc("/teams", s.handleListTeams).Methods(http.MethodGet)
	api.HandleFunc("/teams/{id}/members", s.handleAddTeamMember).Methods(http.MethodPost)
	api.HandleFunc("/teams/{id}/members", s.handleListTeamMembers).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/users", s.handleAdminListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users", s.handleAdminCreateUser).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}", s.handleAdminUpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}", s.handleAdminDeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/users/{id}/tokens", s.handleAdminGrantTokens).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id}/tokens", s.handleAdminSetTokens).Methods(http.MethodPut)
	admin.HandleFunc("/transactions", s.handleAdminListTransactions).Methods(http.MethodGet)
	admin.HandleFunc("/settings", s.handleAdminListSettings).Methods(http.MethodGet)
	admin.HandleFunc("/settings", s.handleAdminUpdateSetting).Methods(http.MethodPut)
	admin.HandleFunc("/conversations", s.handleAdminListConversations).Methods(http.MethodGet)
	admin.HandleFunc("/conversations/{id}", s.handleAdminDeleteConversation).Methods(http.MethodDelete)
	admin.HandleFunc("/messages/{id}", s.handleAdminDeleteMessage).Methods(http.MethodDelete)

	r.PathPrefix(s.blobPublic + "/").Handler(
		http.StripPrefix(s.blobPublic+"/", http.FileServer(http.Dir(s.blobs.Dir()))))

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var configErr *providers.ConfigError
	var vendorErr *providers.VendorError

	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, chat.ErrNotOwner):
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, chat.ErrEmptyMessage):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respondJSON(w, http.StatusPaymentRequired, errorBody{Error: "insufficient tokens"})
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		respondJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, blob.ErrNotImage), errors.Is(err, blob.ErrTooLarge):
		respondJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.As(err, &configErr):
		respondJSON(w, http.StatusBadGateway, errorBody{Error: configErr.Error()})
	case errors.As(err, &vendorErr):
		respondJSON(w, http.StatusBadGateway, errorBody{Error: vendorErr.Error()})
	default:
		s.logger.Error().Err(err).Msg("internal error")
		respondJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
