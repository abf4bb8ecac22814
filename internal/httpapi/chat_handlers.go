package httpapi

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/chat"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/providers"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	ImageURL       string `json:"image_url"`
}

type messageJSON struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ImageURL       *string   `json:"image_url,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func toMessageJSON(m storage.Message) messageJSON {
	return messageJSON{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		ImageURL:       m.ImageURL,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}

type sendResponse struct {
	Conversation     conversationJSON `json:"conversation"`
	UserMessage      messageJSON      `json:"user_message"`
	AssistantMessage messageJSON      `json:"assistant_message"`
	Balance          decimal.Decimal  `json:"balance"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())

	if s.limiter != nil {
		allowed, _, resetAt, err := s.limiter.Allow(r.Context(), profile.ID, time.Now())
		if err != nil {
			s.respondError(w, err)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", resetAt.UTC().Format(http.TimeFormat))
			respondJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
	}

	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}

	res, err := s.orchestrator.Send(r.Context(), chat.SendInput{
		UserID:         profile.ID,
		ConversationID: req.ConversationID,
		Content:        req.Content,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, sendResponse{
		Conversation:     toConversationJSON(res.Conversation),
		UserMessage:      toMessageJSON(res.UserMessage),
		AssistantMessage: toMessageJSON(res.AssistantMessage),
		Balance:          res.Balance,
	})
}

type completionsRequest struct {
	Messages []struct {
		Role     string `json:"role"`
		Content  string `json:"content"`
		ImageURL string `json:"image_url"`
	} `json:"messages"`
}

// handleCompletions is the raw gateway boundary: no persistence, no ledger,
// just one completion for the posted turn history.
func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var req completionsRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if len(req.Messages) == 0 {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "messages must not be empty"})
		return
	}

	turns := make([]providers.ChatTurn, 0, len(req.Messages))
	for _, m := range req.Messages {
		turns = append(turns, providers.ChatTurn{Role: m.Role, Content: m.Content, ImageURL: m.ImageURL})
	}

	reply, err := s.gateway.Complete(r.Context(), turns)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

const maxUploadMemory = 8 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart body"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "file field is required"})
		return
	}
	defer file.Close()

	url, err := s.blobs.Save(file)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"url": url})
}
