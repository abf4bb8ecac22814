package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/chat"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

type conversationJSON struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toConversationJSON(c storage.Conversation) conversationJSON {
	return conversationJSON{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toConversationList(cs []storage.Conversation) []conversationJSON {
	out := make([]conversationJSON, 0, len(cs))
	for _, c := range cs {
		out = append(out, toConversationJSON(c))
	}
	return out
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	cs, err := s.store.ListConversations(r.Context(), profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConversationList(cs))
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	var req createConversationRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	title := req.Title
	if title == "" {
		title = chat.DefaultTitle
	}
	c, err := s.store.CreateConversation(r.Context(), profile.ID, title)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toConversationJSON(c))
}

// ownConversation loads the conversation and enforces ownership, returning
// 404 either way so ids cannot be probed.
func (s *Server) ownConversation(w http.ResponseWriter, r *http.Request) (storage.Conversation, bool) {
	profile := profileFrom(r.Context())
	c, err := s.store.GetConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return storage.Conversation{}, false
	}
	if c.UserID != profile.ID {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return storage.Conversation{}, false
	}
	return c, true
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownConversation(w, r)
	if !ok {
		return
	}
	var req renameConversationRequest
	if err := decodeBody(r, &req); err != nil || req.Title == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "title is required"})
		return
	}
	if err := s.store.UpdateConversationTitle(r.Context(), c.ID, req.Title); err != nil {
		s.respondError(w, err)
		return
	}
	c.Title = req.Title
	respondJSON(w, http.StatusOK, toConversationJSON(c))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownConversation(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteConversation(r.Context(), c.ID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	c, err := s.store.GetConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Members of a team the conversation was shared with may read it too.
	if c.UserID != profile.ID {
		shared, err := s.store.ListSharedConversations(r.Context(), profile.ID)
		if err != nil {
			s.respondError(w, err)
			return
		}
		visible := false
		for _, sc := range shared {
			if sc.ID == c.ID {
				visible = true
				break
			}
		}
		if !visible {
			respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
			return
		}
	}

	msgs, err := s.store.ListMessages(r.Context(), c.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]messageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageJSON(m))
	}
	respondJSON(w, http.StatusOK, out)
}

type shareRequest struct {
	TeamID string `json:"team_id"`
}

func (s *Server) handleShareConversation(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	c, ok := s.ownConversation(w, r)
	if !ok {
		return
	}
	var req shareRequest
	if err := decodeBody(r, &req); err != nil || req.TeamID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "team_id is required"})
		return
	}

	member, err := s.store.IsTeamMember(r.Context(), req.TeamID, profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !member {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "not a member of that team"})
		return
	}

	sc, err := s.store.ShareConversation(r.Context(), c.ID, profile.ID, req.TeamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":              sc.ID,
		"conversation_id": sc.ConversationID,
		"team_id":         sc.TeamID,
	})
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	cs, err := s.store.ListSharedConversations(r.Context(), profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toConversationList(cs))
}

type createTeamRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	var req createTeamRequest
	if err := decodeBody(r, &req); err != nil || req.Name == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "name is required"})
		return
	}
	t, err := s.store.CreateTeam(r.Context(), req.Name, profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	ts, err := s.store.ListTeamsForUser(r.Context(), profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ts)
}

type addMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) handleAddTeamMember(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	teamID := mux.Vars(r)["id"]

	t, err := s.store.GetTeam(r.Context(), teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if t.OwnerID != profile.ID {
		respondJSON(w, http.StatusForbidden, errorBody{Error: "only the team owner can add members"})
		return
	}

	var req addMemberRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == "" {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	if _, err := s.store.GetProfileByID(r.Context(), req.UserID); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.AddTeamMember(r.Context(), teamID, req.UserID, req.Role); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTeamMembers(w http.ResponseWriter, r *http.Request) {
	profile := profileFrom(r.Context())
	teamID := mux.Vars(r)["id"]

	member, err := s.store.IsTeamMember(r.Context(), teamID, profile.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !member {
		respondJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		return
	}

	ms, err := s.store.ListTeamMembers(r.Context(), teamID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ms)
}
