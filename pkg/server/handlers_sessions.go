package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auralabs/aura/pkg/errors"
)

type openSessionRequest struct {
	Project string `json:"project"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		respondError(w, errors.New(errors.ErrCodeInvalidState, "agent is not configured"))
		return
	}
	var req openSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	projectPath, err := s.projectPath(req.Project)
	if err != nil {
		respondError(w, err)
		return
	}
	session := s.deps.Sessions.Open(projectPath)
	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": session.ID,
		"project":    req.Project,
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		respondError(w, errors.New(errors.ErrCodeInvalidState, "agent is not configured"))
		return
	}
	s.deps.Sessions.Close(chi.URLParam(r, "sessionID"))
	respondJSON(w, http.StatusOK, map[string]any{"closed": true})
}

type promptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// handlePrompt runs one agent turn. Mutating tool calls surface in the
// reply as queued markers; the actual writes wait for approval.
func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if s.deps.Agent == nil || s.deps.Sessions == nil {
		respondError(w, errors.New(errors.ErrCodeInvalidState, "agent is not configured"))
		return
	}
	session, err := s.deps.Sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req promptRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	reply, err := s.deps.Agent.RunTurn(r.Context(), session, req.Prompt, req.Model)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reply":   reply,
		"pending": s.deps.Store.PendingBySession(session.ID),
	})
}
