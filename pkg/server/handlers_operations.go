package server

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/hitl"
)

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operationID")
	op, ok := s.deps.Store.Get(id)
	if !ok {
		respondError(w, hitl.ErrNotFound)
		return
	}
	respondJSON(w, http.StatusOK, op)
}

type approveRequest struct {
	ModifiedArgs map[string]any `json:"modified_args,omitempty"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operationID")
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.deps.Store.Approve(id, req.ModifiedArgs); err != nil {
		respondError(w, err)
		return
	}
	op, _ := s.deps.Store.Get(id)
	respondJSON(w, http.StatusOK, op)
}

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operationID")
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.deps.Store.Reject(id, req.Reason); err != nil {
		respondError(w, err)
		return
	}
	op, _ := s.deps.Store.Get(id)
	respondJSON(w, http.StatusOK, op)
}

type batchRequest struct {
	Action       string   `json:"action"`
	OperationIDs []string `json:"operation_ids"`
	Reason       string   `json:"reason,omitempty"`
}

// handleBatch decides several operations at once. Each outcome is
// independent; the response maps operation id to "ok" or the refusal.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.OperationIDs) == 0 {
		respondError(w, errors.New(errors.ErrCodeInvalidInput, "operation_ids is required"))
		return
	}

	var results map[string]error
	switch req.Action {
	case "approve":
		results = s.deps.Store.BatchApprove(req.OperationIDs)
	case "reject":
		results = s.deps.Store.BatchReject(req.OperationIDs, req.Reason)
	default:
		respondError(w, errors.Newf(errors.ErrCodeInvalidInput, "action must be approve or reject, got %q", req.Action))
		return
	}

	out := make(map[string]string, len(results))
	for id, err := range results {
		if err == nil {
			out[id] = "ok"
		} else {
			out[id] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

type executeRequest struct {
	Project string `json:"project"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "operationID")
	var req executeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	projectPath, err := s.projectPath(req.Project)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := s.deps.Executor.ExecuteOperation(r.Context(), id, projectPath)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"result": result})
}

type executeBatchRequest struct {
	OperationIDs []string `json:"operation_ids"`
	Project      string   `json:"project"`
}

func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req executeBatchRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.OperationIDs) == 0 {
		respondError(w, errors.New(errors.ErrCodeInvalidInput, "operation_ids is required"))
		return
	}
	projectPath, err := s.projectPath(req.Project)
	if err != nil {
		respondError(w, err)
		return
	}
	results := s.deps.Executor.ExecuteBatch(r.Context(), req.OperationIDs, projectPath)
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSessionOperations(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ops := s.deps.Store.AllBySession(sessionID)
	respondJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (s *Server) handleSessionPending(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ops := s.deps.Store.PendingBySession(sessionID)
	respondJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	records, err := s.deps.Audit.OperationHistory(r.Context(), sessionID, 100)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"history": records})
}

// projectPath maps a project name onto the configured projects
// directory. Names are single path elements; anything else is refused
// before it reaches the filesystem.
func (s *Server) projectPath(project string) (string, error) {
	if project == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "project is required")
	}
	if project != filepath.Base(project) || project == ".." || project == "." {
		return "", errors.Newf(errors.ErrCodeInvalidPath, "invalid project name: %s", project)
	}
	return filepath.Join(s.deps.Config.Server.ProjectsDir, project), nil
}
