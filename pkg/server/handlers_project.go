package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/provider"
	"github.com/auralabs/aura/pkg/research"
)

type compileRequest struct {
	MainFile string `json:"main_file,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	projectPath, err := s.projectPath(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req compileRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := s.deps.Compiler.Compile(r.Context(), projectPath, req.MainFile)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type citationRequest struct {
	PaperID string `json:"paper_id"`
	CiteKey string `json:"cite_key,omitempty"`
}

// handleAddCitation resolves a paper (arXiv id or free-text query),
// renders its BibTeX, and appends it to the project's bibliography.
func (s *Server) handleAddCitation(w http.ResponseWriter, r *http.Request) {
	projectPath, err := s.projectPath(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req citationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.PaperID == "" {
		respondError(w, errors.New(errors.ErrCodeInvalidInput, "paper_id is required"))
		return
	}

	var paper *research.Paper
	if strings.HasPrefix(req.PaperID, "arxiv:") || looksLikeArxivID(req.PaperID) {
		paper, err = s.deps.Arxiv.FetchByID(r.Context(), req.PaperID)
	} else {
		paper, err = s.deps.Arxiv.SearchFirst(r.Context(), req.PaperID)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	bibFile := research.FindBibFile(projectPath)
	msg, err := research.AddToBibliography(projectPath, bibFile, paper, req.CiteKey)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": msg,
		"paper":   paper,
	})
}

func looksLikeArxivID(s string) bool {
	trimmed := strings.NewReplacer(".", "", "v", "").Replace(s)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type noteRequest struct {
	Section string `json:"section,omitempty"`
	Content string `json:"content"`
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	projectPath, err := s.projectPath(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, err)
		return
	}
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.Content == "" {
		respondError(w, errors.New(errors.ErrCodeInvalidInput, "content is required"))
		return
	}
	id, err := s.deps.Audit.AddNote(r.Context(), projectPath, req.Section, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	projectPath, err := s.projectPath(chi.URLParam(r, "project"))
	if err != nil {
		respondError(w, err)
		return
	}
	md, err := s.deps.Audit.MemoryMarkdown(r.Context(), projectPath)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"memory": md})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"providers": s.deps.Providers.List(),
		"active":    s.deps.Providers.Active().Name(),
	})
}

func (s *Server) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	var cfg provider.Config
	if err := decodeBody(r, &cfg); err != nil {
		respondError(w, err)
		return
	}
	if err := s.deps.Providers.Add(cfg); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"name": cfg.Name})
}

func (s *Server) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Providers.Remove(chi.URLParam(r, "name")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"active": s.deps.Providers.Active().Name()})
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Providers.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, err)
		return
	}
	if err := p.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type activeProviderRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetActiveProvider(w http.ResponseWriter, r *http.Request) {
	var req activeProviderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := s.deps.Providers.SetActive(req.Name); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"active": req.Name})
}
