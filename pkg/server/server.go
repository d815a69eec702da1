// Package server exposes the approval pipeline over HTTP: a REST
// surface for decisions, a WebSocket stream per session, and the usual
// health and metrics endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auralabs/aura/pkg/agent"
	"github.com/auralabs/aura/pkg/config"
	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/latex"
	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/notify"
	"github.com/auralabs/aura/pkg/provider"
	"github.com/auralabs/aura/pkg/research"
	"github.com/auralabs/aura/pkg/storage"
)

// Deps are the wired subsystems the server fronts. Agent and Sessions
// may be nil when no provider is configured; the agent endpoints then
// refuse with an explanation.
type Deps struct {
	Config    *config.Config
	Store     *hitl.Store
	Executor  *hitl.Executor
	Hub       *notify.Hub
	Audit     *storage.Store
	Providers *provider.Manager
	Compiler  latex.Compiler
	Arxiv     *research.ArxivClient
	Agent     *agent.Agent
	Sessions  *agent.SessionManager
	Logger    *logging.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps   Deps
	tokens *TokenManager
	http   *http.Server
}

// New builds the server and its routes.
func New(deps Deps) *Server {
	s := &Server{deps: deps}
	if secret := deps.Config.Server.JWTSecret; secret != "" {
		s.tokens = NewTokenManager(secret)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/operations", func(r chi.Router) {
			r.Post("/{operationID}/approve", s.handleApprove)
			r.Post("/{operationID}/reject", s.handleReject)
			r.Post("/{operationID}/execute", s.handleExecute)
			r.Get("/{operationID}", s.handleGetOperation)
			r.Post("/batch", s.handleBatch)
			r.Post("/execute-batch", s.handleExecuteBatch)
		})

		r.Post("/sessions", s.handleOpenSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleCloseSession)
			r.Post("/prompt", s.handlePrompt)
			r.Get("/operations", s.handleSessionOperations)
			r.Get("/operations/pending", s.handleSessionPending)
			r.Get("/history", s.handleSessionHistory)
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", s.handleListProviders)
			r.Post("/", s.handleAddProvider)
			r.Delete("/{name}", s.handleRemoveProvider)
			r.Post("/{name}/test", s.handleTestProvider)
			r.Put("/active", s.handleSetActiveProvider)
		})

		r.Route("/projects/{project}", func(r chi.Router) {
			r.Post("/compile", s.handleCompile)
			r.Post("/citations", s.handleAddCitation)
			r.Get("/memory", s.handleGetMemory)
			r.Post("/memory", s.handleAddNote)
		})
	})

	r.Route("/ws", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/sessions/{sessionID}", s.handleWebSocket)
	})

	s.http = &http.Server{
		Addr:              deps.Config.Server.Bind,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.deps.Logger.Info(logging.CategoryNetwork, "server_start", s.http.Addr, nil)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"operations": s.deps.Store.Len(),
	})
}
