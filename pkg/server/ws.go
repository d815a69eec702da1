package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/notify"
)

// handleWebSocket upgrades the connection and streams the session's
// notification feed. The pending backlog is replayed first so a client
// that reconnects mid-session sees every operation still awaiting a
// decision.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.deps.Logger.Warn(logging.CategoryNetwork, "ws_accept_failed", err.Error(), map[string]any{
			"session_id": sessionID,
		})
		return
	}

	sub := notify.NewWSSubscriber(conn)
	unsubscribe := s.deps.Hub.Subscribe(sessionID, sub)
	defer unsubscribe()

	wsClients.Inc()
	defer wsClients.Dec()

	s.deps.Logger.Info(logging.CategoryNetwork, "ws_connected", sessionID, nil)

	for _, op := range s.deps.Store.PendingBySession(sessionID) {
		if err := sub.Send(notify.PendingMessage(op)); err != nil {
			break
		}
	}

	ctx := r.Context()

	// Drain reads so pings are answered and a client close is noticed;
	// the feed is one-way otherwise.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	if err := sub.WriteLoop(ctx); err != nil {
		s.deps.Logger.Info(logging.CategoryNetwork, "ws_disconnected", sessionID, map[string]any{
			"reason": err.Error(),
		})
	}
	sub.Close(websocket.StatusNormalClosure, "")
}
