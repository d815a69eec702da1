package notify

import (
	"sync"

	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
)

// Subscriber receives messages for one session. Send must not block
// indefinitely; a returned error means the subscriber is dead and the
// hub drops it.
type Subscriber interface {
	Send(msg Message) error
}

// Forwarder receives every message regardless of session. Used to mirror
// the notification stream onto the message bus.
type Forwarder interface {
	Forward(msg Message)
}

// Hub routes pipeline events to session subscribers. It implements
// hitl.Listener and hitl.ResultNotifier, so it slots directly into the
// store and executor constructors.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[Subscriber]struct{}

	forwarders []Forwarder
	logger     *logging.Logger
}

// NewHub creates a hub. Forwarders are fixed at construction.
func NewHub(logger *logging.Logger, forwarders ...Forwarder) *Hub {
	return &Hub{
		sessions:   make(map[string]map[Subscriber]struct{}),
		forwarders: forwarders,
		logger:     logger,
	}
}

// Subscribe registers a subscriber for a session and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (h *Hub) Subscribe(sessionID string, sub Subscriber) func() {
	h.mu.Lock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[Subscriber]struct{})
		h.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(sessionID, sub) })
	}
}

// SubscriberCount returns how many subscribers a session has.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// OperationAdded implements hitl.Listener: a new pending operation is
// announced to the session with its rendered diff.
func (h *Hub) OperationAdded(op *hitl.Operation) {
	h.publish(op.SessionID, PendingMessage(op))
}

// StatusChanged implements hitl.Listener: decisions and execution
// progress become status updates.
func (h *Hub) StatusChanged(op *hitl.Operation) {
	h.publish(op.SessionID, statusMessage(op))
}

// NotifyExecutionResult implements hitl.ResultNotifier. Returns the
// number of subscribers reached, so callers can tell whether anyone is
// listening.
func (h *Hub) NotifyExecutionResult(sessionID, operationID string, status hitl.Status, result, execErr string) int {
	return h.publish(sessionID, resultMessage(sessionID, operationID, status, result, execErr))
}

// publish delivers to every live subscriber of the session, pruning the
// ones whose Send fails, then mirrors to the forwarders.
func (h *Hub) publish(sessionID string, msg Message) int {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.sessions[sessionID]))
	for sub := range h.sessions[sessionID] {
		subs = append(subs, sub)
	}
	forwarders := h.forwarders
	h.mu.RUnlock()

	sent := 0
	for _, sub := range subs {
		if err := sub.Send(msg); err != nil {
			h.remove(sessionID, sub)
			h.logger.Warn(logging.CategorySession, "subscriber_dropped", err.Error(), map[string]any{
				"session_id": sessionID,
				"type":       msg.Type,
			})
			continue
		}
		sent++
	}

	for _, f := range forwarders {
		f.Forward(msg)
	}
	return sent
}

func (h *Hub) remove(sessionID string, sub Subscriber) {
	h.mu.Lock()
	if subs, ok := h.sessions[sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	h.mu.Unlock()
}
