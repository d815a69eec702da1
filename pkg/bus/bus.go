// Package bus is the event transport between backend processes. The
// notification hub mirrors session events onto it so external consumers
// (a review dashboard, a CI hook) can follow approvals without holding a
// WebSocket to every session. NATS is the production transport; the
// in-memory bus serves single-process deployments and tests.
package bus

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when operating on a closed bus or
	// subscription.
	ErrClosed = errors.New("bus: closed")
)

// Subject layout: "aura.hitl.<session_id>.<message_type>". SubjectHITL
// builds one; subscribe with wildcards to follow a whole session
// ("aura.hitl.sess-1.*") or everything ("aura.hitl.>").
func SubjectHITL(sessionID, messageType string) string {
	return "aura.hitl." + sessionID + "." + messageType
}

// MessageBus publishes and subscribes. Implementations are safe for
// concurrent use.
type MessageBus interface {
	// Publish sends to all subscribers of the subject. Fire and
	// forget; delivery is not awaited.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler. Each message is handled on the
	// subscription's own goroutine. Patterns support "*" for one token
	// and ">" for the rest.
	Subscribe(ctx context.Context, subject string, handler Handler) (Subscription, error)

	// Close shuts down the bus and every subscription.
	Close() error
}

// Handler processes one incoming message.
type Handler func(msg *Message)

// Message is one event on the bus.
type Message struct {
	ID        string
	Subject   string
	Data      []byte
	Timestamp time.Time
}

// Subscription is an active subscription.
type Subscription interface {
	Unsubscribe() error
	Subject() string
}

// Config configures a bus.
type Config struct {
	// URL is the NATS server URL; ignored by the in-memory bus.
	URL string

	// Name identifies this client to the server.
	Name string

	// Timeout bounds connection establishment.
	Timeout time.Duration
}

// DefaultConfig returns usable defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "nats://localhost:4222",
		Name:    "aura",
		Timeout: 30 * time.Second,
	}
}
