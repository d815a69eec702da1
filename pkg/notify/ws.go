package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nhooyr.io/websocket"
)

const (
	// wsSendBuffer is how many undelivered messages a connection may
	// accumulate before it counts as a slow consumer.
	wsSendBuffer = 64

	wsWriteTimeout = 15 * time.Second
)

// ErrSlowConsumer means a connection's send buffer filled up. The hub
// treats it as a dead subscriber.
var ErrSlowConsumer = errors.New("notify: websocket send buffer full")

// wsConn is the slice of *websocket.Conn the subscriber needs; tests
// substitute a fake.
type wsConn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
}

// WSSubscriber adapts a WebSocket connection into a hub Subscriber.
// Send only enqueues; a single WriteLoop goroutine owns the socket
// writes, so a stalled peer never blocks the notifying goroutine.
type WSSubscriber struct {
	conn wsConn
	send chan Message
}

// NewWSSubscriber wraps an accepted connection.
func NewWSSubscriber(conn *websocket.Conn) *WSSubscriber {
	return newWSSubscriber(conn)
}

func newWSSubscriber(conn wsConn) *WSSubscriber {
	return &WSSubscriber{
		conn: conn,
		send: make(chan Message, wsSendBuffer),
	}
}

// Send implements Subscriber.
func (s *WSSubscriber) Send(msg Message) error {
	select {
	case s.send <- msg:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// WriteLoop drains the send buffer onto the socket until ctx is
// cancelled or a write fails. Call it from the connection's handler
// goroutine.
func (s *WSSubscriber) WriteLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-s.send:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err = s.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the underlying connection.
func (s *WSSubscriber) Close(status websocket.StatusCode, reason string) {
	_ = s.conn.Close(status, reason)
}
