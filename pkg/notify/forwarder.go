package notify

import (
	"context"
	"encoding/json"

	"github.com/auralabs/aura/pkg/bus"
	"github.com/auralabs/aura/pkg/logging"
)

// BusForwarder mirrors every hub message onto the message bus under
// "aura.hitl.<session_id>.<type>", letting out-of-process consumers
// follow approvals without a WebSocket per session.
type BusForwarder struct {
	bus    bus.MessageBus
	logger *logging.Logger
}

// NewBusForwarder creates a forwarder.
func NewBusForwarder(b bus.MessageBus, logger *logging.Logger) *BusForwarder {
	return &BusForwarder{bus: b, logger: logger}
}

// Forward implements Forwarder. Publish failures are logged, never
// propagated: the bus mirror is best-effort and must not break direct
// subscriber delivery.
func (f *BusForwarder) Forward(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	subject := bus.SubjectHITL(msg.SessionID, msg.Type)
	if err := f.bus.Publish(context.Background(), subject, data); err != nil {
		f.logger.Warn(logging.CategoryNetwork, "bus_forward_failed", err.Error(), map[string]any{
			"subject": subject,
		})
	}
}
