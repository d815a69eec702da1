// Package notify fans approval-pipeline events out to interested
// frontends. The Hub keeps an explicit per-session subscriber registry;
// the store reaches it only through the hitl.Listener interface, so the
// state machine never knows how messages travel.
package notify

import (
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/auralabs/aura/pkg/hitl"
)

// Message types pushed to clients.
const (
	TypePendingOperation = "pending_operation"
	TypeStatusUpdate     = "status_update"
	TypeExecutionResult  = "execution_result"
)

// Message is one event on a session's notification stream.
type Message struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	// Operation is the full record, sent with pending_operation.
	Operation *hitl.Operation `json:"operation,omitempty"`

	// Diff is the unified diff rendered from the operation's preview,
	// sent with pending_operation when a preview exists.
	Diff string `json:"diff,omitempty"`

	// Decision and execution updates carry ids rather than the record.
	OperationID string      `json:"operation_id,omitempty"`
	Status      hitl.Status `json:"status,omitempty"`
	Result      string      `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// PendingMessage builds the pending_operation announcement for an
// operation, including its rendered diff. The server also uses it to
// replay the pending backlog to a freshly connected client.
func PendingMessage(op *hitl.Operation) Message {
	return Message{
		Type:      TypePendingOperation,
		SessionID: op.SessionID,
		Timestamp: time.Now(),
		Operation: op,
		Diff:      renderDiff(op.Diff()),
	}
}

func statusMessage(op *hitl.Operation) Message {
	return Message{
		Type:        TypeStatusUpdate,
		SessionID:   op.SessionID,
		Timestamp:   time.Now(),
		OperationID: op.OperationID,
		Status:      op.Status,
		Reason:      op.RejectionReason,
	}
}

func resultMessage(sessionID, operationID string, status hitl.Status, result, execErr string) Message {
	return Message{
		Type:        TypeExecutionResult,
		SessionID:   sessionID,
		Timestamp:   time.Now(),
		OperationID: operationID,
		Status:      status,
		Result:      result,
		Error:       execErr,
	}
}

// renderDiff turns the before/after preview into a unified diff so
// frontends don't each reimplement diffing.
func renderDiff(preview *hitl.DiffPreview) string {
	if preview == nil {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(preview.OldContent),
		B:        difflib.SplitLines(preview.NewContent),
		FromFile: preview.FilePath,
		ToFile:   preview.FilePath,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}
