package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
)

// OperationRecord is one row of the audit trail.
type OperationRecord struct {
	OperationID     string         `json:"operation_id"`
	SessionID       string         `json:"session_id"`
	ToolName        string         `json:"tool_name"`
	ToolArgs        map[string]any `json:"tool_args"`
	Status          string         `json:"status"`
	Result          string         `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// RecordOperation upserts an operation into the audit log. Later
// transitions for the same id overwrite the row, so the log always holds
// the final state.
func (s *Store) RecordOperation(ctx context.Context, op *hitl.Operation) error {
	args, err := json.Marshal(op.ToolArgs)
	if err != nil {
		args = []byte("{}")
	}

	var resolvedAt any
	if op.ResolvedAt != nil {
		resolvedAt = op.ResolvedAt.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations_log
			(operation_id, session_id, tool_name, tool_args, status,
			 result, error, rejection_reason, file_path, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(operation_id) DO UPDATE SET
			status=excluded.status,
			tool_args=excluded.tool_args,
			result=excluded.result,
			error=excluded.error,
			rejection_reason=excluded.rejection_reason,
			resolved_at=excluded.resolved_at
	`, op.OperationID, op.SessionID, op.ToolName, string(args), string(op.Status),
		op.Result, op.Error, op.RejectionReason, op.FilePath, op.CreatedAt.UTC(), resolvedAt)
	if err != nil {
		return err
	}
	s.emit(EventOperationRecorded, op.SessionID, op.OperationID)
	return nil
}

// OperationHistory returns the audit rows for a session, newest first.
func (s *Store) OperationHistory(ctx context.Context, sessionID string, limit int) ([]*OperationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, session_id, tool_name, tool_args, status,
		       result, error, rejection_reason, file_path, created_at, resolved_at
		FROM operations_log
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*OperationRecord
	for rows.Next() {
		var rec OperationRecord
		var args string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&rec.OperationID, &rec.SessionID, &rec.ToolName, &args, &rec.Status,
			&rec.Result, &rec.Error, &rec.RejectionReason, &rec.FilePath, &rec.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(args), &rec.ToolArgs); err != nil {
			rec.ToolArgs = map[string]any{}
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			rec.ResolvedAt = &t
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// AuditListener mirrors terminal operation states into the audit log.
// It implements hitl.Listener; plug it into the store's constructor.
type AuditListener struct {
	store  *Store
	logger *logging.Logger
}

// NewAuditListener creates a listener writing to store.
func NewAuditListener(store *Store, logger *logging.Logger) *AuditListener {
	return &AuditListener{store: store, logger: logger}
}

// OperationAdded implements hitl.Listener. Pending operations are not
// persisted; only outcomes are.
func (l *AuditListener) OperationAdded(op *hitl.Operation) {}

// StatusChanged implements hitl.Listener.
func (l *AuditListener) StatusChanged(op *hitl.Operation) {
	switch op.Status {
	case hitl.StatusApproved, hitl.StatusRejected, hitl.StatusExpired,
		hitl.StatusCompleted, hitl.StatusFailed:
	default:
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.RecordOperation(ctx, op); err != nil {
		l.logger.Error(logging.CategoryStorage, "audit_write_failed", err.Error(), map[string]any{
			"operation_id": op.OperationID,
		})
	}
}
