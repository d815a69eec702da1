// Package hitl implements the human-in-the-loop approval pipeline: a
// store of pending operations with an explicit state machine, an executor
// that performs approved mutations, and a gate that intercepts mutating
// tool calls before they reach the filesystem.
package hitl

import (
	"time"
)

// Status is the lifecycle state of a pending operation.
//
// Transitions: pending -> approved | rejected | expired;
// approved -> executing -> completed | failed. Everything except pending,
// approved, and executing is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// DiffPreview is the before/after snapshot shown to the approver. It is
// captured when the operation is queued, not when it executes, so the
// preview stays accurate even if the file changes in between.
type DiffPreview struct {
	FilePath   string `json:"file_path"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
}

// Operation is a mutating tool call waiting for (or having received) a
// human decision. The Store owns the authoritative copy; callers receive
// clones and must route every mutation through Store methods.
type Operation struct {
	OperationID string         `json:"operation_id"`
	SessionID   string         `json:"session_id"`
	ToolName    string         `json:"tool_name"`
	ToolArgs    map[string]any `json:"tool_args"`

	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	FilePath   string `json:"file_path,omitempty"`
	OldContent string `json:"old_content,omitempty"`
	NewContent string `json:"new_content,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`
}

// IsExpired reports whether the approval deadline has passed.
func (o *Operation) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

// Diff returns the preview for file operations, or nil when there is
// nothing to show.
func (o *Operation) Diff() *DiffPreview {
	if o.FilePath == "" {
		return nil
	}
	if o.OldContent == "" && o.NewContent == "" {
		return nil
	}
	return &DiffPreview{
		FilePath:   o.FilePath,
		OldContent: o.OldContent,
		NewContent: o.NewContent,
	}
}

// clone returns a deep copy so callers can never mutate the store's
// authoritative record through a shared map or pointer.
func (o *Operation) clone() *Operation {
	cp := *o
	if o.ToolArgs != nil {
		cp.ToolArgs = make(map[string]any, len(o.ToolArgs))
		for k, v := range o.ToolArgs {
			cp.ToolArgs[k] = v
		}
	}
	if o.ResolvedAt != nil {
		t := *o.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
