package hitl

import (
	"context"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/tools"
)

// ResultNotifier pushes final execution outcomes to a session. The
// executor may not hold a live operation reference when it reports, so
// the payload carries ids rather than the full record.
type ResultNotifier interface {
	NotifyExecutionResult(sessionID, operationID string, status Status, result, execErr string) int
}

// BatchResult is the per-operation outcome of ExecuteBatch.
type BatchResult struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor performs the side-effecting action for approved operations,
// exactly once each, and records the outcome in the store. The store
// record is the durable result; the returned error is for the immediate
// caller's control flow.
type Executor struct {
	store    *Store
	notifier ResultNotifier
	logger   *logging.Logger
}

// NewExecutor creates an executor. notifier may be nil.
func NewExecutor(store *Store, notifier ResultNotifier, logger *logging.Logger) *Executor {
	return &Executor{store: store, notifier: notifier, logger: logger}
}

// ExecuteOperation runs an approved operation against the project.
//
// The approved-to-executing transition is a single atomic claim on the
// store, so of two racing attempts exactly one performs the mutation and
// the other is refused. On failure the store records failed plus the
// error message before the error is returned.
func (e *Executor) ExecuteOperation(ctx context.Context, operationID, projectPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTimeout, "execution cancelled")
	}

	op, err := e.store.ClaimForExecution(operationID)
	if err == ErrNotFound {
		return "", errors.Newf(errors.ErrCodeNotFound, "operation not found: %s", operationID)
	}
	if err != nil {
		status := Status("unknown")
		if cur, ok := e.store.Get(operationID); ok {
			status = cur.Status
		}
		return "", errors.Newf(errors.ErrCodeInvalidState, "operation not approved: %s", status)
	}

	result, err := e.dispatch(op, projectPath)
	if err != nil {
		e.store.UpdateExecutionStatus(operationID, StatusFailed, "", err.Error())
		if e.notifier != nil {
			e.notifier.NotifyExecutionResult(op.SessionID, operationID, StatusFailed, "", err.Error())
		}
		e.logger.Error(logging.CategoryHITL, "execution_failed", err.Error(), map[string]any{
			"operation_id": operationID,
			"tool":         op.ToolName,
		})
		return "", err
	}

	e.store.UpdateExecutionStatus(operationID, StatusCompleted, result, "")
	if e.notifier != nil {
		e.notifier.NotifyExecutionResult(op.SessionID, operationID, StatusCompleted, result, "")
	}
	e.logger.Info(logging.CategoryHITL, "execution_completed", result, map[string]any{
		"operation_id": operationID,
		"tool":         op.ToolName,
	})
	return result, nil
}

// ExecuteBatch runs approved operations sequentially. One failure never
// stops the rest; each outcome is captured independently.
func (e *Executor) ExecuteBatch(ctx context.Context, operationIDs []string, projectPath string) map[string]BatchResult {
	results := make(map[string]BatchResult, len(operationIDs))
	for _, id := range operationIDs {
		result, err := e.ExecuteOperation(ctx, id, projectPath)
		if err != nil {
			results[id] = BatchResult{Success: false, Error: err.Error()}
			continue
		}
		results[id] = BatchResult{Success: true, Result: result}
	}
	return results
}

// dispatch maps a tool name to its mutation. The path-safety check lives
// inside the tools package and runs before any write.
func (e *Executor) dispatch(op *Operation, projectPath string) (string, error) {
	switch op.ToolName {
	case tools.ToolWriteFile:
		return tools.WriteFile(projectPath,
			stringArg(op.ToolArgs, "filepath"),
			stringArg(op.ToolArgs, "content"))
	case tools.ToolEditFile:
		return tools.EditFile(projectPath,
			stringArg(op.ToolArgs, "filepath"),
			stringArg(op.ToolArgs, "old_string"),
			stringArg(op.ToolArgs, "new_string"))
	default:
		return "", errors.Newf(errors.ErrCodeUnknownTool, "unknown tool: %s", op.ToolName)
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
