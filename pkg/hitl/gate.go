package hitl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GateMode selects how the approval gate handles a mutating tool call.
type GateMode string

const (
	// GateModeAsync queues the operation and returns immediately; the
	// executor performs the mutation later, once approved.
	GateModeAsync GateMode = "async"

	// GateModeBlocking suspends the calling turn until a decision
	// arrives or the wait times out.
	GateModeBlocking GateMode = "blocking"
)

// DefaultBlockTimeout caps how long a blocking-mode call waits for a
// human decision before treating silence as rejection.
const DefaultBlockTimeout = 5 * time.Minute

// Decision is the gate's answer for one tool call.
type Decision struct {
	// Proceed means the caller may run the mutation now, using
	// ModifiedArgs when non-nil.
	Proceed      bool
	ModifiedArgs map[string]any

	// Message carries the queued marker (async mode) or the
	// rejection/timeout explanation returned to the agent.
	Message string

	// OperationID is set whenever an operation was created.
	OperationID string

	// Queued means the operation awaits out-of-band execution.
	Queued bool
}

// CheckParams describes the tool call being gated.
type CheckParams struct {
	SessionID string
	ToolName  string
	ToolArgs  map[string]any

	// Diff preview, captured by the tool before calling the gate.
	FilePath   string
	OldContent string
	NewContent string

	// Timeout overrides the store's default expiry when positive.
	Timeout time.Duration
}

// ApprovalChecker reports whether a tool needs human sign-off. Satisfied
// by the tools registry.
type ApprovalChecker interface {
	NeedsApproval(toolName string) bool
}

// Waiters routes store status changes to blocked gate calls. It is a
// store listener, constructed before the store so wiring stays purely
// constructor-injected.
type Waiters struct {
	mu sync.Mutex
	ch map[string]chan *Operation
}

// NewWaiters creates an empty waiter registry.
func NewWaiters() *Waiters {
	return &Waiters{ch: make(map[string]chan *Operation)}
}

// OperationAdded implements Listener.
func (w *Waiters) OperationAdded(op *Operation) {}

// StatusChanged implements Listener. Decisions wake the waiting call;
// execution progress updates are ignored.
func (w *Waiters) StatusChanged(op *Operation) {
	switch op.Status {
	case StatusApproved, StatusRejected, StatusExpired:
	default:
		return
	}
	w.mu.Lock()
	ch, ok := w.ch[op.OperationID]
	if ok {
		delete(w.ch, op.OperationID)
	}
	w.mu.Unlock()
	if ok {
		ch <- op // buffered, never blocks
	}
}

func (w *Waiters) register(operationID string) chan *Operation {
	ch := make(chan *Operation, 1)
	w.mu.Lock()
	w.ch[operationID] = ch
	w.mu.Unlock()
	return ch
}

func (w *Waiters) unregister(operationID string) {
	w.mu.Lock()
	delete(w.ch, operationID)
	w.mu.Unlock()
}

// Gate is the decision point every mutating tool call passes through
// before the mutation is allowed to run.
type Gate struct {
	store        *Store
	checker      ApprovalChecker
	waiters      *Waiters
	mode         GateMode
	blockTimeout time.Duration
}

// NewGate creates a gate. waiters must be registered as a listener on the
// store for blocking mode to resolve; it may be nil in async mode.
func NewGate(store *Store, checker ApprovalChecker, waiters *Waiters, mode GateMode, blockTimeout time.Duration) *Gate {
	if blockTimeout <= 0 {
		blockTimeout = DefaultBlockTimeout
	}
	return &Gate{
		store:        store,
		checker:      checker,
		waiters:      waiters,
		mode:         mode,
		blockTimeout: blockTimeout,
	}
}

// Check gates one tool call. Tools outside the approval-required set
// proceed immediately. Otherwise the call is queued; in async mode the
// returned message embeds the operation id and the mutation happens
// later, in blocking mode the call waits for the decision.
func (g *Gate) Check(ctx context.Context, p CheckParams) Decision {
	if g.checker != nil && !g.checker.NeedsApproval(p.ToolName) {
		return Decision{Proceed: true}
	}

	if g.mode == GateModeAsync {
		op := g.store.AddOperation(AddParams{
			SessionID:  p.SessionID,
			ToolName:   p.ToolName,
			ToolArgs:   p.ToolArgs,
			FilePath:   p.FilePath,
			OldContent: p.OldContent,
			NewContent: p.NewContent,
			Timeout:    p.Timeout,
		})
		file := p.FilePath
		if file == "" {
			file = "N/A"
		}
		return Decision{
			Proceed:     false,
			Queued:      true,
			OperationID: op.OperationID,
			Message:     fmt.Sprintf("[PENDING:%s] %s queued for approval. File: %s", op.OperationID, p.ToolName, file),
		}
	}

	return g.checkBlocking(ctx, p)
}

func (g *Gate) checkBlocking(ctx context.Context, p CheckParams) Decision {
	timeout := p.Timeout
	if timeout <= 0 || timeout > g.blockTimeout {
		timeout = g.blockTimeout
	}

	op := g.store.AddOperation(AddParams{
		SessionID:  p.SessionID,
		ToolName:   p.ToolName,
		ToolArgs:   p.ToolArgs,
		FilePath:   p.FilePath,
		OldContent: p.OldContent,
		NewContent: p.NewContent,
		Timeout:    timeout,
	})
	ch := g.waiters.register(op.OperationID)
	defer g.waiters.unregister(op.OperationID)

	// A decision can land between AddOperation's pending announcement and
	// the registration above; a listener reacting to the announcement can
	// approve before any waiter exists. Re-read so that wake-up is not
	// lost to the registration window.
	if cur, ok := g.store.Get(op.OperationID); ok && cur.Status != StatusPending {
		return g.resolvedDecision(cur)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resolved := <-ch:
		return g.resolvedDecision(resolved)
	case <-timer.C:
		// Hard timeout counts as an implicit rejection.
		g.store.Reject(op.OperationID, "approval timeout")
		return Decision{
			OperationID: op.OperationID,
			Message:     "Operation cancelled: approval timeout",
		}
	case <-ctx.Done():
		g.store.Reject(op.OperationID, "caller cancelled")
		return Decision{
			OperationID: op.OperationID,
			Message:     "Operation cancelled: caller cancelled",
		}
	}
}

// resolvedDecision translates a decided operation into the gate's answer.
func (g *Gate) resolvedDecision(op *Operation) Decision {
	switch op.Status {
	case StatusApproved:
		return Decision{
			Proceed:      true,
			ModifiedArgs: op.ToolArgs,
			OperationID:  op.OperationID,
		}
	case StatusRejected:
		return Decision{
			OperationID: op.OperationID,
			Message:     fmt.Sprintf("Operation cancelled: %s", op.RejectionReason),
		}
	default: // expired
		return Decision{
			OperationID: op.OperationID,
			Message:     "Operation cancelled: approval expired",
		}
	}
}
