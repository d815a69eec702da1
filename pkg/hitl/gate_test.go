package hitl

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type staticChecker map[string]bool

func (c staticChecker) NeedsApproval(toolName string) bool { return c[toolName] }

func TestGate_ReadOnlyToolProceeds(t *testing.T) {
	s := NewStore(StoreConfig{})
	g := NewGate(s, staticChecker{"write_file": true}, nil, GateModeAsync, 0)

	d := g.Check(context.Background(), CheckParams{
		SessionID: "sess-1",
		ToolName:  "read_file",
	})
	if !d.Proceed {
		t.Fatal("read-only tool should proceed without an operation")
	}
	if d.OperationID != "" || s.Len() != 0 {
		t.Error("no operation should be created for ungated tools")
	}
}

func TestGate_AsyncQueuesWithMarker(t *testing.T) {
	s := NewStore(StoreConfig{})
	g := NewGate(s, staticChecker{"write_file": true}, nil, GateModeAsync, 0)

	d := g.Check(context.Background(), CheckParams{
		SessionID: "sess-1",
		ToolName:  "write_file",
		ToolArgs:  map[string]any{"filepath": "main.tex", "content": "x"},
		FilePath:  "main.tex",
	})
	if d.Proceed {
		t.Fatal("gated tool must not proceed in async mode")
	}
	if !d.Queued || d.OperationID == "" {
		t.Fatal("async decision should carry the queued operation id")
	}
	marker := fmt.Sprintf("[PENDING:%s]", d.OperationID)
	if !strings.HasPrefix(d.Message, marker) {
		t.Errorf("message should start with %q, got %q", marker, d.Message)
	}
	if !strings.Contains(d.Message, "main.tex") {
		t.Errorf("message should name the file, got %q", d.Message)
	}

	op, ok := s.Get(d.OperationID)
	if !ok || op.Status != StatusPending {
		t.Error("queued operation should be pending in the store")
	}
}

func TestGate_BlockingApproveReturnsEditedArgs(t *testing.T) {
	w := NewWaiters()
	s := NewStore(StoreConfig{}, w)
	g := NewGate(s, staticChecker{"write_file": true}, w, GateModeBlocking, time.Second)

	done := make(chan Decision, 1)
	go func() {
		done <- g.Check(context.Background(), CheckParams{
			SessionID: "sess-1",
			ToolName:  "write_file",
			ToolArgs:  map[string]any{"filepath": "main.tex", "content": "draft"},
			FilePath:  "main.tex",
		})
	}()

	var pending []*Operation
	for i := 0; i < 100; i++ {
		pending = s.PendingBySession("sess-1")
		if len(pending) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(pending) != 1 {
		t.Fatal("blocked call never queued its operation")
	}
	if err := s.Approve(pending[0].OperationID, map[string]any{"content": "final"}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	select {
	case d := <-done:
		if !d.Proceed {
			t.Fatalf("approved call should proceed, got %+v", d)
		}
		if d.ModifiedArgs["content"] != "final" {
			t.Errorf("approver's edit should reach the caller, got %v", d.ModifiedArgs)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked call never woke up")
	}
}

func TestGate_BlockingRejectExplains(t *testing.T) {
	w := NewWaiters()
	s := NewStore(StoreConfig{}, w)
	g := NewGate(s, staticChecker{"edit_file": true}, w, GateModeBlocking, time.Second)

	done := make(chan Decision, 1)
	go func() {
		done <- g.Check(context.Background(), CheckParams{
			SessionID: "sess-1",
			ToolName:  "edit_file",
			ToolArgs:  map[string]any{"filepath": "main.tex"},
		})
	}()

	var pending []*Operation
	for i := 0; i < 100; i++ {
		pending = s.PendingBySession("sess-1")
		if len(pending) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(pending) != 1 {
		t.Fatal("blocked call never queued its operation")
	}
	s.Reject(pending[0].OperationID, "keep the old phrasing")

	select {
	case d := <-done:
		if d.Proceed {
			t.Fatal("rejected call must not proceed")
		}
		if !strings.Contains(d.Message, "keep the old phrasing") {
			t.Errorf("rejection reason should reach the caller, got %q", d.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked call never woke up")
	}
}

func TestGate_BlockingTimeoutRejects(t *testing.T) {
	w := NewWaiters()
	s := NewStore(StoreConfig{}, w)
	g := NewGate(s, staticChecker{"write_file": true}, w, GateModeBlocking, 30*time.Millisecond)

	d := g.Check(context.Background(), CheckParams{
		SessionID: "sess-1",
		ToolName:  "write_file",
		ToolArgs:  map[string]any{"filepath": "main.tex"},
	})
	if d.Proceed {
		t.Fatal("timed-out call must not proceed")
	}
	if !strings.Contains(d.Message, "timeout") {
		t.Errorf("expected timeout explanation, got %q", d.Message)
	}

	op, _ := s.Get(d.OperationID)
	if op.Status != StatusRejected {
		t.Errorf("timeout should record an implicit rejection, got %s", op.Status)
	}
}

func TestGate_BlockingCancelledContext(t *testing.T) {
	w := NewWaiters()
	s := NewStore(StoreConfig{}, w)
	g := NewGate(s, staticChecker{"write_file": true}, w, GateModeBlocking, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Decision, 1)
	go func() {
		done <- g.Check(ctx, CheckParams{
			SessionID: "sess-1",
			ToolName:  "write_file",
			ToolArgs:  map[string]any{"filepath": "main.tex"},
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case d := <-done:
		if d.Proceed {
			t.Fatal("cancelled call must not proceed")
		}
		op, _ := s.Get(d.OperationID)
		if op.Status != StatusRejected {
			t.Errorf("cancellation should reject the operation, got %s", op.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled call never returned")
	}
}

// approveOnAdd decides the moment the pending announcement fires, before
// the gate has had any chance to start waiting.
type approveOnAdd struct {
	store *Store
}

func (a *approveOnAdd) OperationAdded(op *Operation) {
	a.store.Approve(op.OperationID, map[string]any{"content": "edited"})
}

func (a *approveOnAdd) StatusChanged(op *Operation) {}

func TestGate_BlockingDecisionBeforeWaitIsNotLost(t *testing.T) {
	w := NewWaiters()
	early := &approveOnAdd{}
	s := NewStore(StoreConfig{}, early, w)
	early.store = s
	g := NewGate(s, staticChecker{"write_file": true}, w, GateModeBlocking, 200*time.Millisecond)

	d := g.Check(context.Background(), CheckParams{
		SessionID: "sess-1",
		ToolName:  "write_file",
		ToolArgs:  map[string]any{"filepath": "main.tex", "content": "draft"},
	})
	if !d.Proceed {
		t.Fatalf("decision made before the wait began should still proceed, got %+v", d)
	}
	if d.ModifiedArgs["content"] != "edited" {
		t.Errorf("early approval's edit should reach the caller, got %v", d.ModifiedArgs)
	}
	op, _ := s.Get(d.OperationID)
	if op.Status != StatusApproved {
		t.Errorf("store should hold the approval, got %s", op.Status)
	}
}
