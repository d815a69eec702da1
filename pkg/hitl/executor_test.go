package hitl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/logging"
)

type recordingNotifier struct {
	mu      sync.Mutex
	results []Status
}

func (r *recordingNotifier) NotifyExecutionResult(sessionID, operationID string, status Status, result, execErr string) int {
	r.mu.Lock()
	r.results = append(r.results, status)
	r.mu.Unlock()
	return 1
}

func newTestExecutor(s *Store) (*Executor, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewExecutor(s, n, logging.Nop()), n
}

func queueWrite(s *Store, relPath, content string) *Operation {
	return s.AddOperation(AddParams{
		SessionID:  "sess-1",
		ToolName:   "write_file",
		ToolArgs:   map[string]any{"filepath": relPath, "content": content},
		FilePath:   relPath,
		NewContent: content,
	})
}

func TestExecutor_WriteFileCompletes(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{})
	e, n := newTestExecutor(s)

	op := queueWrite(s, "chapters/intro.tex", "\\section{Intro}")
	if err := s.Approve(op.OperationID, nil); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	result, err := e.ExecuteOperation(context.Background(), op.OperationID, dir)
	if err != nil {
		t.Fatalf("ExecuteOperation failed: %v", err)
	}
	if !strings.Contains(result, "chapters/intro.tex") {
		t.Errorf("result should name the file, got %q", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "chapters", "intro.tex"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "\\section{Intro}" {
		t.Errorf("unexpected content: %q", data)
	}

	got, _ := s.Get(op.OperationID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Result == "" {
		t.Error("result should be recorded in the store")
	}
	if len(n.results) != 1 || n.results[0] != StatusCompleted {
		t.Errorf("notifier should see one completed result, got %v", n.results)
	}
}

func TestExecutor_RefusesNonApproved(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{})
	e, _ := newTestExecutor(s)

	op := queueWrite(s, "a.tex", "x")
	_, err := e.ExecuteOperation(context.Background(), op.OperationID, dir)
	if err == nil {
		t.Fatal("expected error executing a pending operation")
	}
	if errors.GetCode(err) != errors.ErrCodeInvalidState {
		t.Errorf("expected INVALID_STATE, got %s", errors.GetCode(err))
	}
	got, _ := s.Get(op.OperationID)
	if got.Status != StatusPending {
		t.Errorf("refused execution must not mutate state, got %s", got.Status)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a.tex")); !os.IsNotExist(statErr) {
		t.Error("refused execution must not touch the filesystem")
	}
}

func TestExecutor_UnknownOperation(t *testing.T) {
	s := NewStore(StoreConfig{})
	e, _ := newTestExecutor(s)
	_, err := e.ExecuteOperation(context.Background(), "missing", t.TempDir())
	if errors.GetCode(err) != errors.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestExecutor_AmbiguousEditFails(t *testing.T) {
	dir := t.TempDir()
	original := "\\alpha + \\alpha"
	if err := os.WriteFile(filepath.Join(dir, "eq.tex"), []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(StoreConfig{})
	e, n := newTestExecutor(s)
	op := s.AddOperation(AddParams{
		SessionID: "sess-1",
		ToolName:  "edit_file",
		ToolArgs: map[string]any{
			"filepath":   "eq.tex",
			"old_string": "\\alpha",
			"new_string": "\\beta",
		},
		FilePath: "eq.tex",
	})
	s.Approve(op.OperationID, nil)

	_, err := e.ExecuteOperation(context.Background(), op.OperationID, dir)
	if err == nil {
		t.Fatal("expected ambiguous edit to fail")
	}
	if errors.GetCode(err) != errors.ErrCodeAmbiguousMatch {
		t.Errorf("expected AMBIGUOUS_MATCH, got %s", errors.GetCode(err))
	}

	got, _ := s.Get(op.OperationID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Error == "" {
		t.Error("failure message should be recorded")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "eq.tex"))
	if string(data) != original {
		t.Error("failed edit must leave the file untouched")
	}
	if len(n.results) != 1 || n.results[0] != StatusFailed {
		t.Errorf("notifier should see the failure, got %v", n.results)
	}
}

func TestExecutor_PathEscapeFailsBeforeWriting(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "project")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	s := NewStore(StoreConfig{})
	e, _ := newTestExecutor(s)
	op := queueWrite(s, "../outside.tex", "escaped")
	s.Approve(op.OperationID, nil)

	_, err := e.ExecuteOperation(context.Background(), op.OperationID, dir)
	if err == nil {
		t.Fatal("expected path escape to fail")
	}
	if errors.GetCode(err) != errors.ErrCodePathEscape {
		t.Errorf("expected PATH_ESCAPE, got %s", errors.GetCode(err))
	}
	if _, statErr := os.Stat(filepath.Join(parent, "outside.tex")); !os.IsNotExist(statErr) {
		t.Error("escaped path was written")
	}
	got, _ := s.Get(op.OperationID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
}

func TestExecutor_BatchOutcomesIndependent(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{})
	e, _ := newTestExecutor(s)

	a := queueWrite(s, "a.tex", "A")
	b := queueWrite(s, "b.tex", "B")
	c := queueWrite(s, "c.tex", "C")
	s.Approve(a.OperationID, nil)
	s.Reject(b.OperationID, "not this one")
	s.Approve(c.OperationID, nil)

	results := e.ExecuteBatch(context.Background(), []string{a.OperationID, b.OperationID, c.OperationID}, dir)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[a.OperationID].Success || !results[c.OperationID].Success {
		t.Errorf("approved operations should succeed: %+v", results)
	}
	if results[b.OperationID].Success {
		t.Error("rejected operation must not execute")
	}
	if results[b.OperationID].Error == "" {
		t.Error("rejected operation should carry an error message")
	}

	for _, name := range []string{"a.tex", "c.tex"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "b.tex")); !os.IsNotExist(err) {
		t.Error("b.tex must not exist")
	}
}

func TestExecutor_UnknownToolFails(t *testing.T) {
	s := NewStore(StoreConfig{})
	e, _ := newTestExecutor(s)
	op := s.AddOperation(AddParams{
		SessionID: "sess-1",
		ToolName:  "launch_rockets",
		ToolArgs:  map[string]any{},
	})
	s.Approve(op.OperationID, nil)

	_, err := e.ExecuteOperation(context.Background(), op.OperationID, t.TempDir())
	if errors.GetCode(err) != errors.ErrCodeUnknownTool {
		t.Errorf("expected UNKNOWN_TOOL, got %v", err)
	}
	got, _ := s.Get(op.OperationID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
}

func TestExecutor_ConcurrentExecuteRunsOnce(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(StoreConfig{})
	e, n := newTestExecutor(s)

	op := queueWrite(s, "main.tex", "\\documentclass{article}")
	if err := s.Approve(op.OperationID, nil); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	const attempts = 4
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ExecuteOperation(context.Background(), op.OperationID, dir)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if errors.GetCode(err) != errors.ErrCodeInvalidState {
			t.Fatalf("losing attempt should be INVALID_STATE, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one execution must run, got %d", wins)
	}

	got, _ := s.Get(op.OperationID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	n.mu.Lock()
	completed := len(n.results)
	n.mu.Unlock()
	if completed != 1 {
		t.Errorf("notifier should see exactly one result, got %d", completed)
	}
}
