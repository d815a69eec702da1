package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/tools"
)

// scriptedCompleter returns canned messages in order and records what it
// was sent.
type scriptedCompleter struct {
	script []openai.ChatCompletionMessage
	calls  [][]openai.ChatCompletionMessage
}

func (c *scriptedCompleter) Chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, defs []openai.Tool) (openai.ChatCompletionMessage, error) {
	c.calls = append(c.calls, messages)
	if len(c.script) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "done"}, nil
	}
	msg := c.script[0]
	c.script = c.script[1:]
	return msg, nil
}

func (c *scriptedCompleter) DefaultModel() string { return "test-model" }

func toolCallMsg(id, name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:   id,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}
}

func newTestAgent(t *testing.T, completer Completer, mode hitl.GateMode) (*Agent, *hitl.Store, *Session) {
	t.Helper()
	registry := tools.NewRegistry()
	waiters := hitl.NewWaiters()
	store := hitl.NewStore(hitl.StoreConfig{}, waiters)
	gate := hitl.NewGate(store, registry, waiters, mode, 0)
	a := New(completer, registry, gate, logging.Nop())
	sessions := NewSessionManager()
	session := sessions.Open(t.TempDir())
	return a, store, session
}

func TestRunTurn_PlainReply(t *testing.T) {
	completer := &scriptedCompleter{script: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "Your abstract looks fine."},
	}}
	a, _, session := newTestAgent(t, completer, hitl.GateModeAsync)

	reply, err := a.RunTurn(context.Background(), session, "review my abstract", "")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if reply != "Your abstract looks fine." {
		t.Errorf("reply = %q", reply)
	}
	// system + user + assistant
	if session.Len() != 3 {
		t.Errorf("session has %d messages, want 3", session.Len())
	}
}

func TestRunTurn_EmptyPromptRefused(t *testing.T) {
	a, _, session := newTestAgent(t, &scriptedCompleter{}, hitl.GateModeAsync)
	if _, err := a.RunTurn(context.Background(), session, "", ""); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestRunTurn_ReadToolExecutesImmediately(t *testing.T) {
	completer := &scriptedCompleter{script: []openai.ChatCompletionMessage{
		toolCallMsg("call-1", tools.ToolReadFile, `{"filepath":"main.tex"}`),
		{Role: openai.ChatMessageRoleAssistant, Content: "Read it."},
	}}
	a, _, session := newTestAgent(t, completer, hitl.GateModeAsync)

	if err := os.WriteFile(filepath.Join(session.ProjectPath, "main.tex"), []byte("\\documentclass{article}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reply, err := a.RunTurn(context.Background(), session, "what's in main.tex?", "")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if reply != "Read it." {
		t.Errorf("reply = %q", reply)
	}

	// The second model call must carry the tool result.
	last := completer.calls[1]
	toolMsg := last[len(last)-1]
	if toolMsg.Role != openai.ChatMessageRoleTool || !strings.Contains(toolMsg.Content, "documentclass") {
		t.Errorf("tool message = %+v", toolMsg)
	}
}

func TestRunTurn_WriteQueuesForApproval(t *testing.T) {
	completer := &scriptedCompleter{script: []openai.ChatCompletionMessage{
		toolCallMsg("call-1", tools.ToolWriteFile, `{"filepath":"main.tex","content":"new"}`),
		{Role: openai.ChatMessageRoleAssistant, Content: "Queued the change."},
	}}
	a, store, session := newTestAgent(t, completer, hitl.GateModeAsync)

	if _, err := a.RunTurn(context.Background(), session, "rewrite main.tex", ""); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	// The model saw a queued marker, not a write confirmation.
	last := completer.calls[1]
	toolMsg := last[len(last)-1]
	if !strings.HasPrefix(toolMsg.Content, "[PENDING:") {
		t.Errorf("tool result = %q, want queued marker", toolMsg.Content)
	}

	pending := store.PendingBySession(session.ID)
	if len(pending) != 1 {
		t.Fatalf("got %d pending operations, want 1", len(pending))
	}
	if pending[0].ToolName != tools.ToolWriteFile {
		t.Errorf("tool = %q", pending[0].ToolName)
	}
	if pending[0].NewContent != "new" {
		t.Errorf("preview new content = %q", pending[0].NewContent)
	}

	// Nothing was written.
	if _, err := os.Stat(filepath.Join(session.ProjectPath, "main.tex")); !os.IsNotExist(err) {
		t.Error("file must not exist before approval")
	}
}

func TestRunTurn_BadToolArgsSurfaceToModel(t *testing.T) {
	completer := &scriptedCompleter{script: []openai.ChatCompletionMessage{
		toolCallMsg("call-1", tools.ToolReadFile, `{not json`),
		{Role: openai.ChatMessageRoleAssistant, Content: "sorry"},
	}}
	a, _, session := newTestAgent(t, completer, hitl.GateModeAsync)

	if _, err := a.RunTurn(context.Background(), session, "go", ""); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	last := completer.calls[1]
	toolMsg := last[len(last)-1]
	if !strings.HasPrefix(toolMsg.Content, "Error:") {
		t.Errorf("tool result = %q, want error text", toolMsg.Content)
	}
}

func TestRunTurn_RoundLimit(t *testing.T) {
	// A completer that always issues another tool call.
	looping := &loopingCompleter{}
	a, _, session := newTestAgent(t, looping, hitl.GateModeAsync)

	if _, err := a.RunTurn(context.Background(), session, "go", ""); err == nil {
		t.Fatal("expected round-limit error")
	}
	if looping.calls != maxToolRounds {
		t.Errorf("model called %d times, want %d", looping.calls, maxToolRounds)
	}
}

type loopingCompleter struct{ calls int }

func (c *loopingCompleter) Chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, defs []openai.Tool) (openai.ChatCompletionMessage, error) {
	c.calls++
	return toolCallMsg("call", tools.ToolListFiles, `{}`), nil
}

func (c *loopingCompleter) DefaultModel() string { return "test-model" }

func TestSessionManager(t *testing.T) {
	m := NewSessionManager()
	s := m.Open("/tmp/project")
	if s.ID == "" {
		t.Fatal("session needs an id")
	}
	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	m.Close(s.ID)
	if _, err := m.Get(s.ID); err == nil {
		t.Fatal("closed session still resolvable")
	}
}
