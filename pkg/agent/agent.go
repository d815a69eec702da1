// Package agent runs LLM turns against a LaTeX project. It is a thin
// loop: the model proposes tool calls, read-only calls run immediately,
// and mutating calls go through the approval gate. In async mode the
// model sees the queued marker instead of a result and keeps going.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/hitl"
	"github.com/auralabs/aura/pkg/logging"
	"github.com/auralabs/aura/pkg/tools"
)

// maxToolRounds bounds one turn; a model that keeps issuing tool calls
// forever gets cut off rather than spinning.
const maxToolRounds = 16

const systemPrompt = `You are Aura, an assistant that edits LaTeX projects.
Work only inside the current project using the provided tools.
Mutating tools (write_file, edit_file) may be queued for human approval;
a [PENDING:...] result means the change was queued, not applied. Do not
retry a queued operation. Keep LaTeX valid and preserve the author's style.`

// Completer is the slice of the provider the agent needs.
type Completer interface {
	Chat(ctx context.Context, model string, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error)
	DefaultModel() string
}

// Agent glues the model, the tool registry, and the approval gate.
type Agent struct {
	completer Completer
	registry  *tools.Registry
	gate      *hitl.Gate
	logger    *logging.Logger
}

// New creates an agent.
func New(completer Completer, registry *tools.Registry, gate *hitl.Gate, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Agent{
		completer: completer,
		registry:  registry,
		gate:      gate,
		logger:    logger,
	}
}

// RunTurn executes one user prompt within a session and returns the
// model's final text reply. Tool traffic is appended to the session's
// history so later turns see it.
func (a *Agent) RunTurn(ctx context.Context, session *Session, prompt, model string) (string, error) {
	if prompt == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "prompt is required")
	}
	if model == "" {
		model = a.completer.DefaultModel()
	}

	session.append(openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})
	defs := toolDefinitions()

	for round := 0; round < maxToolRounds; round++ {
		msg, err := a.completer.Chat(ctx, model, session.snapshot(), defs)
		if err != nil {
			return "", err
		}
		session.append(msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		for _, call := range msg.ToolCalls {
			result := a.runToolCall(ctx, session, call)
			session.append(openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    result,
			})
		}
	}
	return "", errors.Newf(errors.ErrCodeInternal, "turn exceeded %d tool rounds", maxToolRounds)
}

// runToolCall executes one tool call through the gate. Errors are
// returned as tool output so the model can correct itself.
func (a *Agent) runToolCall(ctx context.Context, session *Session, call openai.ToolCall) string {
	name := call.Function.Name

	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
		}
	}

	a.logger.Debug(logging.CategoryTool, "tool_call", name, map[string]any{
		"session_id": session.ID,
	})

	filePath, oldContent, newContent, _ := tools.Preview(session.ProjectPath, name, args)
	decision := a.gate.Check(ctx, hitl.CheckParams{
		SessionID:  session.ID,
		ToolName:   name,
		ToolArgs:   args,
		FilePath:   filePath,
		OldContent: oldContent,
		NewContent: newContent,
	})

	if !decision.Proceed {
		// Queued marker in async mode, refusal text otherwise.
		return decision.Message
	}
	if decision.ModifiedArgs != nil {
		args = decision.ModifiedArgs
	}

	result, err := a.registry.Dispatch(name, session.ProjectPath, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

func toolDefinitions() []openai.Tool {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	integer := func(desc string) map[string]any {
		return map[string]any{"type": "integer", "description": desc}
	}
	def := func(name, desc string, required []string, props map[string]any) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters: map[string]any{
					"type":       "object",
					"properties": props,
					"required":   required,
				},
			},
		}
	}

	return []openai.Tool{
		def(tools.ToolReadFile, "Read a project file with line numbers.",
			[]string{"filepath"}, map[string]any{
				"filepath": str("Path relative to the project root"),
			}),
		def(tools.ToolReadFileLines, "Read an inclusive line range from a project file.",
			[]string{"filepath", "start_line", "end_line"}, map[string]any{
				"filepath":   str("Path relative to the project root"),
				"start_line": integer("First line, 1-indexed"),
				"end_line":   integer("Last line, inclusive"),
			}),
		def(tools.ToolWriteFile, "Write full content to a project file, overwriting it. Requires approval.",
			[]string{"filepath", "content"}, map[string]any{
				"filepath": str("Path relative to the project root"),
				"content":  str("Complete new file content"),
			}),
		def(tools.ToolEditFile, "Replace exactly one occurrence of old_string with new_string. Requires approval.",
			[]string{"filepath", "old_string", "new_string"}, map[string]any{
				"filepath":   str("Path relative to the project root"),
				"old_string": str("Text to replace; must match exactly once"),
				"new_string": str("Replacement text"),
			}),
		def(tools.ToolListFiles, "List entries of a project directory.",
			nil, map[string]any{
				"directory": str("Directory relative to the project root; empty for the root"),
			}),
		def(tools.ToolFindFiles, "Find project files whose names match a glob pattern.",
			[]string{"pattern"}, map[string]any{
				"pattern": str("Glob pattern, e.g. *.tex"),
			}),
		def(tools.ToolSearchInFile, "Search a file for a regular expression with surrounding context.",
			[]string{"filepath", "pattern"}, map[string]any{
				"filepath":      str("Path relative to the project root"),
				"pattern":       str("Regular expression"),
				"context_lines": integer("Context lines around each match (default 2)"),
			}),
	}
}
