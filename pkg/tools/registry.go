package tools

import (
	"sort"
	"sync"

	"github.com/auralabs/aura/pkg/errors"
)

// Tool names dispatched by the registry and the approval executor.
const (
	ToolReadFile      = "read_file"
	ToolReadFileLines = "read_file_lines"
	ToolWriteFile     = "write_file"
	ToolEditFile      = "edit_file"
	ToolListFiles     = "list_files"
	ToolFindFiles     = "find_files"
	ToolSearchInFile  = "search_in_file"
)

// Handler executes a tool against a project given its decoded arguments.
type Handler func(projectPath string, args map[string]any) (string, error)

// Registry maps tool names to handlers and tracks which tools need human
// approval before executing.
type Registry struct {
	mu               sync.RWMutex
	handlers         map[string]Handler
	approvalRequired map[string]bool
}

// NewRegistry creates a registry preloaded with the built-in file tools.
// write_file and edit_file require approval by default.
func NewRegistry() *Registry {
	r := &Registry{
		handlers:         make(map[string]Handler),
		approvalRequired: make(map[string]bool),
	}
	r.Register(ToolReadFile, false, func(projectPath string, args map[string]any) (string, error) {
		return ReadFile(projectPath, stringArg(args, "filepath"))
	})
	r.Register(ToolReadFileLines, false, func(projectPath string, args map[string]any) (string, error) {
		return ReadFileLines(projectPath, stringArg(args, "filepath"), intArg(args, "start_line"), intArg(args, "end_line"))
	})
	r.Register(ToolWriteFile, true, func(projectPath string, args map[string]any) (string, error) {
		return WriteFile(projectPath, stringArg(args, "filepath"), stringArg(args, "content"))
	})
	r.Register(ToolEditFile, true, func(projectPath string, args map[string]any) (string, error) {
		return EditFile(projectPath, stringArg(args, "filepath"), stringArg(args, "old_string"), stringArg(args, "new_string"))
	})
	r.Register(ToolListFiles, false, func(projectPath string, args map[string]any) (string, error) {
		return ListFiles(projectPath, stringArg(args, "directory"))
	})
	r.Register(ToolFindFiles, false, func(projectPath string, args map[string]any) (string, error) {
		return FindFiles(projectPath, stringArg(args, "pattern"))
	})
	r.Register(ToolSearchInFile, false, func(projectPath string, args map[string]any) (string, error) {
		ctxLines := intArg(args, "context_lines")
		if ctxLines == 0 {
			ctxLines = 2
		}
		return SearchInFile(projectPath, stringArg(args, "filepath"), stringArg(args, "pattern"), ctxLines)
	})
	return r
}

// Register adds or replaces a tool handler.
func (r *Registry) Register(name string, needsApproval bool, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	r.approvalRequired[name] = needsApproval
}

// NeedsApproval reports whether a tool requires human sign-off.
func (r *Registry) NeedsApproval(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approvalRequired[name]
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool. Unknown names fail with UNKNOWN_TOOL.
func (r *Registry) Dispatch(name, projectPath string, args map[string]any) (string, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return "", errors.Newf(errors.ErrCodeUnknownTool, "unknown tool: %s", name)
	}
	return handler(projectPath, args)
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
