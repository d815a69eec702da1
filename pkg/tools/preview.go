package tools

import (
	"os"
	"strings"
)

// Preview computes the before/after contents a mutating tool call would
// produce, without touching the file. The approval gate attaches the
// result to the queued operation so reviewers see a diff up front.
// ok is false for tools that don't mutate files.
func Preview(projectPath, toolName string, args map[string]any) (filePath, oldContent, newContent string, ok bool) {
	switch toolName {
	case ToolWriteFile:
		filePath = stringArg(args, "filepath")
		oldContent = readIfExists(projectPath, filePath)
		newContent = stringArg(args, "content")
		return filePath, oldContent, newContent, true
	case ToolEditFile:
		filePath = stringArg(args, "filepath")
		oldContent = readIfExists(projectPath, filePath)
		oldString := stringArg(args, "old_string")
		newContent = oldContent
		if oldString != "" && strings.Count(oldContent, oldString) == 1 {
			newContent = strings.Replace(oldContent, oldString, stringArg(args, "new_string"), 1)
		}
		return filePath, oldContent, newContent, true
	}
	return "", "", "", false
}

func readIfExists(projectPath, relPath string) string {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return ""
	}
	return string(data)
}
