// Package tools implements the file operation surface exposed to the
// agent: read, write, edit, list, find, and search within a LaTeX project.
// Every operation validates its target against the project root before
// touching the filesystem. Write and edit are the mutating operations and
// are routed through the approval pipeline by the caller.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/auralabs/aura/pkg/errors"
)

// ReadFile reads a project file and returns its contents with line numbers.
func ReadFile(projectPath, relPath string) (string, error) {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "file not found: %s", relPath)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "stat file")
	}
	if info.IsDir() {
		return "", errors.Newf(errors.ErrCodeInvalidPath, "not a file: %s", relPath)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot read file: %s", relPath)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "read file")
	}

	lines := strings.Split(string(data), "\n")
	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%d lines)\n", relPath, len(lines))
	for i, line := range lines {
		fmt.Fprintf(&sb, "%4d\u2502 %s\n", i+1, line)
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// ReadFileLines reads an inclusive 1-indexed line range from a project file.
func ReadFileLines(projectPath, relPath string, startLine, endLine int) (string, error) {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "file not found: %s", relPath)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "read file")
	}

	lines := strings.Split(string(data), "\n")
	if startLine < 1 {
		startLine = 1
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return "", errors.Newf(errors.ErrCodeInvalidInput, "start_line (%d) > end_line (%d)", startLine, endLine)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (lines %d-%d of %d):\n", relPath, startLine, endLine, len(lines))
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d\u2502 %s\n", i, lines[i-1])
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// WriteFile writes content to a project file, creating parent directories
// and overwriting any existing content.
func WriteFile(projectPath, relPath, content string) (string, error) {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot create directory for: %s", relPath)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "create parent directory")
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot write to file: %s", relPath)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "write file")
	}
	return fmt.Sprintf("Successfully wrote %s (%d chars)", relPath, len(content)), nil
}

// EditFile replaces exactly one occurrence of oldString with newString.
// Zero occurrences or more than one is an error; the file is left intact.
func EditFile(projectPath, relPath, oldString, newString string) (string, error) {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "file not found: %s", relPath)
	}
	if err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot read file: %s", relPath)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "read file")
	}

	content := string(data)
	count := strings.Count(content, oldString)
	if oldString == "" || count == 0 {
		return "", errors.Newf(errors.ErrCodeAmbiguousMatch, "could not find the specified text in %s", relPath)
	}
	if count > 1 {
		return "", errors.Newf(errors.ErrCodeAmbiguousMatch,
			"found %d occurrences in %s; provide more context for a unique match", count, relPath).
			WithDetail("count", count)
	}

	newContent := strings.Replace(content, oldString, newString, 1)
	if err := os.WriteFile(fullPath, []byte(newContent), 0o644); err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot write to file: %s", relPath)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "write file")
	}
	return fmt.Sprintf("Successfully edited %s", relPath), nil
}

// ListFiles lists the entries of a project directory, skipping dotfiles.
func ListFiles(projectPath, relDir string) (string, error) {
	if relDir == "" {
		relDir = "."
	}
	fullPath, err := ResolveInProject(projectPath, relDir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "directory not found: %s", relDir)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "stat directory")
	}
	if !info.IsDir() {
		return "", errors.Newf(errors.ErrCodeInvalidPath, "not a directory: %s", relDir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsPermission(err) {
			return "", errors.Newf(errors.ErrCodePermissionDenied, "cannot access directory: %s", relDir)
		}
		return "", errors.Wrap(err, errors.ErrCodeInternal, "read directory")
	}

	var items []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() {
			items = append(items, entry.Name()+"/")
		} else {
			fi, err := entry.Info()
			size := int64(0)
			if err == nil {
				size = fi.Size()
			}
			items = append(items, fmt.Sprintf("%s (%d bytes)", entry.Name(), size))
		}
	}
	if len(items) == 0 {
		return fmt.Sprintf("Directory %s is empty", relDir), nil
	}
	return fmt.Sprintf("Contents of %s:\n%s", relDir, strings.Join(items, "\n")), nil
}

// FindFiles returns project files matching a glob pattern, capped at 50
// results.
func FindFiles(projectPath, pattern string) (string, error) {
	rootAbs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPath, "resolve project path")
	}

	// Join cleans ".." segments, so a traversal pattern escapes before
	// Glob ever runs. Refuse it like every other path input.
	globBase := filepath.Join(rootAbs, pattern)
	if globBase != rootAbs && !strings.HasPrefix(globBase, rootAbs+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrCodePathEscape, "pattern escapes project directory: %s", pattern)
	}

	matches, err := filepath.Glob(globBase)
	if err != nil {
		return "", errors.Newf(errors.ErrCodeInvalidInput, "invalid glob pattern: %s", pattern)
	}

	var relative []string
	for _, m := range matches {
		if !fileExists(m) {
			continue
		}
		rel, err := filepath.Rel(rootAbs, m)
		if err != nil {
			continue
		}
		relative = append(relative, rel)
	}
	sort.Strings(relative)

	total := len(relative)
	if total == 0 {
		return fmt.Sprintf("No files found matching: %s", pattern), nil
	}
	if total > 50 {
		relative = relative[:50]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d files matching %q:\n", total, pattern)
	for _, f := range relative {
		fmt.Fprintf(&sb, "  %s\n", f)
	}
	if total > 50 {
		fmt.Fprintf(&sb, "  ... showing first 50 of %d\n", total)
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

// SearchInFile searches a file for a case-insensitive pattern and returns
// matching lines with surrounding context. Invalid regexes fall back to a
// literal search.
func SearchInFile(projectPath, relPath, pattern string, contextLines int) (string, error) {
	fullPath, err := ResolveInProject(projectPath, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return "", errors.Newf(errors.ErrCodeFileNotFound, "file not found: %s", relPath)
	}
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "read file")
	}

	re, reErr := regexp.Compile("(?i)" + pattern)
	if reErr != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
	}

	lines := strings.Split(string(data), "\n")
	var matchIdx []int
	for i, line := range lines {
		if re.MatchString(line) {
			matchIdx = append(matchIdx, i)
		}
	}
	if len(matchIdx) == 0 {
		return fmt.Sprintf("No matches found for %q in %s", pattern, relPath), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matches for %q in %s:\n", len(matchIdx), pattern, relPath)
	shown := make(map[int]bool)
	lastShown := -1
	for _, idx := range matchIdx {
		start := idx - contextLines
		if start < 0 {
			start = 0
		}
		end := idx + contextLines
		if end >= len(lines) {
			end = len(lines) - 1
		}
		if lastShown >= 0 && start > lastShown+1 {
			sb.WriteString("  ---\n")
		}
		for i := start; i <= end; i++ {
			if shown[i] {
				continue
			}
			marker := "   "
			if i == idx {
				marker = ">>>"
			}
			fmt.Fprintf(&sb, "%s %4d\u2502 %s\n", marker, i+1, lines[i])
			shown[i] = true
			if i > lastShown {
				lastShown = i
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}
