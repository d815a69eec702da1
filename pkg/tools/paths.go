package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/auralabs/aura/pkg/errors"
)

// ResolveInProject resolves a project-relative path and rejects anything
// that escapes the project root. The check runs before any filesystem
// access so escape attempts never touch disk.
func ResolveInProject(projectPath, relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "filepath is required")
	}

	rootAbs, err := filepath.Abs(projectPath)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPath, "resolve project path")
	}
	// Resolve symlinks in the root when possible so prefix comparison is
	// done on canonical paths.
	if resolved, err := filepath.EvalSymlinks(rootAbs); err == nil {
		rootAbs = resolved
	}

	target := filepath.Join(rootAbs, relPath)
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidPath, "resolve target path")
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrCodePathEscape, "path escapes project directory: %s", relPath)
	}
	return targetAbs, nil
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
