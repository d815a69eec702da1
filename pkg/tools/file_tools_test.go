package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/auralabs/aura/pkg/errors"
)

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolveInProjectRejectsEscape(t *testing.T) {
	dir := t.TempDir()

	cases := []string{
		"../outside.tex",
		"../../etc/passwd",
		"sections/../../outside.tex",
	}
	for _, rel := range cases {
		if _, err := ResolveInProject(dir, rel); !errors.IsCode(err, errors.ErrCodePathEscape) {
			t.Errorf("ResolveInProject(%q) error = %v, want PATH_ESCAPE", rel, err)
		}
	}

	if _, err := ResolveInProject(dir, "sections/intro.tex"); err != nil {
		t.Errorf("legitimate nested path rejected: %v", err)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()

	result, err := WriteFile(dir, "sections/new/intro.tex", "\\section{Intro}")
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !strings.Contains(result, "sections/new/intro.tex") {
		t.Errorf("unexpected result %q", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sections", "new", "intro.tex"))
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(data) != "\\section{Intro}" {
		t.Errorf("content mismatch: %q", data)
	}
}

func TestEditFileReplacesOnce(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "alpha beta gamma")

	if _, err := EditFile(dir, "main.tex", "beta", "BETA"); err != nil {
		t.Fatalf("EditFile failed: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "main.tex"))
	if string(data) != "alpha BETA gamma" {
		t.Errorf("content = %q", data)
	}
}

func TestEditFileAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "x y x")

	_, err := EditFile(dir, "main.tex", "x", "z")
	if !errors.IsCode(err, errors.ErrCodeAmbiguousMatch) {
		t.Fatalf("error = %v, want AMBIGUOUS_MATCH", err)
	}
	// File must be untouched on failure.
	data, _ := os.ReadFile(filepath.Join(dir, "main.tex"))
	if string(data) != "x y x" {
		t.Errorf("file mutated on ambiguous match: %q", data)
	}
}

func TestEditFileMissingText(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "hello")

	if _, err := EditFile(dir, "main.tex", "absent", "x"); !errors.IsCode(err, errors.ErrCodeAmbiguousMatch) {
		t.Errorf("error = %v, want AMBIGUOUS_MATCH", err)
	}
}

func TestReadFileNumbersLines(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "one\ntwo")

	out, err := ReadFile(dir, "main.tex")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(out, "1│ one") || !strings.Contains(out, "2│ two") {
		t.Errorf("missing numbered lines:\n%s", out)
	}
}

func TestReadFileNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadFile(dir, "missing.tex"); !errors.IsCode(err, errors.ErrCodeFileNotFound) {
		t.Errorf("error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestSearchInFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "intro\n\\cite{smith}\noutro")

	out, err := SearchInFile(dir, "main.tex", `\\cite`, 1)
	if err != nil {
		t.Fatalf("SearchInFile failed: %v", err)
	}
	if !strings.Contains(out, ">>>") || !strings.Contains(out, "cite{smith}") {
		t.Errorf("match not highlighted:\n%s", out)
	}
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "main.tex", "")
	writeTestFile(t, dir, "refs.bib", "")

	out, err := FindFiles(dir, "*.tex")
	if err != nil {
		t.Fatalf("FindFiles failed: %v", err)
	}
	if !strings.Contains(out, "main.tex") || strings.Contains(out, "refs.bib") {
		t.Errorf("unexpected matches:\n%s", out)
	}
}

func TestFindFilesRejectsEscapingPattern(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "project")
	writeTestFile(t, parent, "secret.txt", "")
	writeTestFile(t, dir, "main.tex", "")

	cases := []string{
		"../*",
		"../secret.txt",
		"sub/../../*",
	}
	for _, pattern := range cases {
		if _, err := FindFiles(dir, pattern); !errors.IsCode(err, errors.ErrCodePathEscape) {
			t.Errorf("FindFiles(%q) error = %v, want PATH_ESCAPE", pattern, err)
		}
	}

	if _, err := FindFiles(dir, "sub/../*.tex"); err != nil {
		t.Errorf("pattern staying inside the project rejected: %v", err)
	}
}

func TestFindFilesReportsFullCountWhenTruncated(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 55; i++ {
		writeTestFile(t, dir, fmt.Sprintf("ch%02d.tex", i), "")
	}

	out, err := FindFiles(dir, "*.tex")
	if err != nil {
		t.Fatalf("FindFiles failed: %v", err)
	}
	if !strings.Contains(out, "Found 55 files") {
		t.Errorf("header should report the full match count:\n%s", out)
	}
	if !strings.Contains(out, "showing first 50 of 55") {
		t.Errorf("truncation should be called out:\n%s", out)
	}
	if got := strings.Count(out, "  ch"); got != 50 {
		t.Errorf("listing should be capped at 50 entries, got %d", got)
	}
}

func TestRegistryDispatch(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry()

	if !reg.NeedsApproval(ToolWriteFile) || !reg.NeedsApproval(ToolEditFile) {
		t.Error("mutating tools should require approval")
	}
	if reg.NeedsApproval(ToolReadFile) {
		t.Error("read_file should not require approval")
	}

	result, err := reg.Dispatch(ToolWriteFile, dir, map[string]any{
		"filepath": "a.tex",
		"content":  "hi",
	})
	if err != nil {
		t.Fatalf("Dispatch write_file failed: %v", err)
	}
	if !strings.Contains(result, "a.tex") {
		t.Errorf("unexpected result %q", result)
	}

	if _, err := reg.Dispatch("rm_rf", dir, nil); !errors.IsCode(err, errors.ErrCodeUnknownTool) {
		t.Errorf("error = %v, want UNKNOWN_TOOL", err)
	}
}
