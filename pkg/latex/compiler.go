// Package latex compiles projects and checks sources for common
// mistakes. Compilation shells out to the local TeX installation;
// a semaphore caps concurrent runs since each one is memory-hungry.
package latex

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/logging"
)

const (
	// DefaultMaxConcurrent caps simultaneous compilations.
	DefaultMaxConcurrent = 3

	// DefaultCompileTimeout bounds one compilation run.
	DefaultCompileTimeout = 2 * time.Minute

	// logTailBytes is how much raw log is kept on failure.
	logTailBytes = 2000
)

// Result is the outcome of one compilation.
type Result struct {
	Success bool   `json:"success"`
	PDFPath string `json:"pdf_path,omitempty"`

	// Backend is the command that ran ("latexmk" or "pdflatex").
	Backend string `json:"backend,omitempty"`

	// ErrorSummary holds the "!" error lines extracted from the log.
	ErrorSummary string `json:"error_summary,omitempty"`

	// Log is the tail of the raw compiler output on failure.
	Log string `json:"log,omitempty"`
}

// Compiler builds a project's PDF.
type Compiler interface {
	Compile(ctx context.Context, projectPath, mainFile string) (*Result, error)
}

// CommandCompiler runs latexmk when available, falling back to two
// pdflatex passes.
type CommandCompiler struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *logging.Logger

	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
	run      func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// NewCommandCompiler creates a compiler. maxConcurrent <= 0 uses the
// default cap.
func NewCommandCompiler(maxConcurrent int, timeout time.Duration, logger *logging.Logger) *CommandCompiler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultCompileTimeout
	}
	return &CommandCompiler{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		timeout:  timeout,
		logger:   logger,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// Compile implements Compiler.
func (c *CommandCompiler) Compile(ctx context.Context, projectPath, mainFile string) (*Result, error) {
	if mainFile == "" {
		mainFile = "main.tex"
	}

	backend, args := c.pickBackend(mainFile)
	if backend == "" {
		return nil, errors.New(errors.ErrCodeCompilationFailed, "no LaTeX compiler found: install TeX Live or MacTeX")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "waiting for compilation slot")
	}
	defer c.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	output, runErr := c.run(runCtx, projectPath, backend, args...)
	if backend == "pdflatex" && runErr == nil {
		// Second pass resolves references.
		output, runErr = c.run(runCtx, projectPath, backend, args...)
	}
	elapsed := time.Since(start)

	if runErr != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeTimeout, "compilation timed out")
		}
		res := &Result{
			Backend:      backend,
			ErrorSummary: summarizeErrors(output),
			Log:          tail(output, logTailBytes),
		}
		c.logger.Warn(logging.CategoryLatex, "compile_failed", res.ErrorSummary, map[string]any{
			"main_file":   mainFile,
			"backend":     backend,
			"duration_ms": elapsed.Milliseconds(),
		})
		return res, nil
	}

	pdf := strings.TrimSuffix(mainFile, filepath.Ext(mainFile)) + ".pdf"
	res := &Result{
		Success: true,
		PDFPath: filepath.Join(projectPath, pdf),
		Backend: backend,
	}
	c.logger.Info(logging.CategoryLatex, "compile_ok", res.PDFPath, map[string]any{
		"main_file":   mainFile,
		"backend":     backend,
		"duration_ms": elapsed.Milliseconds(),
	})
	return res, nil
}

func (c *CommandCompiler) pickBackend(mainFile string) (string, []string) {
	if _, err := c.lookPath("latexmk"); err == nil {
		return "latexmk", []string{"-pdf", "-interaction=nonstopmode", "-halt-on-error", mainFile}
	}
	if _, err := c.lookPath("pdflatex"); err == nil {
		return "pdflatex", []string{"-interaction=nonstopmode", "-halt-on-error", mainFile}
	}
	return "", nil
}

// summarizeErrors pulls the "!" error lines out of TeX output, each with
// its following line for context.
func summarizeErrors(log []byte) string {
	lines := strings.Split(string(log), "\n")
	var out []string
	for i, line := range lines {
		if !strings.HasPrefix(line, "!") {
			continue
		}
		entry := strings.TrimSpace(line)
		if i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			entry += " " + strings.TrimSpace(lines[i+1])
		}
		out = append(out, entry)
		if len(out) >= 10 {
			break
		}
	}
	if len(out) == 0 {
		return "compilation failed (no error lines found in log)"
	}
	return strings.Join(out, "\n")
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
