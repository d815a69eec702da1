package latex

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/auralabs/aura/pkg/logging"

	auraerrors "github.com/auralabs/aura/pkg/errors"
)

func fakeCompiler(available map[string]bool, output string, runErr error) *CommandCompiler {
	c := NewCommandCompiler(1, 0, logging.Nop())
	c.lookPath = func(name string) (string, error) {
		if available[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	c.run = func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		return []byte(output), runErr
	}
	return c
}

func TestCompile_Success(t *testing.T) {
	c := fakeCompiler(map[string]bool{"latexmk": true}, "Output written on main.pdf", nil)

	res, err := c.Compile(context.Background(), "/proj", "")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !res.Success {
		t.Fatal("expected success")
	}
	if res.Backend != "latexmk" {
		t.Errorf("expected latexmk backend, got %s", res.Backend)
	}
	if !strings.HasSuffix(res.PDFPath, "main.pdf") {
		t.Errorf("unexpected pdf path: %s", res.PDFPath)
	}
}

func TestCompile_FallsBackToPdflatex(t *testing.T) {
	c := fakeCompiler(map[string]bool{"pdflatex": true}, "ok", nil)
	res, err := c.Compile(context.Background(), "/proj", "paper.tex")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.Backend != "pdflatex" {
		t.Errorf("expected pdflatex backend, got %s", res.Backend)
	}
	if !strings.HasSuffix(res.PDFPath, "paper.pdf") {
		t.Errorf("unexpected pdf path: %s", res.PDFPath)
	}
}

func TestCompile_NoTexInstalled(t *testing.T) {
	c := fakeCompiler(nil, "", nil)
	_, err := c.Compile(context.Background(), "/proj", "main.tex")
	if auraerrors.GetCode(err) != auraerrors.ErrCodeCompilationFailed {
		t.Errorf("expected COMPILATION_FAILED, got %v", err)
	}
}

func TestCompile_FailureSummarizesLog(t *testing.T) {
	log := strings.Join([]string{
		"This is pdfTeX",
		"! Undefined control sequence.",
		"l.12 \\badmacro",
		"more output",
		"! Missing $ inserted.",
		"l.40",
	}, "\n")
	c := fakeCompiler(map[string]bool{"latexmk": true}, log, errors.New("exit status 1"))

	res, err := c.Compile(context.Background(), "/proj", "main.tex")
	if err != nil {
		t.Fatalf("compile failure should be a result, not an error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.ErrorSummary, "Undefined control sequence") {
		t.Errorf("summary missing first error: %q", res.ErrorSummary)
	}
	if !strings.Contains(res.ErrorSummary, "Missing $ inserted") {
		t.Errorf("summary missing second error: %q", res.ErrorSummary)
	}
	if res.Log == "" {
		t.Error("failure should carry the log tail")
	}
}

func TestTail(t *testing.T) {
	if got := tail([]byte("abcdef"), 3); got != "def" {
		t.Errorf("expected last 3 bytes, got %q", got)
	}
	if got := tail([]byte("ab"), 3); got != "ab" {
		t.Errorf("short input should pass through, got %q", got)
	}
}

func TestCheckSyntax(t *testing.T) {
	clean := `\begin{document}\section{Hi} $x^2$ \end{document}`
	if issues := CheckSyntax(clean); len(issues) != 0 {
		t.Errorf("clean source flagged: %v", issues)
	}

	broken := `\begin{figure} { \cite{} \ref{}`
	issues := CheckSyntax(broken)
	joined := strings.Join(issues, "; ")
	for _, want := range []string{"Unmatched braces", `\begin{figure}`, `Empty \cite{}`, `Empty \ref{}`} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in issues, got %v", want, issues)
		}
	}
}

func TestEscape(t *testing.T) {
	got := Escape(`50% of $10 & a_b`)
	want := `50\% of \$10 \& a\_b`
	if got != want {
		t.Errorf("Escape mismatch:\n got  %q\n want %q", got, want)
	}
	if got := Escape(`\cmd{x}`); got != `\textbackslash{}cmd\{x\}` {
		t.Errorf("backslash escape mismatch: %q", got)
	}
}

func TestEscapePreserveMath(t *testing.T) {
	got := EscapePreserveMath(`error is 5% for $x_i^2$ & done`)
	if !strings.Contains(got, `$x_i^2$`) {
		t.Errorf("math span must survive untouched: %q", got)
	}
	if !strings.Contains(got, `5\%`) || !strings.Contains(got, `\&`) {
		t.Errorf("text outside math should be escaped: %q", got)
	}
}
