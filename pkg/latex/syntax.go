package latex

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	beginRe = regexp.MustCompile(`\\begin\{(\w+)\}`)
	endRe   = regexp.MustCompile(`\\end\{(\w+)\}`)
)

// CheckSyntax scans a source for common mistakes without compiling:
// unmatched braces, unmatched environments, and empty \cite{} or \ref{}
// commands. Returns a list of human-readable issues; empty means clean.
func CheckSyntax(content string) []string {
	var issues []string

	if diff := strings.Count(content, "{") - strings.Count(content, "}"); diff != 0 {
		issues = append(issues, fmt.Sprintf("Unmatched braces: %+d", diff))
	}

	begins := make(map[string]int)
	for _, m := range beginRe.FindAllStringSubmatch(content, -1) {
		begins[m[1]]++
	}
	for _, m := range endRe.FindAllStringSubmatch(content, -1) {
		begins[m[1]]--
	}
	for env, diff := range begins {
		if diff != 0 {
			issues = append(issues, fmt.Sprintf("Unmatched \\begin{%s}: %+d", env, diff))
		}
	}

	if strings.Contains(content, `\cite{}`) {
		issues = append(issues, `Empty \cite{} command found`)
	}
	if strings.Contains(content, `\ref{}`) {
		issues = append(issues, `Empty \ref{} command found`)
	}
	return issues
}

var latexEscapes = map[rune]string{
	'\\': `\textbackslash{}`,
	'&':  `\&`,
	'%':  `\%`,
	'$':  `\$`,
	'#':  `\#`,
	'_':  `\_`,
	'{':  `\{`,
	'}':  `\}`,
	'^':  `\^{}`,
	'~':  `\~{}`,
}

// Escape replaces LaTeX special characters so arbitrary text can be
// embedded in a document. Single pass, so the backslashes introduced by
// the replacements are never re-escaped.
func Escape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if esc, ok := latexEscapes[r]; ok {
			b.WriteString(esc)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var mathSpanRe = regexp.MustCompile(`\$[^$]+\$`)

// EscapePreserveMath escapes like Escape but leaves inline math spans
// ($...$) untouched.
func EscapePreserveMath(text string) string {
	var b strings.Builder
	last := 0
	for _, span := range mathSpanRe.FindAllStringIndex(text, -1) {
		b.WriteString(Escape(text[last:span[0]]))
		b.WriteString(text[span[0]:span[1]])
		last = span[1]
	}
	b.WriteString(Escape(text[last:]))
	return b.String()
}
