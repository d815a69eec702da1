// Package research fetches paper metadata and manages bibliography
// entries. arXiv is the only backing source; its API terms ask for at
// most one request every three seconds, enforced with a rate limiter.
package research

import (
	"fmt"
	"strings"
	"unicode"
)

// Paper is the metadata needed to cite a publication.
type Paper struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     int      `json:"year"`
	Abstract string   `json:"abstract,omitempty"`
	ArxivID  string   `json:"arxiv_id,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// CiteKey derives a citation key like "vaswani2017attention" from the
// first author's last name, the year, and the first significant title
// word.
func (p *Paper) CiteKey() string {
	author := "unknown"
	if len(p.Authors) > 0 {
		parts := strings.Fields(p.Authors[0])
		if len(parts) > 0 {
			author = strings.ToLower(sanitizeKey(parts[len(parts)-1]))
		}
	}

	word := "paper"
	for _, w := range strings.Fields(p.Title) {
		w = strings.ToLower(sanitizeKey(w))
		if len(w) > 3 && !stopWords[w] {
			word = w
			break
		}
	}
	return fmt.Sprintf("%s%d%s", author, p.Year, word)
}

// BibTeX renders the entry under the given key. arXiv papers become
// @misc with an eprint field; anything else falls back to @misc with
// just the URL.
func (p *Paper) BibTeX(citeKey string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@misc{%s,\n", citeKey)
	fmt.Fprintf(&b, "  title = {%s},\n", p.Title)
	if len(p.Authors) > 0 {
		fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(p.Authors, " and "))
	}
	fmt.Fprintf(&b, "  year = {%d},\n", p.Year)
	if p.ArxivID != "" {
		fmt.Fprintf(&b, "  eprint = {%s},\n", p.ArxivID)
		b.WriteString("  archivePrefix = {arXiv},\n")
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "  url = {%s},\n", p.URL)
	}
	b.WriteString("}")
	return b.String()
}

// CiteCommand formats the in-text citation, e.g. \citep{key}.
func CiteCommand(citeKey, style string) string {
	if style == "" {
		style = "cite"
	}
	return fmt.Sprintf("\\%s{%s}", style, citeKey)
}

var stopWords = map[string]bool{
	"with": true, "from": true, "this": true, "that": true,
	"into": true, "over": true, "their": true, "about": true,
	"towards": true, "toward": true, "using": true,
}

func sanitizeKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
