package research

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/tools"
)

var bibResourceRe = regexp.MustCompile(`\\(?:bibliography|addbibresource)\{([^}]+)\}`)

// FindBibFile parses main.tex for a \bibliography or \addbibresource
// command and returns the referenced .bib path, defaulting to refs.bib.
func FindBibFile(projectPath string) string {
	abs, err := tools.ResolveInProject(projectPath, "main.tex")
	if err != nil {
		return "refs.bib"
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "refs.bib"
	}
	m := bibResourceRe.FindSubmatch(content)
	if m == nil {
		return "refs.bib"
	}
	name := string(m[1])
	if !strings.HasSuffix(name, ".bib") {
		name += ".bib"
	}
	return name
}

// AddToBibliography appends the paper's BibTeX entry to the project's
// .bib file, creating it when missing. A duplicate cite key is refused
// so the approver can pick another.
func AddToBibliography(projectPath, bibFile string, paper *Paper, citeKey string) (string, error) {
	if citeKey == "" {
		citeKey = paper.CiteKey()
	}
	abs, err := tools.ResolveInProject(projectPath, bibFile)
	if err != nil {
		return "", err
	}

	entry := paper.BibTeX(citeKey)
	existing, err := os.ReadFile(abs)
	switch {
	case err == nil:
		if strings.Contains(string(existing), citeKey) {
			return "", errors.Newf(errors.ErrCodeInvalidInput,
				"citation key %q already exists in %s", citeKey, bibFile)
		}
		f, err := os.OpenFile(abs, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodePermissionDenied, "opening bibliography")
		}
		defer f.Close()
		if _, err := f.WriteString("\n\n" + entry); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInternal, "appending bibliography entry")
		}
	case os.IsNotExist(err):
		if err := os.WriteFile(abs, []byte(entry+"\n"), 0o644); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeInternal, "creating bibliography")
		}
	default:
		return "", errors.Wrap(err, errors.ErrCodePermissionDenied, "reading bibliography")
	}

	return fmt.Sprintf("Added citation to %s:\n\n%s\n\nUse: %s", bibFile, entry, CiteCommand(citeKey, "cite")), nil
}
