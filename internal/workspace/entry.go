package workspace

import (
	"slices"

	"md2pdf/internal/domain"
	"md2pdf/internal/infra/logging"
)

// ResolveEntry picks the Markdown file to render. A declared entry wins when
// it sanitizes cleanly; a declared entry that does not sanitize falls back to
// the first candidate. The chosen entry must be a candidate or an existing
// file inside the workspace.
func (w *Workspace) ResolveEntry(candidates []string, declared string) (string, error) {
	entry := ""
	if declared != "" {
		if rel, ok := Sanitize(declared); ok {
			entry = rel
		} else {
			logging.Warn("Declared entry rejected, using first Markdown file", "entry", declared)
		}
	}
	if entry == "" {
		if len(candidates) == 0 {
			return "", domain.ErrNoMarkdown
		}
		entry = candidates[0]
	}

	if !slices.Contains(candidates, entry) && !w.IsFile(entry) {
		return "", &domain.EntryNotFoundError{Path: entry}
	}
	if _, err := w.Resolve(entry); err != nil {
		return "", err
	}
	return entry, nil
}
