package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"md2pdf/internal/domain"
	"md2pdf/internal/infra/logging"
)

// Materialize writes items into the workspace and returns the Markdown
// candidates in upload order.
//
// Names rejected by Sanitize are skipped: browsers send odd names for
// directory entries and those must not fail the batch. A name that passes
// Sanitize but resolves outside the root aborts the whole request with
// domain.ErrInvalidPath before anything is written for it.
func (w *Workspace) Materialize(items []domain.UploadItem) ([]string, error) {
	var candidates []string
	seen := make(map[string]bool)

	for _, item := range items {
		rel, ok := Sanitize(item.Path)
		if !ok {
			logging.Debug("Skipping upload item with unusable path", "path", item.Path)
			continue
		}

		dest, err := w.Resolve(rel)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("%w: cannot create directory for %s", domain.ErrInvalidPath, rel)
		}
		// The parent exists now; resolve again in case it was reached
		// through a link created in the meantime.
		if dest, err = w.Resolve(rel); err != nil {
			return nil, err
		}
		if st, err := os.Stat(dest); err == nil && st.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidPath, rel)
		}
		if err := os.WriteFile(dest, item.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}

		if IsMarkdown(rel) && !seen[rel] {
			seen[rel] = true
			candidates = append(candidates, rel)
		}
	}

	if len(candidates) == 0 {
		return nil, domain.ErrNoMarkdown
	}
	return candidates, nil
}
