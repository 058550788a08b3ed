// Package workspace materializes uploaded file trees into isolated,
// request-scoped directories and resolves the Markdown entry file.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"

	"md2pdf/internal/domain"
)

// Workspace is a request-scoped directory. Every path handed out by it is
// verified to stay inside Root.
type Workspace struct {
	Root string

	resolvedRoot string
}

// New creates a fresh directory under base (os.TempDir when empty).
func New(base string) (*Workspace, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return nil, fmt.Errorf("create work dir base: %w", err)
		}
	}
	dir, err := os.MkdirTemp(base, "md2pdf-"+xid.New().String()+"-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return Open(dir)
}

// Open wraps an existing directory.
func Open(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{Root: abs, resolvedRoot: resolved}, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}

// Path joins a sanitized relative path onto the root without verification.
func (w *Workspace) Path(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Resolve returns the physical location of rel. Symlinks in the existing
// part of the path are followed; the remainder is appended lexically since
// components that do not exist yet cannot be links. A result outside the
// resolved root yields domain.ErrInvalidPath.
func (w *Workspace) Resolve(rel string) (string, error) {
	target := w.Path(rel)
	existing := target
	var rest []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidPath, rel)
	}
	resolved = filepath.Join(append([]string{resolved}, rest...)...)

	if !w.contains(resolved) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidPath, rel)
	}
	return resolved, nil
}

// contains reports whether p is a strict descendant of the resolved root.
func (w *Workspace) contains(p string) bool {
	rel, err := filepath.Rel(w.resolvedRoot, p)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// IsFile reports whether rel resolves to a regular file inside the root.
func (w *Workspace) IsFile(rel string) bool {
	p, err := w.Resolve(rel)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}
