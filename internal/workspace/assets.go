package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"md2pdf/internal/domain"
)

// CopyAssets copies the shared assets tree into <root>/assets. Files that
// the upload already provides are left alone so request-local assets win.
// A missing src is not an error. Symlinks in src are not followed. An
// uploaded file where the assets tree needs a directory is ErrInvalidPath.
func (w *Workspace) CopyAssets(src string) error {
	if src == "" {
		return nil
	}
	if st, err := os.Stat(src); err != nil || !st.IsDir() {
		return nil
	}

	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		dest, err := w.Resolve(filepath.ToSlash(filepath.Join("assets", rel)))
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			if st, err := os.Lstat(dest); err == nil && !st.IsDir() {
				return fmt.Errorf("%w: uploaded file %s shadows the shared assets directory", domain.ErrInvalidPath, filepath.ToSlash(filepath.Join("assets", rel)))
			}
			return os.MkdirAll(dest, 0o755)
		case !d.Type().IsRegular():
			return nil
		}

		if _, err := os.Lstat(dest); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return copyFile(p, dest)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
