package workspace

import (
	"path"
	"strings"
)

// Sanitize normalizes a client-declared relative path. Backslashes become
// slashes, leading slashes are dropped and the result is cleaned lexically.
// It returns false for empty paths, "." and anything that climbs above the
// root. The check is lexical only; callers must still verify the joined path
// physically (see Workspace.Resolve).
func Sanitize(p string) (string, bool) {
	if p == "" || strings.ContainsRune(p, 0) {
		return "", false
	}
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", false
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// IsMarkdown reports whether rel names a Markdown source file.
func IsMarkdown(rel string) bool {
	ext := strings.ToLower(path.Ext(rel))
	return ext == ".md" || ext == ".markdown"
}
