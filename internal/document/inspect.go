// Package document inspects the entry Markdown file before conversion.
package document

import (
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Info summarizes an entry document.
type Info struct {
	// Title is the front matter title, if any.
	Title string
	// Heading is the text of the first heading in the body.
	Heading string
	// Images lists local image references in document order, deduplicated.
	Images []string
	// FrontMatterErr is set when the front matter block could not be parsed.
	FrontMatterErr error
}

type frontMatter struct {
	Title string `yaml:"title"`
}

var md = goldmark.New()

// Inspect reads and parses the file at path.
func Inspect(path string) (Info, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Info{}, err
	}
	return Parse(src), nil
}

// Parse extracts Info from Markdown source. Malformed front matter is
// recorded, and the whole source is then treated as body.
func Parse(src []byte) Info {
	var info Info
	var meta frontMatter

	body, err := frontmatter.Parse(bytes.NewReader(src), &meta)
	if err != nil {
		info.FrontMatterErr = err
		body = src
	} else {
		info.Title = strings.TrimSpace(meta.Title)
	}

	doc := md.Parser().Parse(text.NewReader(body))
	seen := map[string]bool{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			if info.Heading == "" {
				info.Heading = strings.TrimSpace(string(n.Text(body)))
			}
		case *ast.Image:
			dest := localDestination(string(n.Destination))
			if dest != "" && !seen[dest] {
				seen[dest] = true
				info.Images = append(info.Images, dest)
			}
		}
		return ast.WalkContinue, nil
	})
	return info
}

// localDestination returns the file path of a link destination, or "" for
// remote, data and fragment references.
func localDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "data:") || strings.Contains(dest, "://") {
		return ""
	}
	if i := strings.IndexAny(dest, "?#"); i >= 0 {
		dest = dest[:i]
	}
	if u, err := url.PathUnescape(dest); err == nil {
		dest = u
	}
	return dest
}

// Missing returns the references in images that cannot be found in any of
// the search directories.
func Missing(images []string, searchPath []string) []string {
	var missing []string
	for _, img := range images {
		if !found(img, searchPath) {
			missing = append(missing, img)
		}
	}
	return missing
}

func found(ref string, searchPath []string) bool {
	p := filepath.FromSlash(ref)
	if filepath.IsAbs(p) {
		_, err := os.Stat(p)
		return err == nil
	}
	for _, dir := range searchPath {
		if _, err := os.Stat(filepath.Join(dir, p)); err == nil {
			return true
		}
	}
	return false
}
