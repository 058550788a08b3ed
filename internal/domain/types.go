// Package domain contains the core conversion concepts shared by the
// workspace, converter and HTTP layers. It stays free of transport and
// infrastructure concerns.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// UploadItem is one uploaded file: the client-declared relative path and its
// payload.
type UploadItem struct {
	Path string
	Data []byte
}

// MetaPair is a single metadata override passed to the converter.
type MetaPair struct {
	Key   string
	Value string
}

// Metadata is an ordered list of overrides; order is preserved on the
// converter command line.
type Metadata []MetaPair

var metaKeyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ParseMetaPair parses "key=value". The key must be a plain identifier.
func ParseMetaPair(s string) (MetaPair, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || !metaKeyRe.MatchString(key) {
		return MetaPair{}, fmt.Errorf("%w: %q", ErrInvalidMetadata, s)
	}
	return MetaPair{Key: key, Value: value}, nil
}

// With returns a copy of m with key set to value. An existing key keeps its
// position.
func (m Metadata) With(key, value string) Metadata {
	out := make(Metadata, 0, len(m)+1)
	replaced := false
	for _, p := range m {
		if p.Key == key {
			p.Value = value
			replaced = true
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, MetaPair{Key: key, Value: value})
	}
	return out
}

// Has reports whether key is set.
func (m Metadata) Has(key string) bool {
	for _, p := range m {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Request is a single conversion request. It is consumed once.
type Request struct {
	RequestID string
	Items     []UploadItem
	Entry     string
	Metadata  Metadata
}

// Result is a rendered document.
type Result struct {
	PDF      []byte
	Filename string
	Entry    string
	Cached   bool
}

// Truncate limits s to max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
