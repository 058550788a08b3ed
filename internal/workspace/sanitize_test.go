package workspace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_Accepts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"doc/report.md", "doc/report.md"},
		{"/doc/report.md", "doc/report.md"},
		{"///doc//img/./logo.png", "doc/img/logo.png"},
		{`doc\img\logo.png`, "doc/img/logo.png"},
		{"a/b/../c.md", "a/c.md"},
		{"./notes.md", "notes.md"},
		{"..hidden/x.md", "..hidden/x.md"},
		{"raport końcowy.md", "raport końcowy.md"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := Sanitize(tc.in)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSanitize_Rejects(t *testing.T) {
	for _, in := range []string{
		"", "/", "///", ".", "./", "..", "../x.md", "a/../../x.md",
		`..\..\etc\passwd`, "../../etc/passwd", "/../etc/passwd", "a\x00b.md",
	} {
		t.Run(in, func(t *testing.T) {
			_, ok := Sanitize(in)
			assert.False(t, ok)
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"doc/report.md", "/x//y/./z", `a\b\..\c`, "a/b/c/../../d.md",
		"...", ".../x", "a/./././b", "x/y/",
	}
	for _, in := range inputs {
		once, ok := Sanitize(in)
		if !ok {
			continue
		}
		twice, ok := Sanitize(once)
		assert.True(t, ok, in)
		assert.Equal(t, once, twice, in)
		assert.False(t, strings.HasPrefix(once, "/"), in)
		assert.NotContains(t, strings.Split(once, "/"), "..", in)
	}
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("a/b.md"))
	assert.True(t, IsMarkdown("README.MD"))
	assert.True(t, IsMarkdown("x.Markdown"))
	assert.False(t, IsMarkdown("notes.txt"))
	assert.False(t, IsMarkdown("md"))
	assert.False(t, IsMarkdown("a.md.bak"))
}
