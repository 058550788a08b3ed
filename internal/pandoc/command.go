// Package pandoc builds and runs the external Markdown to PDF converter.
package pandoc

import (
	"os"
	"path/filepath"
	"strings"

	"md2pdf/internal/config"
	"md2pdf/internal/domain"
)

// Command is a fully assembled converter invocation.
type Command struct {
	Name string
	Args []string
	// Env holds KEY=VALUE pairs applied on top of the process environment.
	Env []string
}

// BuildInput describes one conversion.
type BuildInput struct {
	WorkDir  string
	Input    string
	Output   string
	Metadata domain.Metadata
}

// Builder assembles converter command lines from server-side resources.
// Resource files are only ever taken from Resources, never from the request.
type Builder struct {
	Binary    string
	From      string
	PDFEngine string
	Resources config.Resources
}

// NewBuilder creates a Builder from the converter and resource config.
func NewBuilder(cc config.ConverterConfig, res config.Resources) *Builder {
	b := &Builder{
		Binary:    cc.Binary,
		From:      cc.From,
		PDFEngine: cc.PDFEngine,
		Resources: res,
	}
	if b.Binary == "" {
		b.Binary = "pandoc"
	}
	if b.From == "" {
		b.From = config.DefaultFrom
	}
	if b.PDFEngine == "" {
		b.PDFEngine = config.DefaultPDFEngine
	}
	return b
}

// Build returns the command for in.
func (b *Builder) Build(in BuildInput) Command {
	args := []string{
		in.Input,
		"--from", b.From,
		"--pdf-engine", b.PDFEngine,
		"--listings",
		"--toc", "--number-sections",
		"--resource-path", strings.Join(b.ResourcePath(in.WorkDir, in.Input), string(os.PathListSeparator)),
		"--output", in.Output,
	}

	optional := []struct {
		flag string
		name string
	}{
		{"--metadata-file", b.Resources.MetadataFile},
		{"--template", b.Resources.Template},
		{"--lua-filter", b.Resources.LuaFilter},
		{"--include-in-header", b.Resources.HeaderIncludes},
	}
	for _, o := range optional {
		p := b.Resources.Path(o.name)
		if p != "" && fileExists(p) {
			args = append(args, o.flag, p)
		}
	}

	for _, m := range in.Metadata {
		args = append(args, "--metadata", m.Key+"="+m.Value)
	}

	return Command{
		Name: b.Binary,
		Args: args,
		Env:  b.Env(in.WorkDir),
	}
}

// ResourcePath lists the directories the converter searches for assets,
// request-local first. Directories that do not exist are dropped.
func (b *Builder) ResourcePath(workDir, input string) []string {
	candidates := []string{
		filepath.Dir(input),
		workDir,
		filepath.Join(workDir, "assets", "images"),
		filepath.Join(workDir, "assets", "branding"),
	}
	if g := b.Resources.Assets; g != "" && dirExists(g) {
		candidates = append(candidates,
			g,
			filepath.Join(g, "images"),
			filepath.Join(g, "branding"),
		)
	}

	out := candidates[:0]
	for _, c := range candidates {
		if dirExists(c) {
			out = append(out, c)
		}
	}
	return out
}

// Env returns the environment overlay for a conversion in workDir. The TeX
// variable cache is kept per request.
func (b *Builder) Env(workDir string) []string {
	env := []string{"TEXMFVAR=" + filepath.Join(workDir, ".texlive-var")}
	if b.Resources.Root != "" {
		env = append(env, "TEXINPUTS="+filepath.ToSlash(b.Resources.Root)+"//:")
	}
	return env
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func dirExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
