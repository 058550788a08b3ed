package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"md2pdf/internal/convert"
	"md2pdf/internal/domain"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <dir>",
		Short: "Convert a Markdown directory to PDF",
		Long: `Convert uploads every file under <dir> into a fresh workspace, picks the
entry Markdown file (--entry, or the first Markdown file found) and renders it
with the configured converter. The PDF is written to --out, or to
<entry name>.pdf in the current directory.`,
		Args: cobra.ExactArgs(1),
		RunE: runConvert,
	}
	cmd.Flags().String("entry", "", "entry Markdown file, relative to <dir>")
	cmd.Flags().StringP("out", "o", "", "output PDF path")
	cmd.Flags().StringArray("meta", nil, "metadata override key=value (repeatable)")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req := domain.Request{}
	req.Entry, _ = cmd.Flags().GetString("entry")
	metas, _ := cmd.Flags().GetStringArray("meta")
	for _, m := range metas {
		pair, err := domain.ParseMetaPair(m)
		if err != nil {
			return err
		}
		req.Metadata = req.Metadata.With(pair.Key, pair.Value)
	}

	req.Items, err = readTree(args[0])
	if err != nil {
		return err
	}

	if cfg.Converter.WorkDir == "" {
		cfg.Converter.WorkDir = os.TempDir()
	}
	res, err := convert.NewService(cfg, nil).Convert(cmd.Context(), req)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = res.Filename
	}
	if err := os.WriteFile(out, res.PDF, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d bytes)\n", res.Entry, out, len(res.PDF))
	return nil
}

// readTree loads every regular file under root as an upload item named by
// its slash-separated path relative to root. Entries are visited in lexical
// order, so the first Markdown file is deterministic.
func readTree(root string) ([]domain.UploadItem, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var items []domain.UploadItem
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		items = append(items, domain.UploadItem{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNoFiles
	}
	return items, nil
}
