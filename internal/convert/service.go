// Package convert runs one Markdown tree through the converter: it
// materializes the upload, resolves the entry, invokes the converter and
// returns the rendered PDF.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"md2pdf/internal/cache"
	"md2pdf/internal/config"
	"md2pdf/internal/document"
	"md2pdf/internal/domain"
	"md2pdf/internal/infra/logging"
	"md2pdf/internal/pandoc"
	"md2pdf/internal/workspace"
)

type runner interface {
	Run(ctx context.Context, cmd pandoc.Command, dir string) error
}

// Service converts uploaded Markdown trees. It is safe for concurrent use;
// each conversion gets its own workspace.
type Service struct {
	builder        *pandoc.Builder
	runner         runner
	cache          *cache.PDFCache
	workBase       string
	assets         string
	defaults       domain.Metadata
	deriveTitle    bool
	sem            chan struct{}
	acquireTimeout time.Duration

	inUse       atomic.Int64
	conversions atomic.Int64
	failures    atomic.Int64
	cacheHits   atomic.Int64
}

// NewService wires a Service from cfg. pdfCache may be nil.
func NewService(cfg config.Config, pdfCache *cache.PDFCache) *Service {
	s := &Service{
		builder:        pandoc.NewBuilder(cfg.Converter, cfg.Resources),
		runner:         pandoc.NewRunner(cfg.Converter),
		cache:          pdfCache,
		workBase:       cfg.Converter.WorkDir,
		assets:         cfg.Resources.Assets,
		deriveTitle:    cfg.Converter.DeriveTitle,
		acquireTimeout: cfg.Converter.AcquireTimeout,
	}
	for _, m := range cfg.Converter.Metadata {
		s.defaults = s.defaults.With(m.Key, m.Value)
	}
	if n := cfg.Converter.MaxConcurrent; n > 0 {
		s.sem = make(chan struct{}, n)
	}
	return s
}

// Stats is a snapshot of conversion slot usage.
type Stats struct {
	Limited     bool  `json:"limited"`
	Capacity    int   `json:"capacity"`
	InUse       int64 `json:"in_use"`
	Idle        int64 `json:"idle"`
	Conversions int64 `json:"conversions"`
	Failures    int64 `json:"failures"`
	CacheHits   int64 `json:"cache_hits"`
}

// Stats returns current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Limited:     s.sem != nil,
		Capacity:    cap(s.sem),
		InUse:       s.inUse.Load(),
		Conversions: s.conversions.Load(),
		Failures:    s.failures.Load(),
		CacheHits:   s.cacheHits.Load(),
	}
	if st.Limited {
		st.Idle = int64(st.Capacity) - st.InUse
	}
	return st
}

// Convert renders req. Client-caused failures are reported with the
// domain sentinel and typed errors; see domain.IsClientError.
func (s *Service) Convert(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrNoFiles
	}

	var cacheKey string
	if s.cache != nil {
		cacheKey = cache.Key(req)
		if e := s.cache.Get(ctx, cacheKey); e != nil {
			s.cacheHits.Add(1)
			return &domain.Result{PDF: e.PDF, Filename: e.Filename, Cached: true}, nil
		}
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.convert(ctx, req)
	s.conversions.Add(1)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, cache.Entry{PDF: res.PDF, Filename: res.Filename})
	}
	return res, nil
}

func (s *Service) convert(ctx context.Context, req domain.Request) (*domain.Result, error) {
	ws, err := workspace.New(s.workBase)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			logging.Warn("Failed to remove workspace", "request_id", req.RequestID, "error", err)
		}
	}()

	candidates, err := ws.Materialize(req.Items)
	if err != nil {
		return nil, err
	}
	entry, err := ws.ResolveEntry(candidates, req.Entry)
	if err != nil {
		return nil, err
	}
	logging.Info("Upload materialized",
		"request_id", req.RequestID, "files", len(req.Items), "markdown", len(candidates), "entry", entry)

	if err := ws.CopyAssets(s.assets); err != nil {
		return nil, fmt.Errorf("copy shared assets: %w", err)
	}

	input, err := ws.Resolve(entry)
	if err != nil {
		return nil, err
	}
	stem := stemOf(entry)
	output := filepath.Join(ws.Root, safeStem(stem)+".pdf")
	info, err := document.Inspect(input)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	meta := s.metadata(req, info)

	cmd := s.builder.Build(pandoc.BuildInput{
		WorkDir:  ws.Root,
		Input:    input,
		Output:   output,
		Metadata: meta,
	})
	s.reportDocumentProblems(req.RequestID, info, s.builder.ResourcePath(ws.Root, input))

	start := time.Now()
	err = s.runner.Run(ctx, cmd, ws.Root)
	elapsed := time.Since(start)
	if err != nil {
		var timeoutErr *domain.TimeoutError
		if errors.As(err, &timeoutErr) {
			logging.Error("Converter timed out", "request_id", req.RequestID, "entry", entry, "limit", timeoutErr.Limit.String())
		} else {
			logging.Error("Converter failed", "request_id", req.RequestID, "entry", entry, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		}
		return nil, err
	}

	pdf, err := os.ReadFile(output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Error("Converter exited 0 without writing output", "request_id", req.RequestID, "entry", entry, "command", cmd.Name)
			return nil, domain.ErrMissingOutput
		}
		return nil, fmt.Errorf("read converter output: %w", err)
	}

	logging.Info("PDF generated", "request_id", req.RequestID, "entry", entry, "bytes", len(pdf), "elapsed_ms", elapsed.Milliseconds())
	return &domain.Result{PDF: pdf, Filename: stem + ".pdf", Entry: entry}, nil
}

// metadata merges the configured defaults with the request overrides and,
// when enabled, a title taken from the first heading.
func (s *Service) metadata(req domain.Request, info document.Info) domain.Metadata {
	meta := append(domain.Metadata(nil), s.defaults...)
	for _, m := range req.Metadata {
		meta = meta.With(m.Key, m.Value)
	}
	if s.deriveTitle && !meta.Has("title") && info.Title == "" && info.Heading != "" {
		meta = meta.With("title", info.Heading)
	}
	return meta
}

// reportDocumentProblems logs hints that usually explain a later converter
// failure. It never fails the conversion.
func (s *Service) reportDocumentProblems(requestID string, info document.Info, searchPath []string) {
	if info.FrontMatterErr != nil {
		logging.Warn("Entry front matter does not parse", "request_id", requestID, "error", info.FrontMatterErr)
	}
	if missing := document.Missing(info.Images, searchPath); len(missing) > 0 {
		logging.Warn("Images not found on resource path", "request_id", requestID, "images", missing)
	}
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	if s.sem == nil {
		return func() {}, nil
	}
	if s.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
		defer cancel()
	}
	select {
	case s.sem <- struct{}{}:
		s.inUse.Add(1)
		return func() {
			s.inUse.Add(-1)
			<-s.sem
		}, nil
	case <-ctx.Done():
		return nil, domain.ErrBusy
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// stemOf returns the entry file name without its extension.
func stemOf(entry string) string {
	base := path.Base(entry)
	if stem := strings.TrimSuffix(base, path.Ext(base)); stem != "" {
		return stem
	}
	return base
}

// safeStem makes stem usable as an output file name inside the workspace.
func safeStem(stem string) string {
	s := unsafeName.ReplaceAllString(stem, "_")
	if s == "" || s == "." || s == ".." {
		return "report"
	}
	return s
}
