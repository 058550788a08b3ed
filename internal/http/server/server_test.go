package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	memoryStorage "github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"md2pdf/internal/config"
	"md2pdf/internal/convert"
	"md2pdf/internal/domain"
	"md2pdf/internal/tokens"
)

type stubConverter struct{}

func (stubConverter) Convert(ctx context.Context, req domain.Request) (*domain.Result, error) {
	return &domain.Result{PDF: []byte("%PDF"), Filename: "a.pdf"}, nil
}

func (stubConverter) Stats() convert.Stats { return convert.Stats{} }

func minimalConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Server.WebRoot = t.TempDir()
	return cfg
}

func do(t *testing.T, d Deps, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := New(d).Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func convertRequest(key string) *http.Request {
	body := "--b\r\nContent-Disposition: form-data; name=\"files\"; filename=\"doc/a.md\"\r\n\r\n# a\r\n--b--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return req
}

func TestNew_RoutesAndJSON404(t *testing.T) {
	d := Deps{Config: minimalConfig(t), Service: stubConverter{}}

	resp, _ := do(t, d, httptest.NewRequest(http.MethodGet, "/ops/stats", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, d, httptest.NewRequest(http.MethodGet, "/ops/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, d, httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"detail":"Not Found"}`, body)

	resp, body = do(t, d, convertRequest(""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF", body)
}

func TestNew_IndexAndStatic(t *testing.T) {
	cfg := minimalConfig(t)
	d := Deps{Config: cfg, Service: stubConverter{}}

	resp, body := do(t, d, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, `"detail"`)

	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Server.WebRoot, "templates"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Server.WebRoot, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.WebRoot, "templates", "index.html"), []byte("<html>up</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Server.WebRoot, "static", "main.js"), []byte("// js"), 0o644))

	resp, body = do(t, d, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>up</html>", body)

	resp, body = do(t, d, httptest.NewRequest(http.MethodGet, "/static/main.js", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "// js", body)
}

func multipartBody(size int) string {
	return "--b\r\nContent-Disposition: form-data; name=\"files\"; filename=\"a.md\"\r\n\r\n" +
		strings.Repeat("x", size) + "\r\n--b--\r\n"
}

func TestNew_BodyLimit(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.Server.BodyLimitMB = 1
	app := New(Deps{Config: cfg, Service: stubConverter{}})

	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(multipartBody(1024*1024-1024)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// fasthttp writes 413 and closes the connection; app.Test then returns
	// the server's ErrBodyTooLarge instead of a response.
	req = httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(multipartBody(2*1024*1024)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	_, err = app.Test(req, 5000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body size exceeds the given limit")
}

func TestNew_AuthAndTokenRateLimit(t *testing.T) {
	cfg := minimalConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.Required = true
	cfg.RateLimiter.Interval = time.Hour
	cfg.RateLimiter.EnableTokenRateLimiter = true

	cache := tokens.NewCache()
	d := Deps{Config: cfg, Service: stubConverter{}, Tokens: cache, Store: memoryStorage.New()}
	app := New(d)

	resp, err := app.Test(convertRequest("k"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "token store not loaded yet")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ops/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	cache.Replace(map[string]tokens.Entry{
		"k":     {RateLimit: 1},
		"stats": {Scope: tokens.Scope{"stats": true}},
	})

	resp, err = app.Test(convertRequest(""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(convertRequest("stats"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(convertRequest("k"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(convertRequest("k"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ops/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
