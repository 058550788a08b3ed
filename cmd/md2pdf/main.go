package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"md2pdf/internal/cache"
	"md2pdf/internal/config"
	"md2pdf/internal/convert"
	"md2pdf/internal/http/server"
	"md2pdf/internal/infra/logging"
	"md2pdf/internal/infra/postgres"
	"md2pdf/internal/infra/ratelimit"
	"md2pdf/internal/tokens"
)

func main() {
	cfg := config.Load()
	if err := ensureLogDir(cfg.Logger.File); err != nil {
		panic(err)
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pdfCache *cache.PDFCache
	if cfg.Cache.PDFCacheEnabled && cfg.Cache.RedisHost != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		defer rdb.Close()
		pdfCache = cache.New(rdb, cfg.Cache.PDFCacheTTL)
		logging.Info("PDF cache enabled", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.PDFCacheDB, "ttl", cfg.Cache.PDFCacheTTL.String())
	}

	deps := server.Deps{
		Config:  cfg,
		Service: convert.NewService(cfg, pdfCache),
	}

	if cfg.Auth.Enabled {
		deps.Tokens = tokens.NewCache()
		db := postgres.NewDB()
		defer db.Close()
		if err := startTokenReloader(ctx, cfg, db, deps.Tokens); err != nil {
			logging.Error("Token store disabled", "error", err)
		}
	}

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.EnableTokenRateLimiter {
		deps.Store = ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
	}

	logging.Info("Starting md2pdf",
		"addr", cfg.Server.Host+cfg.Server.Port,
		"converter", cfg.Converter.Binary,
		"max_concurrent", cfg.Converter.MaxConcurrent,
		"auth", cfg.Auth.Enabled,
	)

	idleConnsClosed := make(chan struct{})
	startServer(server.New(deps), cfg, idleConnsClosed)
	<-idleConnsClosed
}

// startTokenReloader loads the tokens once and keeps refreshing them. A
// failed first load leaves the store not ready; the reloader keeps trying.
func startTokenReloader(ctx context.Context, cfg config.Config, db *postgres.DB, cache *tokens.Cache) error {
	dsn, err := postgres.DSN(cfg.Auth.Postgres)
	if err != nil {
		return err
	}
	repo := postgres.NewTokenRepository(db, dsn)
	if err := repo.VerifySchema(ctx); err != nil {
		logging.Error("Token schema check failed", "error", err)
	}
	r := tokens.NewReloader(repo, cache, cfg.Auth.ReloadInterval)
	if err := r.LoadOnce(ctx); err != nil {
		logging.Error("Failed to load API tokens", "error", err)
	} else {
		logging.Info("API tokens loaded", "count", cache.Len())
	}
	r.Start(ctx)
	return nil
}

// ensureLogDir creates the directory of the log file if needed.
func ensureLogDir(file string) error {
	if file == "" {
		return nil
	}
	dir := filepath.Dir(file)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// startServer runs the app until SIGINT or SIGTERM and then shuts it down.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	// running conversions get the converter timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Converter.Timeout+5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
