// Package server assembles the fiber application.
package server

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"md2pdf/internal/config"
	"md2pdf/internal/http/handlers"
	"md2pdf/internal/http/middleware"
	"md2pdf/internal/tokens"
)

// Deps are the collaborators of the HTTP server. Tokens may be nil when
// authentication is disabled; Store may be nil when no limiter is enabled.
type Deps struct {
	Config  config.Config
	Service handlers.Converter
	Tokens  *tokens.Cache
	Store   fiber.Storage
}

// New creates the fiber app with middleware and routes.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit(cfg.Server.BodyLimitMB),
		ErrorHandler:          handlers.ErrorHandler,
	})

	var ready func() bool
	if cfg.Auth.Enabled && d.Tokens != nil {
		ready = d.Tokens.Ready
	}
	middleware.Register(app, ready)

	app.Get("/", handlers.HandleIndex(cfg.Server.WebRoot))
	app.Get("/index.html", handlers.HandleIndex(cfg.Server.WebRoot))
	app.Static("/static", filepath.Join(cfg.Server.WebRoot, "static"))

	app.Post("/convert", append(guards(d, "convert"),
		handlers.HandleConvert(d.Service, cfg.Converter.MaxLogChars))...)

	app.Get("/ops/stats", append(guards(d, "stats"), handlers.HandleStats(d.Service))...)
	app.Get("/ops/monitor", monitor.New(monitor.Config{Title: "md2pdf"}))

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	return app
}

// guards returns the auth and rate limit chain for an API route.
func guards(d Deps, op string) []fiber.Handler {
	cfg := d.Config
	rl := middleware.RateLimitConfig{
		RateInterval:           cfg.RateLimiter.Interval,
		EnableTokenRateLimiter: cfg.RateLimiter.EnableTokenRateLimiter,
		EnableUserLimiter:      cfg.RateLimiter.EnableUserLimiter,
		UserLimit:              cfg.RateLimiter.UserLimit,
	}

	var chain []fiber.Handler
	if cfg.Auth.Enabled && d.Tokens != nil {
		chain = append(chain,
			middleware.APIKey(middleware.AuthConfig{Required: cfg.Auth.Required}, d.Tokens),
			middleware.RequireScope(d.Tokens, op),
		)
		if d.Store != nil {
			chain = append(chain, middleware.TokenRateLimit(rl, d.Tokens, d.Store, middleware.NewLimiterCache()))
		}
	}
	if d.Store != nil {
		chain = append(chain, middleware.UserRateLimit(rl, d.Store))
	}
	return chain
}

func bodyLimit(mb int) int {
	if mb <= 0 {
		return fiber.DefaultBodyLimit
	}
	return mb * 1024 * 1024
}
