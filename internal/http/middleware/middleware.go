// Package middleware holds the fiber middleware shared by every route.
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"md2pdf/internal/infra/logging"
)

// RequestIDKey is the Locals key holding the request id.
const RequestIDKey = "requestid"

// Register attaches CORS, request ids, the health probes and request logging.
// ready backs /ops/ready; nil means always ready.
func Register(app *fiber.App, ready func() bool) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator:  func() string { return xid.New().String() },
		ContextKey: RequestIDKey,
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
		ReadinessProbe: func(*fiber.Ctx) bool {
			return ready == nil || ready()
		},
	}))

	app.Use(requestLogger())
}

// RequestID returns the id assigned to the current request.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDKey).(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", RequestID(c))
		err := c.Next()
		logging.Debug("Request finished",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", RequestID(c),
			"status", c.Response().StatusCode(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"detail": msg})
}
