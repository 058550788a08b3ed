package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"md2pdf/internal/domain"
	"md2pdf/internal/infra/logging"
)

// APIKeyLocal is the Locals key holding a validated API key.
const APIKeyLocal = "api_key"

// TokenStore is the view of the token cache the middleware needs.
type TokenStore interface {
	Ready() bool
	Validate(token string) bool
	Allows(token, op string) bool
}

// AuthConfig controls API key checking.
type AuthConfig struct {
	// Required rejects keyless requests. Otherwise they pass as public.
	Required bool
}

// APIKey validates the X-API-Key header against store.
func APIKey(cfg AuthConfig, store TokenStore) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !store.Ready() {
				return false, domain.ErrTokenStoreNotReady
			}
			if !store.Validate(key) {
				return false, domain.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			return !cfg.Required && c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may pass a nil error
			status := fiber.StatusUnauthorized
			switch {
			case err == nil:
				err = domain.ErrInvalidAPIKey
			case errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey):
				err = domain.ErrMissingAPIKey
			case errors.Is(err, domain.ErrTokenStoreNotReady):
				status = fiber.StatusServiceUnavailable
			}
			logging.Warn("API key rejected", "path", c.Path(), "request_id", RequestID(c), "reason", err.Error())
			return detail(c, status, err.Error())
		},
	})
}

// RequireScope rejects authenticated requests whose token does not grant op.
// Public requests pass.
func RequireScope(store TokenStore, op string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, _ := c.Locals(APIKeyLocal).(string)
		if token == "" || store.Allows(token, op) {
			return c.Next()
		}
		return detail(c, fiber.StatusForbidden, "api key not allowed to "+op)
	}
}
