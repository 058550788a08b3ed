package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"md2pdf/internal/domain"
	"md2pdf/internal/http/middleware"
	"md2pdf/internal/infra/logging"
)

// mapError turns a conversion error into the fiber error the server's error
// handler renders. Diagnostics are cut to maxLogChars.
func mapError(err error, maxLogChars int) *fiber.Error {
	var (
		convErr    *domain.ConversionError
		timeoutErr *domain.TimeoutError
		fe         *fiber.Error
	)
	switch {
	case errors.As(err, &fe):
		return fe
	case domain.IsClientError(err):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrBusy):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.As(err, &convErr):
		return fiber.NewError(fiber.StatusInternalServerError, domain.Truncate(convErr.Error(), maxLogChars))
	case errors.As(err, &timeoutErr):
		return fiber.NewError(fiber.StatusInternalServerError, timeoutErr.Error())
	case errors.Is(err, domain.ErrMissingOutput):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
}

// ErrorHandler renders every error as {"detail": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	if code >= fiber.StatusInternalServerError {
		logging.Error("Request failed", "path", c.Path(), "status", code, "request_id", middleware.RequestID(c), "error", err)
	} else {
		logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
	}
	return c.Status(code).JSON(fiber.Map{"detail": msg})
}
