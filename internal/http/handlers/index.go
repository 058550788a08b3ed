package handlers

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"md2pdf/internal/infra/logging"
)

// IndexPage is the upload page, relative to the web root.
const IndexPage = "templates/index.html"

// HandleIndex serves the upload page from webRoot.
func HandleIndex(webRoot string) fiber.Handler {
	page := filepath.Join(webRoot, filepath.FromSlash(IndexPage))
	return func(c *fiber.Ctx) error {
		html, err := os.ReadFile(page)
		if err != nil {
			logging.Error("Upload page unavailable", "path", page, "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, IndexPage+" is missing")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(html)
	}
}
