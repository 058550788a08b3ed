// Package handlers implements the md2pdf HTTP endpoints.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"md2pdf/internal/convert"
	"md2pdf/internal/domain"
	"md2pdf/internal/http/middleware"
	"md2pdf/internal/infra/logging"
)

// Form field names of POST /convert.
const (
	FieldFiles    = "files"
	FieldEntry    = "entry_md"
	FieldMetadata = "metadata"
)

// Converter is the conversion service as seen by the handlers.
type Converter interface {
	Convert(ctx context.Context, req domain.Request) (*domain.Result, error)
	Stats() convert.Stats
}

// HandleConvert serves POST /convert.
func HandleConvert(svc Converter, maxLogChars int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseUpload(c)
		if err != nil {
			return err
		}
		req.RequestID = middleware.RequestID(c)

		res, err := svc.Convert(c.UserContext(), req)
		if err != nil {
			if domain.IsClientError(err) {
				logging.Warn("Conversion rejected", "request_id", req.RequestID, "reason", err.Error())
			}
			return mapError(err, maxLogChars)
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, ContentDisposition(res.Filename))
		if res.Cached {
			c.Set("X-Cache", "HIT")
		}
		return c.Send(res.PDF)
	}
}

// parseUpload reads the multipart body. Part headers are parsed directly
// because mime/multipart reduces file names to their base name, and the
// relative path is what places the file in the tree.
func parseUpload(c *fiber.Ctx) (domain.Request, error) {
	var req domain.Request

	mediaType, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "expected a multipart/form-data body")
	}

	mr := multipart.NewReader(bytes.NewReader(c.Body()), params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, fiber.NewError(fiber.StatusBadRequest, "malformed multipart body")
		}
		if err := readPart(&req, part); err != nil {
			return req, err
		}
	}
	return req, nil
}

func readPart(req *domain.Request, part *multipart.Part) error {
	defer part.Close()

	_, params, _ := mime.ParseMediaType(part.Header.Get(fiber.HeaderContentDisposition))
	data, err := io.ReadAll(part)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed multipart body")
	}

	switch params["name"] {
	case FieldFiles:
		if params["filename"] == "" {
			return nil
		}
		req.Items = append(req.Items, domain.UploadItem{Path: params["filename"], Data: data})
	case FieldEntry:
		req.Entry = strings.TrimSpace(string(data))
	case FieldMetadata:
		pair, err := domain.ParseMetaPair(string(data))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		req.Metadata = req.Metadata.With(pair.Key, pair.Value)
	}
	return nil
}

// HandleStats serves GET /ops/stats.
func HandleStats(svc Converter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Stats())
	}
}
