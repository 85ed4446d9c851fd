package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/config"
	"docvault/internal/http/middleware"
	"docvault/internal/identity"
	"docvault/internal/model"
	"docvault/internal/service"
	"docvault/internal/signedlink"
)

// actorFromCtx extracts the authenticated actor stored by middleware.Auth.
// Routes registered without the middleware see a zero actor, which the
// service layer denies on every gated operation.
func actorFromCtx(c *fiber.Ctx) model.Actor {
	if v := c.Locals(middleware.ActorLocalKey); v != nil {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{}
}

// writeServiceError maps service-layer sentinel errors onto the HTTP error
// envelope. Anything unrecognized becomes an opaque 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrNotTrashed):
		return writeError(c, fiber.StatusConflict, "CONFLICT", "document must be trashed first")
	case errors.Is(err, signedlink.ErrInvalid), errors.Is(err, signedlink.ErrExpired):
		return writeError(c, fiber.StatusForbidden, "LINK_INVALID", "link invalid or expired")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// HealthCheck reports readiness: the database must answer a ping.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments returns a page of documents. Query parameters: scope
// (active|trashed|all, unknown values fall back to active), search (term
// OR-matched over the descriptive fields) and page (1-based).
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := 1
		if raw := c.Query("page"); raw != "" {
			p, err := strconv.Atoi(raw)
			if err != nil || p < 1 {
				return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
			}
			page = p
		}

		res, err := svc.List(c.UserContext(), actorFromCtx(c), service.ListOptions{
			Scope:  c.Query("scope"),
			Search: c.Query("search"),
			Page:   page,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument creates a new document from a multipart form. The file part
// is required; description, category, classification, reference, comment,
// tags (repeated or comma-separated) and metadata (a JSON object) are
// optional. Upload policy (size ceiling, MIME allow-list) is enforced here,
// before any bytes reach the service.
func UploadDocument(svc service.DocumentService, docs config.DocumentsConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		if docs.MaxUploadBytes > 0 && fh.Size > docs.MaxUploadBytes {
			return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("file exceeds %d bytes", docs.MaxUploadBytes))
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		if !docs.MimeAllowed(ct) {
			return writeError(c, fiber.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "file type not allowed")
		}

		var metadata map[string]any
		if raw := c.FormValue("metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_METADATA", "metadata must be a JSON object")
			}
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		in := service.UploadInput{
			Description:    c.FormValue("description"),
			Category:       c.FormValue("category"),
			Classification: c.FormValue("classification"),
			Reference:      c.FormValue("reference"),
			Comment:        c.FormValue("comment"),
			Reader:         f,
			FileName:       fh.Filename,
			MimeType:       ct,
			FileSize:       fh.Size,
			Tags:           formTags(c),
			Metadata:       metadata,
		}

		doc, err := svc.Upload(c.UserContext(), actorFromCtx(c), in)
		if err != nil {
			if errors.Is(err, service.ErrEmptyFile) {
				return writeError(c, fiber.StatusBadRequest, "FILE_EMPTY", "file is empty")
			}
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// formTags collects the repeated "tags" form field, splitting each value on
// commas so both styles work.
func formTags(c *fiber.Ctx) []string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	var tags []string
	for _, raw := range form.Value["tags"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// GetDocument returns a single document by ID, in any lifecycle state.
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), actorFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// SoftDeleteDocument moves a document to the trash. Repeating the call on an
// already-trashed document succeeds with no effect.
func SoftDeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.SoftDelete(c.UserContext(), actorFromCtx(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RestoreDocument moves a trashed document back to the active state.
func RestoreDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Restore(c.UserContext(), actorFromCtx(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// PurgeDocument permanently removes a trashed document and its stored bytes.
func PurgeDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Purge(c.UserContext(), actorFromCtx(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// IssueDownloadLink returns a signed, expiring download URL for a document.
// An optional ttl query parameter (seconds) shortens or extends the default.
func IssueDownloadLink(svc service.DocumentService, defaultTTL time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		ttl := defaultTTL
		if raw := c.Query("ttl"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs < 1 {
				return writeError(c, fiber.StatusBadRequest, "INVALID_TTL", "invalid ttl")
			}
			ttl = time.Duration(secs) * time.Second
		}

		url, err := svc.IssueDownloadLink(c.UserContext(), actorFromCtx(c), id, ttl)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"url":        url,
			"expires_in": int(ttl.Seconds()),
		})
	}
}

// DownloadDocument streams the document bytes. A token query parameter, when
// present, must be a valid signature for this document.
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !identity.Validate(id) {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rc, doc, err := svc.Download(c.UserContext(), actorFromCtx(c), id, c.Query("token"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, doc.MimeType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
		// fasthttp closes the stream once the response body is written.
		if doc.FileSize > 0 {
			return c.SendStream(rc, int(doc.FileSize))
		}
		return c.SendStream(rc)
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Document
// routes expect middleware.Auth to have populated the actor; health, docs and
// spec endpoints stay open.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.DocumentService, docs config.DocumentsConfig) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(svc))
	app.Post("/documents", UploadDocument(svc, docs))
	app.Get("/documents/:id", GetDocument(svc))
	app.Delete("/documents/:id", SoftDeleteDocument(svc))
	app.Post("/documents/:id/restore", RestoreDocument(svc))
	app.Delete("/documents/:id/purge", PurgeDocument(svc))
	app.Post("/documents/:id/link", IssueDownloadLink(svc, docs.SignedLinkTTL))
	app.Get("/documents/:id/download", DownloadDocument(svc))
}
