package handlers

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/noteduco342/chatsync/internal/storage"
	"github.com/rs/zerolog/log"
)

type MediaHandler struct {
	mediaService *service.MediaService
	s3           *storage.S3Storage
}

func NewMediaHandler(mediaService *service.MediaService, s3 *storage.S3Storage) *MediaHandler {
	return &MediaHandler{mediaService: mediaService, s3: s3}
}

func normalizeETag(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, "\"")
	return v
}

// Upload accepts a multipart "file" field and returns the attachment reference
// a message can carry.
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return httpx.BadRequest(c, "missing_file", "file is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return httpx.BadRequest(c, "invalid_file", "Invalid upload")
	}
	defer f.Close()

	result, err := h.mediaService.Upload(c.UserContext(), userID, fileHeader.Filename, f)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetAttachment streams a stored attachment.
func (h *MediaHandler) GetAttachment(c *fiber.Ctx) error {
	if h.s3 == nil {
		return httpx.Error(c, fiber.StatusServiceUnavailable, "storage_not_configured", "Storage not configured")
	}

	keyParam := strings.TrimSpace(c.Params("*"))
	key, err := storage.SafeJoinKey(service.AttachmentPrefix, keyParam)
	if err != nil {
		return httpx.NotFound(c, "not_found", "Not found")
	}

	obj, st, err := h.s3.Open(c.UserContext(), key)
	if err != nil {
		if storage.IsNotFound(err) {
			return httpx.NotFound(c, "not_found", "Not found")
		}
		log.Error().Err(err).Str("key", key).Msg("Attachment fetch failed")
		return httpx.Internal(c, "media_fetch_failed")
	}

	if etag := st.ETag; etag != "" {
		c.Set("ETag", "\""+etag+"\"")
		if inm := normalizeETag(c.Get("If-None-Match")); inm != "" && inm == normalizeETag(etag) {
			_ = obj.Close()
			return c.SendStatus(fiber.StatusNotModified)
		}
	}
	if !st.LastModified.IsZero() {
		c.Set("Last-Modified", st.LastModified.UTC().Format(time.RFC1123))
	}

	// Keys are never reused.
	c.Set("Cache-Control", "private, max-age=31536000, immutable")
	contentType := st.ContentType
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	if st.Size > 0 {
		c.Set("Content-Length", strconv.FormatInt(st.Size, 10))
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			_ = obj.Close()
		}()

		n, copyErr := io.Copy(w, obj)
		if copyErr == nil {
			copyErr = w.Flush()
		}
		if copyErr != nil {
			log.Warn().Err(copyErr).Str("key", key).Int64("copied", n).Msg("Attachment stream failed")
		}
	})
	return nil
}
