package httpx

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// FromError writes the response for a service error according to its kind.
func FromError(c *fiber.Ctx, err error) error {
	var e *apperr.Error
	message := err.Error()
	if errors.As(err, &e) && e.Msg != "" {
		message = e.Msg
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return NotFound(c, "not_found", message)
	case apperr.KindPermissionDenied:
		return Forbidden(c, "permission_denied", message)
	case apperr.KindInvalidArgument:
		return BadRequest(c, "invalid_argument", message)
	case apperr.KindConflictRetryable:
		return Error(c, fiber.StatusConflict, "conflict", "Request conflicted, try again")
	case apperr.KindUpstreamUnavailable:
		log.Error().Err(err).Str("path", c.Path()).Msg("Upstream unavailable")
		return Error(c, fiber.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
	return Internal(c, "internal")
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}

// ParamUint reads a positive numeric route parameter.
func ParamUint(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.InvalidArgument("params", "invalid %s", name)
	}
	return uint(v), nil
}
