package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", apperr.NotFound("get", "conversation %d not found", 4), fiber.StatusNotFound, "not_found", "conversation 4 not found"},
		{"permission", apperr.PermissionDenied("send", "not a participant"), fiber.StatusForbidden, "permission_denied", "not a participant"},
		{"invalid", apperr.InvalidArgument("send", "empty message"), fiber.StatusBadRequest, "invalid_argument", "empty message"},
		{"conflict", apperr.ConflictRetryable("read", "version changed"), fiber.StatusConflict, "conflict", "Request conflicted, try again"},
		{"upstream", apperr.Upstream("publish", errors.New("redis down")), fiber.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable"},
		{"unknown", errors.New("boom"), fiber.StatusInternalServerError, "internal", "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.wantCode, body.Code)
			require.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestParamUint(t *testing.T) {
	app := fiber.New()
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := ParamUint(c, "id")
		if err != nil {
			return FromError(c, err)
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for path, want := range map[string]int{
		"/items/12":  fiber.StatusOK,
		"/items/0":   fiber.StatusBadRequest,
		"/items/-1":  fiber.StatusBadRequest,
		"/items/abc": fiber.StatusBadRequest,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		require.Equal(t, want, resp.StatusCode, path)
	}
}
