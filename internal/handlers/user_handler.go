package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/samber/lo"
)

type UserHandler struct {
	userService     *service.UserService
	presenceService *service.PresenceService
}

func NewUserHandler(userService *service.UserService, presenceService *service.PresenceService) *UserHandler {
	return &UserHandler{userService: userService, presenceService: presenceService}
}

// CheckUsername checks if a username is available
func (h *UserHandler) CheckUsername(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return httpx.BadRequest(c, "missing_username", "Username is required")
	}

	available, err := h.userService.IsUsernameAvailable(c.UserContext(), username)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"available": available,
	})
}

// GetCurrentUser gets the authenticated user's profile
func (h *UserHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	user, err := h.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	// ETag allows clients to re-check frequently without re-downloading.
	etag := fmt.Sprintf("W/\"u-%d-%d-%s\"", user.ID, user.UpdatedAt.UTC().UnixNano(), user.Status)
	c.Set("ETag", etag)
	c.Set("Cache-Control", "private, max-age=0, must-revalidate")

	if inm := strings.TrimSpace(c.Get("If-None-Match")); inm != "" {
		inmNorm := strings.Trim(strings.TrimPrefix(inm, "W/"), "\"")
		etagNorm := strings.Trim(strings.TrimPrefix(etag, "W/"), "\"")
		if strings.Contains(inmNorm, etagNorm) {
			return c.SendStatus(fiber.StatusNotModified)
		}
	}

	return c.JSON(fiber.Map{
		"user": user.ToResponse(),
	})
}

func (h *UserHandler) UpdateSettings(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.UpdateSettingsInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	user, err := h.userService.UpdateSettings(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": user.ToResponse(),
	})
}

type setStatusRequest struct {
	Status models.UserStatus `json:"status"`
}

func (h *UserHandler) SetStatus(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	user, err := h.presenceService.SetStatus(c.UserContext(), userID, models.UserStatus(strings.ToUpper(string(req.Status))))
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"status": user.Status,
		"user":   user.ToResponse(),
	})
}

// Roster lists every other user with their current status.
func (h *UserHandler) Roster(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	users, err := h.presenceService.Roster(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"users": lo.Map(users, func(u models.User, _ int) models.UserResponse { return u.ToPublicResponse() }),
	})
}

// GetUser returns another user's public profile.
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	user, err := h.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": user.ToPublicResponse(),
	})
}
