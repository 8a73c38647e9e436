package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/service"
)

type AvatarHandler struct {
	avatarService *service.AvatarService
}

func NewAvatarHandler(avatarService *service.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatarService: avatarService}
}

func (h *AvatarHandler) UploadMyAvatar(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return httpx.BadRequest(c, "missing_avatar", "avatar file is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return httpx.BadRequest(c, "invalid_avatar", "Invalid avatar upload")
	}
	defer f.Close()

	user, err := h.avatarService.UploadAvatar(c.UserContext(), userID, fileHeader.Filename, f)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": user.ToResponse(),
	})
}

func (h *AvatarHandler) DeleteMyAvatar(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	user, err := h.avatarService.DeleteAvatar(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"user": user.ToResponse(),
	})
}
