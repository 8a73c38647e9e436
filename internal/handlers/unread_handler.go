package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/samber/lo"
)

type UnreadHandler struct {
	unreadService *service.UnreadService
}

func NewUnreadHandler(unreadService *service.UnreadService) *UnreadHandler {
	return &UnreadHandler{unreadService: unreadService}
}

// Counts returns unread totals keyed by conversation id.
func (h *UnreadHandler) Counts(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	counts, err := h.unreadService.Counts(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	// JSON object keys are strings.
	return c.JSON(fiber.Map{
		"counts": lo.MapKeys(counts, func(_ int, id uint) string { return strconv.FormatUint(uint64(id), 10) }),
	})
}

func (h *UnreadHandler) CountFor(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "conversationId")
	if err != nil {
		return httpx.FromError(c, err)
	}

	n, err := h.unreadService.CountFor(c.UserContext(), userID, convID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation_id": convID,
		"count":           n,
	})
}
