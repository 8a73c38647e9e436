package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/service"
)

type MessageHandler struct {
	messageService *service.MessageService
	readService    *service.ReadService
}

func NewMessageHandler(messageService *service.MessageService, readService *service.ReadService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		readService:    readService,
	}
}

type editRequest struct {
	Content string `json:"content"`
}

func (h *MessageHandler) Update(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.Update(c.UserContext(), messageID, userID, req.Content)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(message.ToResponse())
}

func (h *MessageHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.messageService.Delete(c.UserContext(), messageID, userID); err != nil {
		return httpx.FromError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	message, changed, err := h.readService.MarkRead(c.UserContext(), messageID, userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"message_id": messageID,
		"changed":    changed,
		"message":    message.ToResponse(),
	})
}
