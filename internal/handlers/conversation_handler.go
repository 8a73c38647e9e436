package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/samber/lo"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	messageService      *service.MessageService
	readService         *service.ReadService
}

func NewConversationHandler(
	conversationService *service.ConversationService,
	messageService *service.MessageService,
	readService *service.ReadService,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		messageService:      messageService,
		readService:         readService,
	}
}

type resolveRequest struct {
	ParticipantIDs []uint  `json:"participant_ids"`
	IsGroup        bool    `json:"is_group"`
	GroupID        *uint   `json:"group_id"`
	Name           *string `json:"name"`
}

// Resolve finds or creates the conversation for a participant set or group.
func (h *ConversationHandler) Resolve(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var req resolveRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	conv, created, err := h.conversationService.Resolve(c.UserContext(), service.ResolveInput{
		ActorID:        userID,
		ParticipantIDs: req.ParticipantIDs,
		IsGroup:        req.IsGroup,
		GroupID:        req.GroupID,
		Name:           req.Name,
	})
	if err != nil {
		return httpx.FromError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"conversation": conv.ToResponse(),
		"created":      created,
	})
}

type summaryResponse struct {
	ConversationID   uint       `json:"conversation_id"`
	Name             *string    `json:"name"`
	IsGroup          bool       `json:"is_group"`
	GroupID          *uint      `json:"group_id"`
	ParticipantCount int64      `json:"participant_count"`
	UnreadCount      int64      `json:"unread_count"`
	LastMessage      *lastEntry `json:"last_message"`
	LastActivity     time.Time  `json:"last_activity"`
}

type lastEntry struct {
	ID        uint       `json:"id"`
	SenderID  uint       `json:"sender_id"`
	Content   string     `json:"content"`
	FileCount int64      `json:"file_count"`
	CreatedAt *time.Time `json:"created_at"`
}

func toSummaryResponse(row repository.ConversationSummaryRow, _ int) summaryResponse {
	out := summaryResponse{
		ConversationID:   row.ConversationID,
		IsGroup:          row.IsGroup,
		ParticipantCount: row.ParticipantCount,
		UnreadCount:      row.UnreadCount,
		LastActivity:     row.LastActivity,
	}
	if row.ConversationName.Valid {
		out.Name = &row.ConversationName.String
	}
	if row.GroupID.Valid {
		gid := uint(row.GroupID.Int64)
		out.GroupID = &gid
	}
	if row.MessageID.Valid {
		out.LastMessage = &lastEntry{
			ID:        uint(row.MessageID.Int64),
			SenderID:  uint(row.MessageSenderID.Int64),
			Content:   row.MessageContent.String,
			FileCount: row.FileCount,
			CreatedAt: row.MessageCreatedAt,
		}
	}
	return out
}

// List returns the caller's conversations with last message and unread count,
// most recently active first.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	rows, err := h.conversationService.ListSummaries(c.UserContext(), userID, c.QueryInt("limit", 50))
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversations": lo.Map(rows, toSummaryResponse),
	})
}

func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	conv, err := h.conversationService.Get(c.UserContext(), convID, userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation": conv.ToResponse(),
	})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *ConversationHandler) Rename(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	conv, err := h.conversationService.Rename(c.UserContext(), convID, userID, req.Name)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation": conv.ToResponse(),
	})
}

// Messages lists the conversation's messages oldest first.
func (h *ConversationHandler) Messages(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	messages, err := h.messageService.ListByConversation(c.UserContext(), convID, userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": lo.Map(messages, func(m models.Message, _ int) models.MessageResponse { return m.ToResponse() }),
		"count":    len(messages),
	})
}

type sendRequest struct {
	Content  string              `json:"content"`
	Files    []service.FileInput `json:"files"`
	ClientID string              `json:"client_id"`
}

func (h *ConversationHandler) Send(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.Send(c.UserContext(), service.SendInput{
		ConversationID: convID,
		SenderID:       userID,
		Content:        req.Content,
		Files:          req.Files,
		ClientID:       req.ClientID,
	})
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

// MarkRead marks every message in the conversation as read by the caller.
func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	convID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	ids, err := h.readService.MarkConversationRead(c.UserContext(), convID, userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"message_ids": ids,
		"count":       len(ids),
	})
}
