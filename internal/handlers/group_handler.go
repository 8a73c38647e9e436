package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/noteduco342/chatsync/internal/httpx"
	"github.com/noteduco342/chatsync/internal/middleware"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/service"
	"github.com/samber/lo"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.CreateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, conv, err := h.groupService.CreateGroup(c.UserContext(), userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	resp := group.ToResponse()
	resp.ConversationID = conv.ID
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	groups, err := h.groupService.GetUserGroups(c.UserContext(), userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{
		"groups": lo.Map(groups, func(g models.Group, _ int) models.GroupResponse { return g.ToResponse() }),
	})
}

func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	group, err := h.groupService.GetGroup(c.UserContext(), groupID, userID)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(group.ToResponse())
}

func (h *GroupHandler) UpdateGroup(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var input service.UpdateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, err := h.groupService.UpdateGroup(c.UserContext(), groupID, userID, input)
	if err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(group.ToResponse())
}

type addMemberRequest struct {
	UserID uint `json:"user_id"`
}

func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return httpx.BadRequest(c, "invalid_request_body", "user_id is required")
	}

	if err := h.groupService.AddMember(c.UserContext(), groupID, userID, req.UserID); err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Member added"})
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return httpx.FromError(c, err)
	}
	memberID, err := httpx.ParamUint(c, "userId")
	if err != nil {
		return httpx.FromError(c, err)
	}

	if err := h.groupService.RemoveMember(c.UserContext(), groupID, userID, memberID); err != nil {
		return httpx.FromError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Member removed"})
}
