package service

import (
	"context"
	"errors"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/validation"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxGroupNameLength = 100

type GroupService struct {
	groupRepo     repository.GroupRepositoryInterface
	userRepo      repository.UserRepositoryInterface
	conversations *ConversationService
}

func NewGroupService(
	groupRepo repository.GroupRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	conversations *ConversationService,
) *GroupService {
	return &GroupService{
		groupRepo:     groupRepo,
		userRepo:      userRepo,
		conversations: conversations,
	}
}

type CreateGroupInput struct {
	Name      string `json:"name" validate:"required"`
	IsPrivate bool   `json:"is_private"`
	Image     string `json:"image" validate:"omitempty,media_url"`
	MemberIDs []uint `json:"member_ids"`
}

type UpdateGroupInput struct {
	Name      *string `json:"name"`
	Image     *string `json:"image" validate:"omitempty,media_url"`
	IsPrivate *bool   `json:"is_private"`
}

// CreateGroup stores the group with the creator as a member and resolves its
// conversation right away.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID uint, input CreateGroupInput) (*models.Group, *models.Conversation, error) {
	name := validation.TrimAndLimit(input.Name, maxGroupNameLength)
	if name == "" {
		return nil, nil, apperr.InvalidArgument("create group", "name is required")
	}
	if err := validation.Struct(input); err != nil {
		return nil, nil, apperr.InvalidArgument("create group", "%s", err.Error())
	}

	memberIDs := normalizeParticipants([]uint{creatorID}, input.MemberIDs)
	if err := s.ensureUsersExist(ctx, "create group", memberIDs); err != nil {
		return nil, nil, err
	}

	group := &models.Group{
		Name:      name,
		IsPrivate: input.IsPrivate,
		Image:     input.Image,
		CreatorID: creatorID,
	}
	if err := s.groupRepo.Create(ctx, group, memberIDs); err != nil {
		return nil, nil, apperr.Wrap("create group", err)
	}

	groupID := group.ID
	conv, _, err := s.conversations.Resolve(ctx, ResolveInput{
		ActorID: creatorID,
		IsGroup: true,
		GroupID: &groupID,
	})
	if err != nil {
		return nil, nil, err
	}

	stored, err := s.GetGroup(ctx, groupID, creatorID)
	if err != nil {
		return nil, nil, err
	}
	return stored, conv, nil
}

// UpdateGroup changes the group's details. Any member may do it.
func (s *GroupService) UpdateGroup(ctx context.Context, groupID, actorID uint, input UpdateGroupInput) (*models.Group, error) {
	if err := validation.Struct(input); err != nil {
		return nil, apperr.InvalidArgument("update group", "%s", err.Error())
	}
	group, err := s.GetGroup(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := validation.TrimAndLimit(*input.Name, maxGroupNameLength)
		if name == "" {
			return nil, apperr.InvalidArgument("update group", "name cannot be empty")
		}
		group.Name = name
	}
	if input.Image != nil {
		group.Image = *input.Image
	}
	if input.IsPrivate != nil {
		group.IsPrivate = *input.IsPrivate
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, apperr.Wrap("update group", err)
	}
	return group, nil
}

// GetGroup returns the group when viewerID is a member.
func (s *GroupService) GetGroup(ctx context.Context, groupID, viewerID uint) (*models.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("group", "group %d not found", groupID)
		}
		return nil, apperr.Wrap("group", err)
	}
	isMember := lo.ContainsBy(group.Members, func(m models.GroupMember) bool { return m.UserID == viewerID })
	if !isMember {
		return nil, apperr.PermissionDenied("group", "not a member of group %d", groupID)
	}
	return group, nil
}

func (s *GroupService) GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	groups, err := s.groupRepo.GetUserGroups(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap("list groups", err)
	}
	return groups, nil
}

// AddMember adds userID to the group. The conversation's participant set is
// fixed at creation and does not change.
func (s *GroupService) AddMember(ctx context.Context, groupID, actorID, userID uint) error {
	if _, err := s.GetGroup(ctx, groupID, actorID); err != nil {
		return err
	}
	if err := s.ensureUsersExist(ctx, "add member", []uint{userID}); err != nil {
		return err
	}
	if err := s.groupRepo.AddMember(ctx, groupID, userID); err != nil {
		return apperr.Wrap("add member", err)
	}
	return nil
}

// RemoveMember lets a member leave, or the creator remove someone else.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, userID uint) error {
	group, err := s.GetGroup(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actorID != userID && actorID != group.CreatorID {
		return apperr.PermissionDenied("remove member", "only the creator can remove other members")
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		return apperr.Wrap("remove member", err)
	}
	return nil
}

func (s *GroupService) ensureUsersExist(ctx context.Context, op string, ids []uint) error {
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return apperr.Wrap(op, err)
	}
	if len(users) != len(ids) {
		found := lo.Map(users, func(u models.User, _ int) uint { return u.ID })
		missing, _ := lo.Difference(ids, found)
		return apperr.NotFound(op, "users %v not found", missing)
	}
	return nil
}
