package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/validation"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxConversationNameLength = 100

type ConversationService struct {
	convRepo  repository.ConversationRepositoryInterface
	groupRepo repository.GroupRepositoryInterface
}

func NewConversationService(convRepo repository.ConversationRepositoryInterface, groupRepo repository.GroupRepositoryInterface) *ConversationService {
	return &ConversationService{convRepo: convRepo, groupRepo: groupRepo}
}

type ResolveInput struct {
	ActorID        uint    `json:"-"`
	ParticipantIDs []uint  `json:"participant_ids"`
	IsGroup        bool    `json:"is_group"`
	GroupID        *uint   `json:"group_id"`
	Name           *string `json:"name"`
}

// normalizeParticipants returns the sorted distinct non-zero ids.
func normalizeParticipants(ids ...[]uint) []uint {
	out := lo.Uniq(lo.Filter(lo.Flatten(ids), func(id uint, _ int) bool { return id != 0 }))
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the unique conversation for a participant set or group,
// creating it on first use. created is true only for the call that inserted it.
func (s *ConversationService) Resolve(ctx context.Context, input ResolveInput) (*models.Conversation, bool, error) {
	if input.IsGroup {
		return s.resolveGroup(ctx, input)
	}

	ids := normalizeParticipants(input.ParticipantIDs, []uint{input.ActorID})
	if len(ids) == 0 {
		return nil, false, apperr.InvalidArgument("resolve", "at least one participant is required")
	}

	var (
		conv    *models.Conversation
		created bool
	)
	err := apperr.Retry(ctx, apperr.DefaultAttempts, func() error {
		var err error
		conv, created, err = s.convRepo.FindOrCreateDirect(ctx, ids)
		return resolveError(err)
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func (s *ConversationService) resolveGroup(ctx context.Context, input ResolveInput) (*models.Conversation, bool, error) {
	if input.GroupID == nil || *input.GroupID == 0 {
		return nil, false, apperr.InvalidArgument("resolve", "group_id is required for group conversations")
	}
	groupID := *input.GroupID

	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperr.NotFound("resolve", "group %d not found", groupID)
		}
		return nil, false, apperr.Wrap("resolve", err)
	}

	if input.ActorID != 0 {
		isMember, err := s.groupRepo.IsMember(ctx, groupID, input.ActorID)
		if err != nil {
			return nil, false, apperr.Wrap("resolve", err)
		}
		if !isMember {
			return nil, false, apperr.PermissionDenied("resolve", "not a member of group %d", groupID)
		}
	}

	memberIDs, err := s.groupRepo.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, false, apperr.Wrap("resolve", err)
	}
	ids := normalizeParticipants(memberIDs, input.ParticipantIDs, []uint{input.ActorID})

	name := input.Name
	if name == nil || strings.TrimSpace(*name) == "" {
		name = &group.Name
	}

	var (
		conv    *models.Conversation
		created bool
	)
	err = apperr.Retry(ctx, apperr.DefaultAttempts, func() error {
		var err error
		conv, created, err = s.convRepo.FindOrCreateGroup(ctx, groupID, name, ids)
		return resolveError(err)
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func resolveError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrConversationRace) {
		return apperr.ConflictRetryable("resolve", "conversation insert raced")
	}
	return apperr.Wrap("resolve", err)
}

// Get returns the conversation if viewerID participates in it.
func (s *ConversationService) Get(ctx context.Context, conversationID, viewerID uint) (*models.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("conversation", "conversation %d not found", conversationID)
		}
		return nil, apperr.Wrap("conversation", err)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperr.PermissionDenied("conversation", "not a participant of conversation %d", conversationID)
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	convs, err := s.convRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap("list conversations", err)
	}
	return convs, nil
}

func (s *ConversationService) ListSummaries(ctx context.Context, userID uint, limit int) ([]repository.ConversationSummaryRow, error) {
	rows, err := s.convRepo.ListSummaries(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Wrap("list conversation summaries", err)
	}
	return rows, nil
}

// Rename sets or clears (empty name) the display name of a conversation.
func (s *ConversationService) Rename(ctx context.Context, conversationID, actorID uint, name string) (*models.Conversation, error) {
	conv, err := s.Get(ctx, conversationID, actorID)
	if err != nil {
		return nil, err
	}

	var stored *string
	if trimmed := validation.TrimAndLimit(name, maxConversationNameLength); trimmed != "" {
		stored = &trimmed
	}
	if err := s.convRepo.UpdateName(ctx, conversationID, stored); err != nil {
		return nil, apperr.Wrap("rename conversation", err)
	}
	conv.Name = stored
	return conv, nil
}
