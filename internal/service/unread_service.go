package service

import (
	"context"
	"errors"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// UnreadService derives unread totals from messages and receipts on every
// call. Nothing is stored.
type UnreadService struct {
	receiptRepo repository.ReceiptRepositoryInterface
	convRepo    repository.ConversationRepositoryInterface
}

func NewUnreadService(receiptRepo repository.ReceiptRepositoryInterface, convRepo repository.ConversationRepositoryInterface) *UnreadService {
	return &UnreadService{receiptRepo: receiptRepo, convRepo: convRepo}
}

// Counts maps every conversation the user participates in to its unread total.
func (s *UnreadService) Counts(ctx context.Context, userID uint) (map[uint]int, error) {
	rows, err := s.receiptRepo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap("unread counts", err)
	}
	return lo.SliceToMap(rows, func(r repository.UnreadRow) (uint, int) {
		return r.ConversationID, int(r.UnreadCount)
	}), nil
}

func (s *UnreadService) CountFor(ctx context.Context, userID, conversationID uint) (int, error) {
	if _, err := s.convRepo.FindByID(ctx, conversationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.NotFound("unread count", "conversation %d not found", conversationID)
		}
		return 0, apperr.Wrap("unread count", err)
	}

	ok, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return 0, apperr.Wrap("unread count", err)
	}
	if !ok {
		return 0, apperr.PermissionDenied("unread count", "not a participant of conversation %d", conversationID)
	}

	count, err := s.receiptRepo.UnreadCountFor(ctx, userID, conversationID)
	if err != nil {
		return 0, apperr.Wrap("unread count", err)
	}
	return int(count), nil
}
