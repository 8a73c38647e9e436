package service

import (
	"context"
	"errors"

	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/cache"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ReadService records read receipts. A receipt changes the unread count of the
// reader, and every participant is told so that all open views stay aligned.
type ReadService struct {
	messageRepo repository.MessageRepositoryInterface
	convRepo    repository.ConversationRepositoryInterface
	receiptRepo repository.ReceiptRepositoryInterface
	cache       *cache.MessageCache
	publisher   events.Publisher
}

func NewReadService(
	messageRepo repository.MessageRepositoryInterface,
	convRepo repository.ConversationRepositoryInterface,
	receiptRepo repository.ReceiptRepositoryInterface,
	messageCache *cache.MessageCache,
	publisher events.Publisher,
) *ReadService {
	return &ReadService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		receiptRepo: receiptRepo,
		cache:       messageCache,
		publisher:   publisher,
	}
}

// MarkRead adds userID to the readers of a message and returns the message
// with its readers. changed is false when nothing was recorded: reading your
// own message or reading twice leaves the receipt set alone.
func (s *ReadService) MarkRead(ctx context.Context, messageID, userID uint) (message *models.Message, changed bool, err error) {
	message, err = s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperr.NotFound("mark read", "message %d not found", messageID)
		}
		return nil, false, apperr.Wrap("mark read", err)
	}

	participants, err := s.convRepo.ParticipantIDs(ctx, message.ConversationID)
	if err != nil {
		return nil, false, apperr.Wrap("mark read", err)
	}
	if !lo.Contains(participants, userID) {
		return nil, false, apperr.PermissionDenied("mark read", "not a participant of conversation %d", message.ConversationID)
	}

	if message.SenderID == userID || message.ReadByUser(userID) {
		return message, false, nil
	}

	added, err := s.receiptRepo.AddReader(ctx, messageID, userID)
	if err != nil {
		return nil, false, apperr.Wrap("mark read", err)
	}
	if !added {
		return message, false, nil
	}

	s.invalidate(message.ConversationID)
	publishLogged(ctx, s.publisher, events.ConversationTopic(message.ConversationID), events.EventMessageRead, events.MessageReadPayload{
		MessageID:      messageID,
		UserID:         userID,
		ConversationID: message.ConversationID,
	})
	s.notifyParticipants(ctx, participants, message.ConversationID, messageID)

	updated, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		// The receipt is committed; report it on the copy we already hold.
		log.Warn().Err(err).Uint("message_id", messageID).Msg("Failed to reload message after read")
		return message, true, nil
	}
	return updated, true, nil
}

// MarkConversationRead reads every message of the conversation at once and
// returns the ids that were not read before.
func (s *ReadService) MarkConversationRead(ctx context.Context, conversationID, userID uint) ([]uint, error) {
	participants, err := s.convRepo.ParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, apperr.Wrap("mark conversation read", err)
	}
	if len(participants) == 0 {
		return nil, apperr.NotFound("mark conversation read", "conversation %d not found", conversationID)
	}
	if !lo.Contains(participants, userID) {
		return nil, apperr.PermissionDenied("mark conversation read", "not a participant of conversation %d", conversationID)
	}

	ids, err := s.receiptRepo.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return nil, apperr.Wrap("mark conversation read", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	s.invalidate(conversationID)
	topic := events.ConversationTopic(conversationID)
	for _, id := range ids {
		publishLogged(ctx, s.publisher, topic, events.EventMessageRead, events.MessageReadPayload{
			MessageID:      id,
			UserID:         userID,
			ConversationID: conversationID,
		})
	}
	s.notifyParticipants(ctx, participants, conversationID, 0)
	return ids, nil
}

func (s *ReadService) invalidate(conversationID uint) {
	if err := s.cache.InvalidateConversation(conversationID); err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("Failed to invalidate conversation cache")
	}
}

func (s *ReadService) notifyParticipants(ctx context.Context, participants []uint, conversationID, messageID uint) {
	payload := events.UnreadCountPayload{ConversationID: conversationID, MessageID: messageID}
	for _, id := range participants {
		publishLogged(ctx, s.publisher, events.UserTopic(id), events.EventUnreadCountUpdate, payload)
	}
}
