package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/noteduco342/chatsync/internal/apperr"
	"github.com/noteduco342/chatsync/internal/cache"
	"github.com/noteduco342/chatsync/internal/events"
	"github.com/noteduco342/chatsync/internal/models"
	"github.com/noteduco342/chatsync/internal/repository"
	"github.com/noteduco342/chatsync/internal/validation"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const DefaultMaxMessageLength = 4000

// DeletePolicy decides whether actorID may delete message.
type DeletePolicy func(message *models.Message, actorID uint) bool

// SenderOnly lets only the author delete a message.
func SenderOnly(message *models.Message, actorID uint) bool {
	return message.SenderID == actorID
}

type MessageService struct {
	messageRepo  repository.MessageRepositoryInterface
	convRepo     repository.ConversationRepositoryInterface
	cache        *cache.MessageCache
	publisher    events.Publisher
	maxLength    int
	deletePolicy DeletePolicy

	// Held from commit to enqueue so a conversation's events leave this
	// process in commit order.
	convLocks keyedLocks
}

func NewMessageService(
	messageRepo repository.MessageRepositoryInterface,
	convRepo repository.ConversationRepositoryInterface,
	messageCache *cache.MessageCache,
	publisher events.Publisher,
	maxLength int,
) *MessageService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &MessageService{
		messageRepo:  messageRepo,
		convRepo:     convRepo,
		cache:        messageCache,
		publisher:    publisher,
		maxLength:    maxLength,
		deletePolicy: SenderOnly,
	}
}

// SetDeletePolicy replaces the default sender-only rule.
func (s *MessageService) SetDeletePolicy(policy DeletePolicy) {
	if policy != nil {
		s.deletePolicy = policy
	}
}

type FileInput struct {
	URL      string          `json:"url" validate:"required,media_url"`
	Name     string          `json:"name"`
	FileType models.FileType `json:"file_type" validate:"required,file_type"`
}

type SendInput struct {
	ConversationID uint        `json:"-"`
	SenderID       uint        `json:"-"`
	Content        string      `json:"content"`
	Files          []FileInput `json:"files" validate:"dive"`
	ClientID       string      `json:"client_id" validate:"omitempty,uuid"`
}

// Send persists a message and returns once it is committed. Subscribers are
// notified asynchronously afterwards. Repeating a send with the same ClientID
// returns the stored message without notifying anyone again.
func (s *MessageService) Send(ctx context.Context, input SendInput) (*models.Message, error) {
	content := validation.TrimAndLimit(input.Content, s.maxLength)
	if content == "" && len(input.Files) == 0 {
		return nil, apperr.InvalidArgument("send", "message needs content or files")
	}
	if err := validation.Struct(input); err != nil {
		return nil, apperr.InvalidArgument("send", "%s", err.Error())
	}

	conv, err := s.participantConversation(ctx, "send", input.ConversationID, input.SenderID)
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(input.ClientID)
	if clientID != "" {
		if existing, err := s.messageRepo.FindByClientID(ctx, clientID, input.SenderID); err == nil {
			return existing, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Wrap("send", err)
		}
	} else {
		clientID = uuid.NewString()
	}

	message := &models.Message{
		ClientID:       clientID,
		ConversationID: conv.ID,
		SenderID:       input.SenderID,
		Content:        content,
		Files: lo.Map(input.Files, func(f FileInput, _ int) models.File {
			return models.File{URL: f.URL, Name: strings.TrimSpace(f.Name), FileType: f.FileType}
		}),
	}

	unlock := s.convLocks.lock(conv.ID)
	defer unlock()

	if err := s.messageRepo.Create(ctx, message); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent retry with the same client id won.
			if existing, findErr := s.messageRepo.FindByClientID(ctx, clientID, input.SenderID); findErr == nil {
				return existing, nil
			}
		}
		return nil, apperr.Wrap("send", err)
	}

	stored, err := s.messageRepo.FindByID(ctx, message.ID)
	if err != nil {
		return nil, apperr.Wrap("send", err)
	}

	s.invalidate(conv.ID)
	s.publish(ctx, events.ConversationTopic(conv.ID), events.EventNewMessage, stored.ToResponse())
	s.notifyUnread(ctx, conv.ParticipantIDs(), input.SenderID, events.UnreadCountPayload{
		ConversationID: conv.ID,
		MessageID:      stored.ID,
	})

	return stored, nil
}

// Update replaces the content of a message. Only its sender may edit it.
func (s *MessageService) Update(ctx context.Context, messageID, senderID uint, content string) (*models.Message, error) {
	message, err := s.findMessage(ctx, "update", messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != senderID {
		return nil, apperr.PermissionDenied("update", "only the sender can edit message %d", messageID)
	}

	content = validation.TrimAndLimit(content, s.maxLength)
	if content == "" && len(message.Files) == 0 {
		return nil, apperr.InvalidArgument("update", "message needs content or files")
	}

	unlock := s.convLocks.lock(message.ConversationID)
	defer unlock()

	if err := s.messageRepo.UpdateContent(ctx, messageID, content, time.Now().UTC()); err != nil {
		return nil, apperr.Wrap("update", err)
	}

	updated, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap("update", err)
	}

	s.invalidate(updated.ConversationID)
	s.publish(ctx, events.ConversationTopic(updated.ConversationID), events.EventMessageUpdated, updated.ToResponse())

	return updated, nil
}

// Delete soft-deletes a message. Its unread contribution disappears with it, so
// the other participants are told to refresh their counts.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID uint) error {
	message, err := s.findMessage(ctx, "delete", messageID)
	if err != nil {
		return err
	}
	if !s.deletePolicy(message, actorID) {
		return apperr.PermissionDenied("delete", "not allowed to delete message %d", messageID)
	}

	unlock := s.convLocks.lock(message.ConversationID)
	defer unlock()

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return apperr.Wrap("delete", err)
	}

	s.invalidate(message.ConversationID)
	s.publish(ctx, events.ConversationTopic(message.ConversationID), events.EventMessageDeleted, events.MessageDeletedPayload{
		MessageID:      messageID,
		ConversationID: message.ConversationID,
	})

	participants, err := s.convRepo.ParticipantIDs(ctx, message.ConversationID)
	if err != nil {
		log.Warn().Err(err).Uint("conversation_id", message.ConversationID).Msg("Failed to load participants for unread update")
		return nil
	}
	s.notifyUnread(ctx, participants, message.SenderID, events.UnreadCountPayload{
		ConversationID: message.ConversationID,
		MessageID:      messageID,
	})
	return nil
}

// ListByConversation returns every live message of a conversation in
// ascending timestamp order.
func (s *MessageService) ListByConversation(ctx context.Context, conversationID, viewerID uint) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, "list messages", conversationID, viewerID); err != nil {
		return nil, err
	}

	gen, err := s.cache.Generation(conversationID)
	cacheable := err == nil
	if err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("Failed to read message cache generation")
	} else if cached, ok := s.cache.GetConversation(conversationID, gen); ok {
		return cached, nil
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Wrap("list messages", err)
	}
	if cacheable {
		if err := s.cache.SetConversation(conversationID, gen, messages); err != nil {
			log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("Failed to cache conversation messages")
		}
	}
	return messages, nil
}

func (s *MessageService) participantConversation(ctx context.Context, op string, conversationID, userID uint) (*models.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "conversation %d not found", conversationID)
		}
		return nil, apperr.Wrap(op, err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.PermissionDenied(op, "not a participant of conversation %d", conversationID)
	}
	return conv, nil
}

func (s *MessageService) findMessage(ctx context.Context, op string, messageID uint) (*models.Message, error) {
	message, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(op, "message %d not found", messageID)
		}
		return nil, apperr.Wrap(op, err)
	}
	return message, nil
}

func (s *MessageService) invalidate(conversationID uint) {
	if err := s.cache.InvalidateConversation(conversationID); err != nil {
		log.Warn().Err(err).Uint("conversation_id", conversationID).Msg("Failed to invalidate conversation cache")
	}
}

func (s *MessageService) publish(ctx context.Context, topic, name string, payload interface{}) {
	publishLogged(ctx, s.publisher, topic, name, payload)
}

func (s *MessageService) notifyUnread(ctx context.Context, participants []uint, except uint, payload events.UnreadCountPayload) {
	for _, id := range lo.Without(participants, except) {
		s.publish(ctx, events.UserTopic(id), events.EventUnreadCountUpdate, payload)
	}
}

// publishLogged hands an event to the publisher. The write it describes is
// already committed, so a failure is logged and never returned.
func publishLogged(ctx context.Context, publisher events.Publisher, topic, name string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, topic, name, payload); err != nil {
		log.Error().Err(err).Str("topic", topic).Str("event", name).Msg("Failed to publish event")
	}
}
