package repository

import (
	"context"
	"time"

	"github.com/noteduco342/chatsync/internal/models"
)

// UserRepositoryInterface defines the contract for user repository operations
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	ListExcluding(ctx context.Context, userID uint) ([]models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, userID uint, status models.UserStatus, lastSeen *time.Time) error
}

// GroupRepositoryInterface defines the contract for group repository operations
type GroupRepositoryInterface interface {
	Create(ctx context.Context, group *models.Group, memberIDs []uint) error
	FindByID(ctx context.Context, id uint) (*models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	AddMember(ctx context.Context, groupID, userID uint) error
	RemoveMember(ctx context.Context, groupID, userID uint) error
	MemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)
	GetUserGroups(ctx context.Context, userID uint) ([]models.Group, error)
}

// ConversationRepositoryInterface defines the contract for conversation operations.
// The FindOrCreate methods report whether this call inserted the row.
type ConversationRepositoryInterface interface {
	FindOrCreateDirect(ctx context.Context, participantIDs []uint) (*models.Conversation, bool, error)
	FindOrCreateGroup(ctx context.Context, groupID uint, name *string, participantIDs []uint) (*models.Conversation, bool, error)
	FindByID(ctx context.Context, id uint) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	ListSummaries(ctx context.Context, userID uint, limit int) ([]ConversationSummaryRow, error)
	IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error)
	UpdateName(ctx context.Context, conversationID uint, name *string) error
}

// MessageRepositoryInterface defines the contract for message repository operations
type MessageRepositoryInterface interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id uint) (*models.Message, error)
	FindByClientID(ctx context.Context, clientID string, senderID uint) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID uint) ([]models.Message, error)
	UpdateContent(ctx context.Context, messageID uint, content string, editedAt time.Time) error
	Delete(ctx context.Context, messageID uint) error
}

// ReceiptRepositoryInterface defines the contract for read receipts and the
// unread aggregates derived from them.
type ReceiptRepositoryInterface interface {
	AddReader(ctx context.Context, messageID, userID uint) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, userID uint) ([]uint, error)
	UnreadCounts(ctx context.Context, userID uint) ([]UnreadRow, error)
	UnreadCountFor(ctx context.Context, userID, conversationID uint) (int64, error)
}
