package repository

import (
	"context"
	"errors"

	"github.com/noteduco342/chatsync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConversationRace is returned when an insert lost a uniqueness race and the
// winning row could not be read back yet. Callers retry.
var ErrConversationRace = errors.New("conversation creation raced")

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func preloadParticipants(db *gorm.DB) *gorm.DB {
	return db.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("user_id")
	}).Preload("Participants.User")
}

// FindOrCreateDirect expects participantIDs already deduplicated and sorted.
func (r *ConversationRepository) FindOrCreateDirect(ctx context.Context, participantIDs []uint) (*models.Conversation, bool, error) {
	key := models.ParticipantKey(participantIDs)
	conv := &models.Conversation{ParticipantKey: &key}
	lookup := func(db *gorm.DB) *gorm.DB { return db.Where("participant_key = ?", key) }
	return r.findOrCreate(ctx, conv, lookup, participantIDs)
}

func (r *ConversationRepository) FindOrCreateGroup(ctx context.Context, groupID uint, name *string, participantIDs []uint) (*models.Conversation, bool, error) {
	gid := groupID
	conv := &models.Conversation{IsGroup: true, GroupID: &gid, Name: name}
	lookup := func(db *gorm.DB) *gorm.DB { return db.Where("group_id = ?", groupID) }
	return r.findOrCreate(ctx, conv, lookup, participantIDs)
}

// findOrCreate inserts conv with ON CONFLICT DO NOTHING so that of two concurrent
// callers exactly one inserts; the other blocks on the unique index until the
// winner commits, inserts nothing, and then reads the winner's row.
func (r *ConversationRepository) findOrCreate(ctx context.Context, conv *models.Conversation, lookup func(*gorm.DB) *gorm.DB, participantIDs []uint) (*models.Conversation, bool, error) {
	if existing, err := r.findBy(ctx, lookup); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		rows := make([]models.ConversationParticipant, 0, len(participantIDs))
		for _, id := range participantIDs {
			rows = append(rows, models.ConversationParticipant{ConversationID: conv.ID, UserID: id})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&rows).Error
	})
	if err != nil {
		return nil, false, err
	}

	stored, err := r.findBy(ctx, lookup)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrConversationRace
	}
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *ConversationRepository) findBy(ctx context.Context, lookup func(*gorm.DB) *gorm.DB) (*models.Conversation, error) {
	var conv models.Conversation
	if err := preloadParticipants(lookup(r.db.WithContext(ctx))).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := preloadParticipants(r.db.WithContext(ctx)).First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := preloadParticipants(r.db.WithContext(ctx)).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at DESC, conversations.id DESC").
		Find(&convs).Error
	return convs, err
}

func (r *ConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ConversationRepository) ParticipantIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *ConversationRepository) UpdateName(ctx context.Context, conversationID uint, name *string) error {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
