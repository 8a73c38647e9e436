package repository

import (
	"context"
	"time"

	"github.com/noteduco342/chatsync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func preloadMessage(db *gorm.DB) *gorm.DB {
	return db.Preload("Sender").
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Preload("ReadBy", func(db *gorm.DB) *gorm.DB { return db.Order("read_at, user_id") })
}

// Create stores the message and its files atomically and bumps the
// conversation's activity timestamp.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		files := message.Files
		if err := tx.Omit(clause.Associations).Create(message).Error; err != nil {
			return err
		}
		for i := range files {
			files[i].MessageID = message.ID
			files[i].Position = i
		}
		if len(files) > 0 {
			if err := tx.Create(&files).Error; err != nil {
				return err
			}
		}
		message.Files = files
		return tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	if err := preloadMessage(r.db.WithContext(ctx)).First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindByClientID(ctx context.Context, clientID string, senderID uint) (*models.Message, error) {
	var message models.Message
	err := preloadMessage(r.db.WithContext(ctx)).
		Where("client_id = ? AND sender_id = ?", clientID, senderID).
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByConversation returns every live message in ascending timestamp order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	err := preloadMessage(r.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) UpdateContent(ctx context.Context, messageID uint, content string, editedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": editedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, messageID uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Message{}, messageID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
