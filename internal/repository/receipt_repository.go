package repository

import (
	"context"
	"strings"

	"github.com/noteduco342/chatsync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnreadRow is one conversation's unread total for a single user.
type UnreadRow struct {
	ConversationID uint  `gorm:"column:conversation_id"`
	UnreadCount    int64 `gorm:"column:unread_count"`
}

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// AddReader records userID as a reader of messageID. It reports false when the
// receipt already existed, so repeated calls change nothing.
func (r *ReceiptRepository) AddReader(ctx context.Context, messageID, userID uint) (bool, error) {
	read := models.MessageRead{MessageID: messageID, UserID: userID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&read)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkConversationRead adds userID to readBy of every live message in the
// conversation they did not send and returns the ids that changed.
func (r *ReceiptRepository) MarkConversationRead(ctx context.Context, conversationID, userID uint) ([]uint, error) {
	query := strings.TrimSpace(`
INSERT INTO message_reads (message_id, user_id, read_at)
SELECT m.id, ?, NOW()
FROM messages m
WHERE
	m.conversation_id = ?
	AND m.sender_id <> ?
	AND m.deleted_at IS NULL
ON CONFLICT DO NOTHING
RETURNING message_id
`)
	var ids []uint
	if err := r.db.WithContext(ctx).Raw(query, userID, conversationID, userID).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// unreadPredicate selects messages in the joined conversation that the
// participant did not send, that are not deleted and that carry no receipt
// from the participant.
const unreadPredicate = `
	m.sender_id <> cp.user_id
	AND m.deleted_at IS NULL
	AND NOT EXISTS (
		SELECT 1 FROM message_reads mr
		WHERE mr.message_id = m.id AND mr.user_id = cp.user_id
	)`

// UnreadCounts is computed from messages and receipts on every call; one row
// per conversation the user participates in, zero counts included.
func (r *ReceiptRepository) UnreadCounts(ctx context.Context, userID uint) ([]UnreadRow, error) {
	query := strings.TrimSpace(`
SELECT
	cp.conversation_id,
	COUNT(m.id) AS unread_count
FROM conversation_participants cp
LEFT JOIN messages m ON
	m.conversation_id = cp.conversation_id
	AND` + unreadPredicate + `
WHERE cp.user_id = ?
GROUP BY cp.conversation_id
ORDER BY cp.conversation_id
`)
	var rows []UnreadRow
	if err := r.db.WithContext(ctx).Raw(query, userID).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ReceiptRepository) UnreadCountFor(ctx context.Context, userID, conversationID uint) (int64, error) {
	query := strings.TrimSpace(`
SELECT COUNT(m.id)
FROM conversation_participants cp
JOIN messages m ON m.conversation_id = cp.conversation_id
WHERE
	cp.user_id = ?
	AND cp.conversation_id = ?
	AND` + unreadPredicate + `
`)
	var count int64
	if err := r.db.WithContext(ctx).Raw(query, userID, conversationID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
