package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ConversationSummaryRow is a denormalized row for the conversation list: one row
// per conversation the user participates in, with its latest live message and
// the user's unread count.
type ConversationSummaryRow struct {
	ConversationID   uint           `gorm:"column:conversation_id"`
	ConversationName sql.NullString `gorm:"column:conversation_name"`
	IsGroup          bool           `gorm:"column:is_group"`
	GroupID          sql.NullInt64  `gorm:"column:group_id"`
	ParticipantCount int64          `gorm:"column:participant_count"`
	UnreadCount      int64          `gorm:"column:unread_count"`

	MessageID        sql.NullInt64  `gorm:"column:message_id"`
	MessageSenderID  sql.NullInt64  `gorm:"column:message_sender_id"`
	MessageContent   sql.NullString `gorm:"column:message_content"`
	MessageCreatedAt *time.Time     `gorm:"column:message_created_at"`
	FileCount        int64          `gorm:"column:file_count"`

	LastActivity time.Time `gorm:"column:last_activity"`
}

// ListSummaries runs as a single query: a window function picks the latest
// message per conversation and correlated counts fill in unread totals.
func (r *ConversationRepository) ListSummaries(ctx context.Context, userID uint, limit int) ([]ConversationSummaryRow, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := strings.TrimSpace(`
WITH mine AS (
	SELECT cp.conversation_id
	FROM conversation_participants cp
	WHERE cp.user_id = ?
),
latest AS (
	SELECT
		m.conversation_id,
		m.id AS message_id,
		m.sender_id AS message_sender_id,
		m.content AS message_content,
		m.created_at AS message_created_at,
		ROW_NUMBER() OVER (
			PARTITION BY m.conversation_id
			ORDER BY m.created_at DESC, m.id DESC
		) AS rn
	FROM messages m
	JOIN mine ON mine.conversation_id = m.conversation_id
	WHERE m.deleted_at IS NULL
)
SELECT
	c.id AS conversation_id,
	c.name AS conversation_name,
	c.is_group,
	c.group_id,
	(SELECT COUNT(*) FROM conversation_participants p WHERE p.conversation_id = c.id) AS participant_count,
	(
		SELECT COUNT(*) FROM messages u
		WHERE u.conversation_id = c.id
			AND u.sender_id <> ?
			AND u.deleted_at IS NULL
			AND NOT EXISTS (
				SELECT 1 FROM message_reads mr WHERE mr.message_id = u.id AND mr.user_id = ?
			)
	) AS unread_count,
	l.message_id,
	l.message_sender_id,
	l.message_content,
	l.message_created_at,
	(SELECT COUNT(*) FROM files f WHERE f.message_id = l.message_id) AS file_count,
	COALESCE(l.message_created_at, c.created_at) AS last_activity
FROM conversations c
JOIN mine ON mine.conversation_id = c.id
LEFT JOIN latest l ON l.conversation_id = c.id AND l.rn = 1
ORDER BY last_activity DESC, c.id DESC
LIMIT ?
`)

	var rows []ConversationSummaryRow
	if err := r.db.WithContext(ctx).Raw(query, userID, userID, userID, limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
