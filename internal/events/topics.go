package events

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noteduco342/chatsync/internal/models"
)

// PresenceTopic carries status changes of every user.
const PresenceTopic = "user-channel"

const (
	EventNewMessage        = "new-message"
	EventMessageRead       = "message-read"
	EventMessageUpdated    = "message-updated"
	EventMessageDeleted    = "message-deleted"
	EventUnreadCountUpdate = "unread-count-update"
	EventStatusUpdate      = "status-update"
	EventSettingsUpdate    = "settings-update"
)

const (
	conversationPrefix = "conversation-"
	userPrefix         = "user-"
)

func ConversationTopic(conversationID uint) string {
	return fmt.Sprintf("%s%d", conversationPrefix, conversationID)
}

func UserTopic(userID uint) string {
	return fmt.Sprintf("%s%d", userPrefix, userID)
}

type TopicKind int

const (
	TopicUnknown TopicKind = iota
	TopicConversation
	TopicUser
	TopicPresence
)

// ParseTopic splits a topic name into its kind and numeric id.
func ParseTopic(topic string) (TopicKind, uint) {
	if topic == PresenceTopic {
		return TopicPresence, 0
	}
	parse := func(prefix string) (uint, bool) {
		rest := strings.TrimPrefix(topic, prefix)
		id, err := strconv.ParseUint(rest, 10, 32)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	}
	if strings.HasPrefix(topic, conversationPrefix) {
		if id, ok := parse(conversationPrefix); ok {
			return TopicConversation, id
		}
	}
	if strings.HasPrefix(topic, userPrefix) {
		if id, ok := parse(userPrefix); ok {
			return TopicUser, id
		}
	}
	return TopicUnknown, 0
}

type MessageReadPayload struct {
	MessageID      uint `json:"message_id"`
	UserID         uint `json:"user_id"`
	ConversationID uint `json:"conversation_id"`
}

type MessageDeletedPayload struct {
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
}

// UnreadCountPayload tells a user that the unread total of a conversation may
// have changed; clients refetch the count.
type UnreadCountPayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id,omitempty"`
}

type StatusUpdatePayload struct {
	UserID uint              `json:"user_id"`
	Status models.UserStatus `json:"status"`
}

// SettingsUpdatePayload is sent on the user's own topic after they change
// their presence settings.
type SettingsUpdatePayload struct {
	IdleTimeoutMs int               `json:"idle_timeout_ms"`
	DefaultStatus models.UserStatus `json:"default_status"`
}
