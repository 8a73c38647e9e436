package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noteduco342/chatsync/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// TTL constants for different cache types
const (
	ConversationTTL = 5 * time.Minute
)

// store is the slice of RedisCache the message cache needs.
type store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, ttl time.Duration) error
	Incr(key string) (int64, error)
}

// MessageCache holds the full message list of a conversation. Entries are
// keyed by a per-conversation generation: every write to the conversation
// (send, edit, delete, read receipt) bumps it, so a list loaded before the
// write can only land under a generation nobody reads any more.
type MessageCache struct {
	kv store
}

// NewMessageCache creates a new message cache
func NewMessageCache(redis *RedisCache) *MessageCache {
	if redis == nil {
		return &MessageCache{}
	}
	return &MessageCache{kv: redis}
}

func generationKey(conversationID uint) string {
	return fmt.Sprintf("conv:%d:gen", conversationID)
}

func conversationKey(conversationID uint, gen int64) string {
	return fmt.Sprintf("conv:%d:messages:%d", conversationID, gen)
}

// Generation returns the current generation of a conversation. Read it before
// loading from the database and hand it back to SetConversation.
func (mc *MessageCache) Generation(conversationID uint) (int64, error) {
	if mc == nil || mc.kv == nil {
		return 0, nil
	}
	data, err := mc.kv.Get(generationKey(conversationID))
	if err != nil || data == nil {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}

// GetConversation retrieves the messages cached for a generation
func (mc *MessageCache) GetConversation(conversationID uint, gen int64) ([]models.Message, bool) {
	if mc == nil || mc.kv == nil {
		return nil, false
	}
	data, err := mc.kv.Get(conversationKey(conversationID, gen))
	if err != nil || data == nil {
		return nil, false
	}

	var messages []models.Message
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}

	return messages, true
}

// SetConversation caches messages loaded while gen was current
func (mc *MessageCache) SetConversation(conversationID uint, gen int64, messages []models.Message) error {
	if mc == nil || mc.kv == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}

	return mc.kv.Set(conversationKey(conversationID, gen), data, ConversationTTL)
}

// InvalidateConversation moves the conversation to a new generation; older
// entries expire on their own.
func (mc *MessageCache) InvalidateConversation(conversationID uint) error {
	if mc == nil || mc.kv == nil {
		return nil
	}
	_, err := mc.kv.Incr(generationKey(conversationID))
	return err
}
