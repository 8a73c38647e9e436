package cache

import (
	"strconv"

	"github.com/noteduco342/chatsync/internal/models"
)

const presenceKey = "presence:status"

// UserCache mirrors every user's presence status in one Redis hash so the
// roster can be served without hitting the database.
type UserCache struct {
	redis *RedisCache
}

// NewUserCache creates a new user cache
func NewUserCache(redis *RedisCache) *UserCache {
	return &UserCache{redis: redis}
}

// SetStatus records the user's current status. OFFLINE users are removed.
func (uc *UserCache) SetStatus(userID uint, status models.UserStatus) error {
	if uc == nil || uc.redis == nil {
		return nil
	}
	field := strconv.FormatUint(uint64(userID), 10)
	if status == models.StatusOffline {
		return uc.redis.HashDelete(presenceKey, field)
	}
	return uc.redis.HashSet(presenceKey, field, string(status))
}

// GetStatus reports the cached status; ok is false on a miss.
func (uc *UserCache) GetStatus(userID uint) (models.UserStatus, bool) {
	if uc == nil || uc.redis == nil {
		return "", false
	}
	val, ok, err := uc.redis.HashGet(presenceKey, strconv.FormatUint(uint64(userID), 10))
	if err != nil || !ok {
		return "", false
	}
	return models.UserStatus(val), true
}

// GetOnlineUsers returns the status of every user that is not OFFLINE.
func (uc *UserCache) GetOnlineUsers() (map[uint]models.UserStatus, error) {
	if uc == nil || uc.redis == nil {
		return nil, nil
	}
	members, err := uc.redis.HashGetAll(presenceKey)
	if err != nil {
		return nil, err
	}

	out := make(map[uint]models.UserStatus, len(members))
	for field, status := range members {
		if id, err := strconv.ParseUint(field, 10, 32); err == nil {
			out[uint(id)] = models.UserStatus(status)
		}
	}

	return out, nil
}
