package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Conversation is the container messages are posted to. A direct conversation is
// identified by its ParticipantKey, a group conversation by its GroupID; exactly one
// of the two is set and both carry unique indexes.
type Conversation struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name           *string `gorm:"size:100" json:"name"`
	IsGroup        bool    `gorm:"not null;default:false" json:"is_group"`
	GroupID        *uint   `gorm:"uniqueIndex" json:"group_id"`
	ParticipantKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"-"`
}

type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;index" json:"user_id"`
	JoinedAt       time.Time `gorm:"autoCreateTime" json:"joined_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// ParticipantIDs returns the ids of the loaded participants.
func (c *Conversation) ParticipantIDs() []uint {
	ids := make([]uint, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantList renders a deduplicated id set in ascending order, e.g. "2,10".
func ParticipantList(ids []uint) string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// ParticipantKey is the hex SHA-256 of ParticipantList. It has a fixed width
// whatever the size of the set.
func ParticipantKey(ids []uint) string {
	sum := sha256.Sum256([]byte(ParticipantList(ids)))
	return hex.EncodeToString(sum[:])
}

type ConversationResponse struct {
	ID           uint           `json:"id"`
	Name         *string        `json:"name"`
	IsGroup      bool           `json:"is_group"`
	GroupID      *uint          `json:"group_id"`
	Participants []UserResponse `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	participants := make([]UserResponse, 0, len(c.Participants))
	for i := range c.Participants {
		p := c.Participants[i]
		if p.User.ID == 0 {
			participants = append(participants, UserResponse{ID: p.UserID})
			continue
		}
		participants = append(participants, p.User.ToPublicResponse())
	}
	return ConversationResponse{
		ID:           c.ID,
		Name:         c.Name,
		IsGroup:      c.IsGroup,
		GroupID:      c.GroupID,
		Participants: participants,
		CreatedAt:    c.CreatedAt,
	}
}
