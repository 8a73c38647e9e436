package models

import (
	"time"

	"gorm.io/gorm"
)

type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name      string `gorm:"size:100;not null" json:"name"`
	IsPrivate bool   `gorm:"not null;default:false" json:"is_private"`
	Image     string `json:"image"`
	CreatorID uint   `gorm:"not null" json:"creator_id"`

	// Associations
	Creator User          `gorm:"foreignKey:CreatorID" json:"-"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"-"`
}

type GroupMember struct {
	GroupID  uint      `gorm:"primaryKey" json:"group_id"`
	UserID   uint      `gorm:"primaryKey" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	User  User  `gorm:"foreignKey:UserID" json:"-"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}

type GroupResponse struct {
	ID             uint      `json:"id"`
	Name           string    `json:"name"`
	IsPrivate      bool      `json:"is_private"`
	Image          string    `json:"image"`
	CreatorID      uint      `json:"creator_id"`
	MemberIDs      []uint    `json:"member_ids"`
	ConversationID uint      `json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (g *Group) ToResponse() GroupResponse {
	ids := make([]uint, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return GroupResponse{
		ID:        g.ID,
		Name:      g.Name,
		IsPrivate: g.IsPrivate,
		Image:     g.Image,
		CreatorID: g.CreatorID,
		MemberIDs: ids,
		CreatedAt: g.CreatedAt,
	}
}
