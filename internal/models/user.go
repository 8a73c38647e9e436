package models

import (
	"time"

	"gorm.io/gorm"
)

type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusIdle    UserStatus = "IDLE"
	StatusMute    UserStatus = "MUTE"
	StatusOffline UserStatus = "OFFLINE"
)

const DefaultIdleTimeoutMs = 15000

// Selectable reports whether a user may pick the status explicitly or store it as default.
func (s UserStatus) Selectable() bool {
	return s == StatusOnline || s == StatusIdle || s == StatusMute
}

func (s UserStatus) Valid() bool {
	return s.Selectable() || s == StatusOffline
}

type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	FullName     string     `json:"full_name"`
	Avatar       string     `json:"avatar"`
	LastSeen     *time.Time `json:"last_seen"`

	// Presence
	Status        UserStatus `gorm:"type:varchar(16);not null;default:'OFFLINE'" json:"status"`
	IdleTimeoutMs int        `gorm:"not null;default:15000" json:"idle_timeout_ms"`
	DefaultStatus UserStatus `gorm:"type:varchar(16);not null;default:'ONLINE'" json:"default_status"`
}

// IdleTimeout falls back to the system default when the stored value is unusable.
func (u *User) IdleTimeout() time.Duration {
	if u.IdleTimeoutMs <= 0 {
		return DefaultIdleTimeoutMs * time.Millisecond
	}
	return time.Duration(u.IdleTimeoutMs) * time.Millisecond
}

type UserResponse struct {
	ID            uint       `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email,omitempty"`
	FullName      string     `json:"full_name"`
	Avatar        string     `json:"avatar"`
	Status        UserStatus `json:"status"`
	IdleTimeoutMs int        `json:"idle_timeout_ms,omitempty"`
	DefaultStatus UserStatus `json:"default_status,omitempty"`
	LastSeen      *time.Time `json:"last_seen"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		Avatar:        u.Avatar,
		Status:        u.Status,
		IdleTimeoutMs: u.IdleTimeoutMs,
		DefaultStatus: u.DefaultStatus,
		LastSeen:      u.LastSeen,
	}
}

// ToPublicResponse hides fields other users should not see.
func (u *User) ToPublicResponse() UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Avatar:   u.Avatar,
		Status:   u.Status,
		LastSeen: u.LastSeen,
	}
}
