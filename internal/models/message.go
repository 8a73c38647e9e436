package models

import (
	"time"

	"gorm.io/gorm"
)

type FileType string

const (
	FileImage    FileType = "IMAGE"
	FileDocument FileType = "DOCUMENT"
	FilePDF      FileType = "PDF"
	FileVideo    FileType = "VIDEO"
	FileAudio    FileType = "AUDIO"
)

func (t FileType) Valid() bool {
	switch t {
	case FileImage, FileDocument, FilePDF, FileVideo, FileAudio:
		return true
	}
	return false
}

type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index:idx_conversation_created,priority:2" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Client-side tracking
	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_client_sender;not null" json:"client_id"` // UUID for deduplication

	ConversationID uint `gorm:"not null;index:idx_conversation_created,priority:1" json:"conversation_id"`
	SenderID       uint `gorm:"not null;uniqueIndex:idx_client_sender;index" json:"sender_id"`
	Sender         User `gorm:"foreignKey:SenderID" json:"sender"`

	Content  string     `gorm:"type:text;not null;default:''" json:"content"`
	EditedAt *time.Time `json:"edited_at"`

	Files  []File        `gorm:"foreignKey:MessageID" json:"files"`
	ReadBy []MessageRead `gorm:"foreignKey:MessageID" json:"-"`
}

// File is an attachment persisted together with its message.
type File struct {
	ID        uint     `gorm:"primarykey" json:"id"`
	MessageID uint     `gorm:"not null;index" json:"message_id"`
	URL       string   `gorm:"not null" json:"url"`
	Name      string   `json:"name"`
	FileType  FileType `gorm:"type:varchar(16);not null" json:"file_type"`
	Position  int      `gorm:"not null;default:0" json:"-"`
}

// MessageRead records that a user has seen a message. The composite key keeps
// a reader from appearing twice.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;index" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

// ReaderIDs returns the ids in readBy.
func (m *Message) ReaderIDs() []uint {
	ids := make([]uint, 0, len(m.ReadBy))
	for _, r := range m.ReadBy {
		ids = append(ids, r.UserID)
	}
	return ids
}

func (m *Message) ReadByUser(userID uint) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

type FileResponse struct {
	URL      string   `json:"url"`
	Name     string   `json:"name,omitempty"`
	FileType FileType `json:"file_type"`
}

type MessageResponse struct {
	ID             uint           `json:"id"`
	ClientID       string         `json:"client_id"`
	ConversationID uint           `json:"conversation_id"`
	SenderID       uint           `json:"sender_id"`
	Sender         UserResponse   `json:"sender"`
	Content        string         `json:"content"`
	Files          []FileResponse `json:"files"`
	ReadBy         []uint         `json:"read_by"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	files := make([]FileResponse, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, FileResponse{URL: f.URL, Name: f.Name, FileType: f.FileType})
	}
	return MessageResponse{
		ID:             m.ID,
		ClientID:       m.ClientID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         m.Sender.ToPublicResponse(),
		Content:        m.Content,
		Files:          files,
		ReadBy:         m.ReaderIDs(),
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
}
