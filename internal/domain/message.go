package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

type MessageStatus string

// Message status only ever moves forward: sent → delivered → read.
const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// FileAttachment describes the stored file for file/image messages. The
// bytes themselves live in external storage; we only keep the reference.
type FileAttachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// MessageRead is a single read receipt. At most one per user per message.
type MessageRead struct {
	UserID uuid.UUID `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is append-only: rows are never physically removed, deletion is a
// per-viewer visibility marker in DeletedBy.
type Message struct {
	ID             uuid.UUID       `json:"id"`
	ConversationID uuid.UUID       `json:"conversation_id"`
	SenderID       uuid.UUID       `json:"sender_id"`
	Type           MessageType     `json:"type"`
	Content        *string         `json:"content,omitempty"`
	File           *FileAttachment `json:"file,omitempty"`
	Status         MessageStatus   `json:"status"`
	ReadBy         []MessageRead   `json:"read_by,omitempty"`
	ReplyTo        *uuid.UUID      `json:"reply_to,omitempty"`
	DeletedBy      []uuid.UUID     `json:"-"`
	Edited         bool            `json:"edited,omitempty"`
	EditedAt       *time.Time      `json:"edited_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReadByUser reports whether userID already has a read receipt.
func (m *Message) ReadByUser(userID uuid.UUID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// DeletedFor reports whether the message is hidden for userID.
func (m *Message) DeletedFor(userID uuid.UUID) bool {
	for _, id := range m.DeletedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Editable reports whether userID may edit this message. Only the sender
// may edit, and only text messages.
func (m *Message) Editable(userID uuid.UUID) bool {
	return m.SenderID == userID && m.Type == MessageText
}

// ValidType reports whether t is one of the closed set of message types.
func ValidType(t MessageType) bool {
	switch t {
	case MessageText, MessageFile, MessageImage, MessageSystem:
		return true
	}
	return false
}
