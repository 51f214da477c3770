package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Participant is one side of a conversation. Unread counts and archive
// flags are tracked per participant, never globally.
type Participant struct {
	UserID      uuid.UUID `json:"user_id"`
	Role        string    `json:"role"`
	UnreadCount int       `json:"unread_count"`
	Archived    bool      `json:"archived"`
}

// LastMessage is the denormalized cache used by conversation list views.
type LastMessage struct {
	Content   string      `json:"content"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation pairs exactly two participants. The stored pair is kept in
// sorted order so the unordered (A,B) pair maps to exactly one row.
type Conversation struct {
	ID                 uuid.UUID          `json:"id"`
	Participants       [2]Participant     `json:"participants"`
	RelatedJob         *uuid.UUID         `json:"related_job,omitempty"`
	RelatedApplication *uuid.UUID         `json:"related_application,omitempty"`
	LastMessage        *LastMessage       `json:"last_message,omitempty"`
	Status             ConversationStatus `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`

	// Joined fields for frontend
	OtherUserID          uuid.UUID `json:"other_user_id,omitempty"`
	OtherUserDisplayName string    `json:"other_display_name,omitempty"`
}

// ParticipantFor returns the participant entry for userID, or nil.
func (c *Conversation) ParticipantFor(userID uuid.UUID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// OtherParticipant returns the participant that is not userID, or nil when
// userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID uuid.UUID) *Participant {
	if c.ParticipantFor(userID) == nil {
		return nil
	}
	for i := range c.Participants {
		if c.Participants[i].UserID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.ParticipantFor(userID) != nil
}

// ArchivedBy reports whether userID archived their view of the conversation.
func (c *Conversation) ArchivedBy(userID uuid.UUID) bool {
	p := c.ParticipantFor(userID)
	return p != nil && p.Archived
}

// SortedPair returns the two user IDs in canonical (low, high) order.
func SortedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
