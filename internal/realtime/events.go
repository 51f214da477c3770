package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/domain"
	"github.com/worklink/messaging/internal/notify"
)

// EventKind is the closed set of outward event names. Anything outside this
// set is rejected at construction, so a typo cannot silently vanish into
// the transport layer.
type EventKind string

const (
	EventNewMessage         EventKind = "new-message"
	EventMessageEdited      EventKind = "message-edited"
	EventMessageDeleted     EventKind = "message-deleted"
	EventMessageRead        EventKind = "message-read"
	EventUserTyping         EventKind = "user-typing"
	EventUserStopTyping     EventKind = "user-stop-typing"
	EventUserStatusChanged  EventKind = "user-status-changed"
	EventNotification       EventKind = "notification"
	EventUnreadCountUpdated EventKind = "unread-count-updated"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventNewMessage, EventMessageEdited, EventMessageDeleted,
		EventMessageRead, EventUserTyping, EventUserStopTyping,
		EventUserStatusChanged, EventNotification, EventUnreadCountUpdated:
		return true
	}
	return false
}

// Event is the envelope every transport carries. Payload shape is fixed by
// Kind; Timestamp is ISO-8601 via time.Time's JSON encoding.
type Event struct {
	Kind           EventKind  `json:"event"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	Payload        any        `json:"payload,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

func (e Event) MarshalPayload() ([]byte, error) {
	return json.Marshal(e)
}

// --- payload shapes ---

type MessageReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	ReaderID       uuid.UUID `json:"reader_id"`
	MessagesRead   int       `json:"messages_read"`
}

type MessageDeletedPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

type StatusChangedPayload struct {
	UserID   uuid.UUID  `json:"user_id"`
	Status   string     `json:"status"` // "online" | "offline"
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type UnreadCountPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UnreadCount    int       `json:"unread_count"`
}

// --- constructors ---

func NewMessageEvent(msg *domain.Message) Event {
	id := msg.ConversationID
	return Event{Kind: EventNewMessage, ConversationID: &id, Payload: msg, Timestamp: time.Now().UTC()}
}

func MessageEditedEvent(msg *domain.Message) Event {
	id := msg.ConversationID
	return Event{Kind: EventMessageEdited, ConversationID: &id, Payload: msg, Timestamp: time.Now().UTC()}
}

func MessageDeletedEvent(conversationID, messageID uuid.UUID) Event {
	return Event{
		Kind:           EventMessageDeleted,
		ConversationID: &conversationID,
		Payload:        MessageDeletedPayload{ConversationID: conversationID, MessageID: messageID},
		Timestamp:      time.Now().UTC(),
	}
}

func MessageReadEvent(conversationID, readerID uuid.UUID, count int) Event {
	return Event{
		Kind:           EventMessageRead,
		ConversationID: &conversationID,
		Payload:        MessageReadPayload{ConversationID: conversationID, ReaderID: readerID, MessagesRead: count},
		Timestamp:      time.Now().UTC(),
	}
}

func TypingEvent(kind EventKind, conversationID, userID uuid.UUID) Event {
	return Event{
		Kind:           kind,
		ConversationID: &conversationID,
		Payload:        TypingPayload{ConversationID: conversationID, UserID: userID},
		Timestamp:      time.Now().UTC(),
	}
}

func StatusChangedEvent(userID uuid.UUID, online bool, lastSeen *time.Time) Event {
	status := "online"
	if !online {
		status = "offline"
	}
	return Event{
		Kind:      EventUserStatusChanged,
		Payload:   StatusChangedPayload{UserID: userID, Status: status, LastSeen: lastSeen},
		Timestamp: time.Now().UTC(),
	}
}

func NotificationEvent(n notify.Notification) Event {
	return Event{Kind: EventNotification, Payload: n, Timestamp: time.Now().UTC()}
}

func UnreadCountEvent(conversationID uuid.UUID, unread int) Event {
	return Event{
		Kind:           EventUnreadCountUpdated,
		ConversationID: &conversationID,
		Payload:        UnreadCountPayload{ConversationID: conversationID, UnreadCount: unread},
		Timestamp:      time.Now().UTC(),
	}
}
