package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/domain"
)

// ConversationRepository is the durable per-pair summary store. The service
// layer is its only caller.
type ConversationRepository interface {
	// Create inserts the conversation and its two participant rows.
	// It returns false without error when another writer won the race for
	// the same participant pair; callers should re-read by pair.
	Create(ctx context.Context, conv *domain.Conversation) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// GetByPair resolves the unordered (a, b) pair; order does not matter.
	GetByPair(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, includeArchived bool) ([]domain.Conversation, error)
	SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error
}

// MessageRepository is the durable append-only message log.
type MessageRepository interface {
	// Create persists the message and, in the same transaction, refreshes
	// the owning conversation's last-message cache and updated_at and
	// increments the unread counter of every participant except the
	// sender. The counter bump is an atomic in-place increment so a
	// concurrent mark-as-read cannot lose either update. Returns the
	// recipient's unread count as committed, so live projections never
	// rely on a pre-commit snapshot.
	Create(ctx context.Context, msg *domain.Message, lastMessagePreview string) (int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByConversation returns one page, newest first, excluding
	// messages the viewer deleted, together with the total visible count.
	ListByConversation(ctx context.Context, conversationID, viewerID uuid.UUID, limit, offset int) ([]domain.Message, int, error)
	// MarkConversationRead zeroes the reader's unread counter, appends a
	// read receipt to every message not sent by the reader that lacks
	// one, and promotes those messages' status to read. Idempotent; the
	// whole unit commits or none of it does. Returns the number of
	// messages newly marked.
	MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID, at time.Time) (int, error)
	// MarkDelivered promotes status sent→delivered. Forward-only: a read
	// message is left untouched.
	MarkDelivered(ctx context.Context, messageID uuid.UUID) error
	UpdateContent(ctx context.Context, messageID uuid.UUID, content string, at time.Time) error
	// MarkDeletedFor hides the message for userID only. Idempotent.
	MarkDeletedFor(ctx context.Context, messageID, userID uuid.UUID) error
}
