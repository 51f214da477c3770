// Package notify dispatches user-facing notifications to the platform's
// notification subsystem. Delivery is fire-and-forget: a failed dispatch is
// logged and never fails the business operation that triggered it.
package notify

import (
	"context"

	"github.com/google/uuid"
)

type Notification struct {
	Title                 string    `json:"title"`
	Message               string    `json:"message"`
	RelatedConversationID uuid.UUID `json:"related_conversation_id"`
}

type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, n Notification) error
}

// NopNotifier drops every notification. Used when no dispatcher is
// configured and in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, recipientID uuid.UUID, n Notification) error {
	return nil
}
