package realtime

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/worklink/messaging/pkg/apperrors"
)

// ChannelAuth is the signed token a client presents to the broker before
// subscribing to a private or presence channel.
type ChannelAuth struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Publisher is the live-transport capability. Implementations are
// best-effort: durable state never depends on a publish succeeding.
type Publisher interface {
	PublishToConversation(ctx context.Context, conversationID uuid.UUID, event Event) error
	PublishToUser(ctx context.Context, userID uuid.UUID, event Event) error
	// AuthorizeChannel validates that userID may subscribe to channelName
	// and returns a signed token. Only the broker transport implements
	// this meaningfully; others return Unauthorized.
	AuthorizeChannel(ctx context.Context, connectionID, channelName string, userID uuid.UUID, userInfo map[string]any) (*ChannelAuth, error)
}

// Fanout distributes every publish to all configured transports. With none
// configured it is a silent no-op, which is exactly the resilience contract
// the service layer relies on: publish errors are logged and absorbed,
// never returned.
type Fanout struct {
	publishers []Publisher
	logger     *slog.Logger
}

func NewFanout(logger *slog.Logger, publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers, logger: logger}
}

func (f *Fanout) PublishToConversation(ctx context.Context, conversationID uuid.UUID, event Event) {
	if f == nil {
		return
	}
	for _, p := range f.publishers {
		if err := p.PublishToConversation(ctx, conversationID, event); err != nil {
			f.logger.Warn("publish to conversation failed",
				"event", event.Kind, "conversation_id", conversationID, "error", err)
		}
	}
}

func (f *Fanout) PublishToUser(ctx context.Context, userID uuid.UUID, event Event) {
	if f == nil {
		return
	}
	for _, p := range f.publishers {
		if err := p.PublishToUser(ctx, userID, event); err != nil {
			f.logger.Warn("publish to user failed",
				"event", event.Kind, "user_id", userID, "error", err)
		}
	}
}

// AuthorizeChannel asks each transport in order; the first that can
// authorize wins. Authorization failures are real errors, unlike publishes.
func (f *Fanout) AuthorizeChannel(ctx context.Context, connectionID, channelName string, userID uuid.UUID, userInfo map[string]any) (*ChannelAuth, error) {
	if f == nil || len(f.publishers) == 0 {
		return nil, apperrors.Unauthorized("no channel-authorizing transport configured")
	}
	var lastErr error
	for _, p := range f.publishers {
		auth, err := p.AuthorizeChannel(ctx, connectionID, channelName, userID, userInfo)
		if err == nil {
			return auth, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
