package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/realtime"
	"github.com/worklink/messaging/pkg/apperrors"
)

// HubPublisher adapts the Hub to the realtime.Publisher capability.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

var _ realtime.Publisher = (*HubPublisher)(nil)

func (p *HubPublisher) PublishToConversation(ctx context.Context, conversationID uuid.UUID, event realtime.Event) error {
	p.hub.BroadcastToConversation(conversationID, event, nil)
	return nil
}

func (p *HubPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event realtime.Event) error {
	p.hub.BroadcastToUser(userID, event)
	return nil
}

// AuthorizeChannel is a broker-transport concern. Registry connections are
// authorized once at upgrade time; there are no subscribe-time tokens.
func (p *HubPublisher) AuthorizeChannel(ctx context.Context, connectionID, channelName string, userID uuid.UUID, userInfo map[string]any) (*realtime.ChannelAuth, error) {
	return nil, apperrors.Unauthorized("channel authorization is not supported on the websocket transport")
}
