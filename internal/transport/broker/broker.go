// Package broker is the serverless-friendly live transport: every publish
// is a fire-and-forget PUBLISH to an external pub/sub service, which fans
// out to whoever is already subscribed. The process keeps no connection
// state; presence comes from the broker's own presence-channel semantics.
package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/worklink/messaging/internal/realtime"
	"github.com/worklink/messaging/pkg/apperrors"
)

const (
	conversationChannelPrefix = "conversation-"
	privateUserChannelPrefix  = "private-user-"
	presenceChannelPrefix     = "presence-"
)

type Client struct {
	rdb       *redis.Client
	appKey    string
	appSecret string
	logger    *slog.Logger
}

func New(redisURL, appKey, appSecret string, logger *slog.Logger) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("broker: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("broker: ping: %w", err)
	}
	return &Client{rdb: rdb, appKey: appKey, appSecret: appSecret, logger: logger}, nil
}

var _ realtime.Publisher = (*Client)(nil)

// ConversationChannel is the public-within-app channel for a conversation.
func ConversationChannel(conversationID uuid.UUID) string {
	return conversationChannelPrefix + conversationID.String()
}

// UserChannel is the private per-user channel; subscribing requires a
// signed token from AuthorizeChannel.
func UserChannel(userID uuid.UUID) string {
	return privateUserChannelPrefix + userID.String()
}

func (c *Client) PublishToConversation(ctx context.Context, conversationID uuid.UUID, event realtime.Event) error {
	return c.publish(ctx, ConversationChannel(conversationID), event)
}

func (c *Client) PublishToUser(ctx context.Context, userID uuid.UUID, event realtime.Event) error {
	return c.publish(ctx, UserChannel(userID), event)
}

func (c *Client) publish(ctx context.Context, channel string, event realtime.Event) error {
	data, err := event.MarshalPayload()
	if err != nil {
		return err
	}
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		// Best-effort by contract: log here, callers absorb the error.
		c.logger.Warn("broker publish failed", "channel", channel, "event", event.Kind, "error", err)
		return err
	}
	return nil
}

// AuthorizeChannel validates that userID is entitled to channelName and
// returns a signed subscription token. Private user channels must embed
// the caller's own ID; presence channels additionally carry identity
// metadata signed into the token.
func (c *Client) AuthorizeChannel(ctx context.Context, connectionID, channelName string, userID uuid.UUID, userInfo map[string]any) (*realtime.ChannelAuth, error) {
	switch {
	case strings.HasPrefix(channelName, privateUserChannelPrefix):
		owner := strings.TrimPrefix(channelName, privateUserChannelPrefix)
		if owner != userID.String() {
			return nil, apperrors.Unauthorized("private channel does not belong to this user")
		}
		return &realtime.ChannelAuth{
			Auth: c.sign(connectionID + ":" + channelName),
		}, nil

	case strings.HasPrefix(channelName, presenceChannelPrefix):
		data, err := json.Marshal(map[string]any{
			"user_id":   userID.String(),
			"user_info": userInfo,
		})
		if err != nil {
			return nil, err
		}
		return &realtime.ChannelAuth{
			Auth:        c.sign(connectionID + ":" + channelName + ":" + string(data)),
			ChannelData: string(data),
		}, nil

	default:
		return nil, apperrors.Unauthorized("channel does not require or permit authorization")
	}
}

func (c *Client) sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write([]byte(payload))
	return c.appKey + ":" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
