package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklink/messaging/internal/domain"
	"github.com/worklink/messaging/pkg/apperrors"
)

func TestEventKindClosedSet(t *testing.T) {
	for _, kind := range []EventKind{
		EventNewMessage, EventMessageEdited, EventMessageDeleted,
		EventMessageRead, EventUserTyping, EventUserStopTyping,
		EventUserStatusChanged, EventNotification, EventUnreadCountUpdated,
	} {
		assert.True(t, kind.Valid(), string(kind))
	}
	assert.False(t, EventKind("new_message").Valid(), "underscored variant is not a kind")
	assert.False(t, EventKind("").Valid())
}

func TestEventEnvelopeJSON(t *testing.T) {
	content := "hi"
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Type:           domain.MessageText,
		Content:        &content,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now(),
	}

	data, err := NewMessageEvent(msg).MarshalPayload()
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.JSONEq(t, `"new-message"`, string(envelope["event"]))
	require.Contains(t, envelope, "timestamp")

	// ISO-8601 timestamp on the wire.
	var ts time.Time
	require.NoError(t, json.Unmarshal(envelope["timestamp"], &ts))
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestStatusChangedEvent(t *testing.T) {
	user := uuid.New()

	online := StatusChangedEvent(user, true, nil)
	payload := online.Payload.(StatusChangedPayload)
	assert.Equal(t, "online", payload.Status)
	assert.Nil(t, payload.LastSeen)

	seen := time.Now()
	offline := StatusChangedEvent(user, false, &seen)
	payload = offline.Payload.(StatusChangedPayload)
	assert.Equal(t, "offline", payload.Status)
	require.NotNil(t, payload.LastSeen)
}

type countingPublisher struct {
	conversationCalls int
	userCalls         int
	err               error
}

func (p *countingPublisher) PublishToConversation(ctx context.Context, conversationID uuid.UUID, event Event) error {
	p.conversationCalls++
	return p.err
}

func (p *countingPublisher) PublishToUser(ctx context.Context, userID uuid.UUID, event Event) error {
	p.userCalls++
	return p.err
}

func (p *countingPublisher) AuthorizeChannel(ctx context.Context, connectionID, channelName string, userID uuid.UUID, userInfo map[string]any) (*ChannelAuth, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &ChannelAuth{Auth: "ok"}, nil
}

func TestFanoutNoTransportIsSilentNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	empty := NewFanout(logger)
	empty.PublishToConversation(context.Background(), uuid.New(), UnreadCountEvent(uuid.New(), 1))
	empty.PublishToUser(context.Background(), uuid.New(), UnreadCountEvent(uuid.New(), 1))

	var nilFanout *Fanout
	nilFanout.PublishToConversation(context.Background(), uuid.New(), UnreadCountEvent(uuid.New(), 1))
	nilFanout.PublishToUser(context.Background(), uuid.New(), UnreadCountEvent(uuid.New(), 1))

	_, err := empty.AuthorizeChannel(context.Background(), "s", "private-user-x", uuid.New(), nil)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestFanoutAbsorbsPublishErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	failing := &countingPublisher{err: errors.New("broker down")}
	healthy := &countingPublisher{}

	f := NewFanout(logger, failing, healthy)
	f.PublishToConversation(context.Background(), uuid.New(), UnreadCountEvent(uuid.New(), 2))

	// Both transports were attempted despite the first one failing.
	assert.Equal(t, 1, failing.conversationCalls)
	assert.Equal(t, 1, healthy.conversationCalls)
}

func TestFanoutAuthorizeFirstCapableWins(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	failing := &countingPublisher{err: apperrors.Unauthorized("not mine")}
	healthy := &countingPublisher{}

	f := NewFanout(logger, failing, healthy)
	auth, err := f.AuthorizeChannel(context.Background(), "s", "private-user-x", uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", auth.Auth)
}
