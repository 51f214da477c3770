package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklink/messaging/pkg/apperrors"
)

func testClient() *Client {
	return &Client{
		appKey:    "test-key",
		appSecret: "test-secret",
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func expectedSig(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuthorizePrivateChannel(t *testing.T) {
	c := testClient()
	user := uuid.New()
	channel := UserChannel(user)

	auth, err := c.AuthorizeChannel(context.Background(), "socket-123", channel, user, nil)
	require.NoError(t, err)
	assert.Empty(t, auth.ChannelData)

	want := "test-key:" + expectedSig("test-secret", "socket-123:"+channel)
	assert.Equal(t, want, auth.Auth)
}

func TestAuthorizePrivateChannelWrongUser(t *testing.T) {
	c := testClient()
	owner := uuid.New()
	intruder := uuid.New()

	_, err := c.AuthorizeChannel(context.Background(), "socket-123", UserChannel(owner), intruder, nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))
}

func TestAuthorizePresenceChannel(t *testing.T) {
	c := testClient()
	user := uuid.New()

	auth, err := c.AuthorizeChannel(context.Background(), "socket-9", "presence-global", user,
		map[string]any{"display_name": "Alice"})
	require.NoError(t, err)

	require.NotEmpty(t, auth.ChannelData)
	assert.Contains(t, auth.ChannelData, user.String())
	assert.Contains(t, auth.ChannelData, "Alice")

	want := "test-key:" + expectedSig("test-secret", "socket-9:presence-global:"+auth.ChannelData)
	assert.Equal(t, want, auth.Auth)
}

func TestAuthorizeUnknownChannelClass(t *testing.T) {
	c := testClient()

	_, err := c.AuthorizeChannel(context.Background(), "socket-1", ConversationChannel(uuid.New()), uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	_, err = c.AuthorizeChannel(context.Background(), "socket-1", "totally-unknown", uuid.New(), nil)
	require.Error(t, err)
}

func TestChannelNames(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "conversation-"+id.String(), ConversationChannel(id))
	assert.True(t, strings.HasPrefix(UserChannel(id), "private-user-"))
}
