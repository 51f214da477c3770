package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPresenceConnectDisconnect(t *testing.T) {
	p := NewPresence()
	user := uuid.New()

	assert.False(t, p.IsOnline(user))

	assert.True(t, p.RecordConnect(user, "conn-1"), "first connection brings the user online")
	assert.True(t, p.IsOnline(user))

	assert.False(t, p.RecordConnect(user, "conn-2"), "second connection is not a fresh online")
	assert.False(t, p.RecordDisconnect(user, "conn-1"), "one connection still open")
	assert.True(t, p.IsOnline(user))

	assert.True(t, p.RecordDisconnect(user, "conn-2"), "last connection takes the user offline")
	assert.False(t, p.IsOnline(user))
}

func TestPresenceIdempotentEvents(t *testing.T) {
	p := NewPresence()
	user := uuid.New()

	assert.True(t, p.RecordConnect(user, "conn-1"))
	assert.False(t, p.RecordConnect(user, "conn-1"), "duplicate connect is a no-op")

	assert.True(t, p.RecordDisconnect(user, "conn-1"))
	assert.False(t, p.RecordDisconnect(user, "conn-1"), "duplicate disconnect is a no-op")
	assert.False(t, p.RecordDisconnect(user, "never-seen"))
}

func TestPresenceOnlineUserIDs(t *testing.T) {
	p := NewPresence()
	a, b := uuid.New(), uuid.New()

	p.RecordConnect(a, "a-1")
	p.RecordConnect(b, "b-1")
	assert.ElementsMatch(t, []uuid.UUID{a, b}, p.OnlineUserIDs())

	p.RecordDisconnect(b, "b-1")
	assert.ElementsMatch(t, []uuid.UUID{a}, p.OnlineUserIDs())
}
