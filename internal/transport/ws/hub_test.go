package ws

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/worklink/messaging/internal/realtime"
)

func testHub() *Hub {
	return NewHub(NewPresence(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// addClient inserts a client the way the Run loop's register arm does,
// without spinning up the loop, so the fan-out paths stay deterministic.
func addClient(h *Hub, userID uuid.UUID) *Client {
	c := NewClient(h, nil, userID)
	h.clients[c] = struct{}{}
	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.byUser[userID] = set
	}
	set[c] = struct{}{}
	h.presence.RecordConnect(userID, c.id)
	return c
}

func recvOne(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.send:
		return data
	default:
		t.Fatal("expected a queued frame")
		return nil
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatal("expected no frame")
	default:
	}
}

func TestFanOutToRoom(t *testing.T) {
	h := testHub()
	room := uuid.New()

	joined := addClient(h, uuid.New())
	joined.join(room)
	other := addClient(h, uuid.New())

	h.fanOut(&broadcastMsg{room: &room, data: []byte(`{"event":"new-message"}`)})

	assert.NotNil(t, recvOne(t, joined))
	assertEmpty(t, other)
}

func TestFanOutToRoomExcludesSender(t *testing.T) {
	h := testHub()
	room := uuid.New()

	sender := addClient(h, uuid.New())
	sender.join(room)
	listener := addClient(h, uuid.New())
	listener.join(room)

	h.fanOut(&broadcastMsg{room: &room, data: []byte(`{}`), exclude: sender})

	assertEmpty(t, sender)
	assert.NotNil(t, recvOne(t, listener))
}

func TestFanOutToUserHitsEveryConnection(t *testing.T) {
	h := testHub()
	user := uuid.New()

	phone := addClient(h, user)
	laptop := addClient(h, user)
	stranger := addClient(h, uuid.New())

	h.fanOut(&broadcastMsg{userID: &user, data: []byte(`{}`)})

	assert.NotNil(t, recvOne(t, phone))
	assert.NotNil(t, recvOne(t, laptop))
	assertEmpty(t, stranger)
}

func TestFanOutDropsSlowClient(t *testing.T) {
	h := testHub()
	room := uuid.New()

	slow := addClient(h, uuid.New())
	slow.join(room)
	for i := 0; i < sendBufSize; i++ {
		slow.send <- []byte("backlog")
	}

	h.fanOut(&broadcastMsg{room: &room, data: []byte(`{}`)})

	_, stillThere := h.clients[slow]
	assert.False(t, stillThere, "saturated client should be dropped")
	assert.Empty(t, h.byUser[slow.userID])
}

func TestPongAfterDropDoesNotPanic(t *testing.T) {
	h := testHub()
	room := uuid.New()

	slow := addClient(h, uuid.New())
	slow.join(room)
	for i := 0; i < sendBufSize; i++ {
		slow.send <- []byte("backlog")
	}

	// Saturated buffer: fan-out drops the client.
	h.fanOut(&broadcastMsg{room: &room, data: []byte(`{}`)})
	_, stillThere := h.clients[slow]
	require.False(t, stillThere)

	// The read pump can still be handling a frame it pulled off the wire
	// before the drop; a ping from it must queue (or skip) safely, never
	// hit a closed channel.
	slow.handleCommand(&Command{Type: CommandPing})

	select {
	case <-slow.done:
	default:
		t.Fatal("dropped client's done channel should be closed")
	}
}

func TestRoomJoinLeave(t *testing.T) {
	h := testHub()
	c := addClient(h, uuid.New())
	room := uuid.New()

	assert.False(t, c.InRoom(room))
	c.join(room)
	assert.True(t, c.InRoom(room))
	c.leave(room)
	assert.False(t, c.InRoom(room))
}

func TestRelayTyping(t *testing.T) {
	h := testHub()
	room := uuid.New()

	typist := addClient(h, uuid.New())
	typist.join(room)
	watcher := addClient(h, uuid.New())
	watcher.join(room)

	h.relayTyping(typist, realtime.EventUserTyping, room)

	// relayTyping goes through the broadcast channel; drain it manually.
	msg := <-h.broadcast
	h.fanOut(msg)

	data := recvOne(t, watcher)
	require.Contains(t, string(data), `"user-typing"`)
	assertEmpty(t, typist)
}
