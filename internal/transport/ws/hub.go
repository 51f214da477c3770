package ws

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/realtime"
)

// Hub is the connection registry: it owns every live client, routes events
// to conversation rooms and user channels, and drives presence broadcasts.
// Constructed once at startup and passed by reference; there is no
// package-level connection state.
type Hub struct {
	presence *Presence
	logger   *slog.Logger

	// clients and byUser are touched only from the Run loop.
	clients map[*Client]struct{}
	byUser  map[uuid.UUID]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMsg
}

type broadcastMsg struct {
	// Exactly one of room / userID is set; neither means broadcast to all.
	room    *uuid.UUID
	userID  *uuid.UUID
	data    []byte
	exclude *Client
}

func NewHub(presence *Presence, logger *slog.Logger) *Hub {
	return &Hub{
		presence:   presence,
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		byUser:     make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMsg, 256),
	}
}

func (h *Hub) Presence() *Presence { return h.presence }

// Run starts the Hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			set, ok := h.byUser[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.byUser[client.userID] = set
			}
			set[client] = struct{}{}
			h.logger.Info("client connected",
				"user_id", client.userID, "conn_id", client.id, "total", len(h.clients))

			if h.presence.RecordConnect(client.userID, client.id) {
				h.broadcastStatus(client.userID, true, nil)
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.drop(client)
			h.logger.Info("client disconnected",
				"user_id", client.userID, "conn_id", client.id, "total", len(h.clients))

			if h.presence.RecordDisconnect(client.userID, client.id) {
				lastSeen := time.Now().UTC()
				h.broadcastStatus(client.userID, false, &lastSeen)
			}

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg *broadcastMsg) {
	deliver := func(client *Client) {
		if client == msg.exclude {
			return
		}
		select {
		case client.send <- msg.data:
		default:
			// Buffer full: the client is too slow, cut it loose.
			h.drop(client)
		}
	}

	switch {
	case msg.userID != nil:
		for client := range h.byUser[*msg.userID] {
			deliver(client)
		}
	case msg.room != nil:
		for client := range h.clients {
			if client.InRoom(*msg.room) {
				deliver(client)
			}
		}
	default:
		for client := range h.clients {
			deliver(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if set, ok := h.byUser[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byUser, client.userID)
		}
	}
	// Only done is closed, never send: the read pump may still be queuing
	// frames (pongs) into send from its own goroutine. Closing done ends
	// the write pump, which closes the conn and unwinds the read pump.
	close(client.done)
}

// BroadcastToConversation sends an event to every client joined to the
// conversation's room. Room membership is advisory fan-out state only.
func (h *Hub) BroadcastToConversation(conversationID uuid.UUID, event realtime.Event, exclude *Client) {
	data, err := event.MarshalPayload()
	if err != nil {
		h.logger.Error("event marshal failed", "event", event.Kind, "error", err)
		return
	}
	h.broadcast <- &broadcastMsg{room: &conversationID, data: data, exclude: exclude}
}

// BroadcastToUser sends an event to every connection the user holds.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event realtime.Event) {
	data, err := event.MarshalPayload()
	if err != nil {
		h.logger.Error("event marshal failed", "event", event.Kind, "error", err)
		return
	}
	h.broadcast <- &broadcastMsg{userID: &userID, data: data}
}

// relayTyping forwards a typing start/stop from one client to the rest of
// the room.
func (h *Hub) relayTyping(sender *Client, kind realtime.EventKind, conversationID uuid.UUID) {
	event := realtime.TypingEvent(kind, conversationID, sender.userID)
	data, err := event.MarshalPayload()
	if err != nil {
		return
	}
	h.broadcast <- &broadcastMsg{room: &conversationID, data: data, exclude: sender}
}

func (h *Hub) broadcastStatus(userID uuid.UUID, online bool, lastSeen *time.Time) {
	event := realtime.StatusChangedEvent(userID, online, lastSeen)
	data, err := event.MarshalPayload()
	if err != nil {
		return
	}
	// Fan out directly: we are already on the Run goroutine and the
	// broadcast channel must stay free for client-originated traffic.
	h.fanOut(&broadcastMsg{data: data})
}
