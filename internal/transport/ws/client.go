package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/worklink/messaging/internal/realtime"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Command is the client→server envelope. Servers speak realtime.Event in
// the other direction.
type Command struct {
	Type           string     `json:"type"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

const (
	CommandJoin        = "conversation.join"
	CommandLeave       = "conversation.leave"
	CommandTypingStart = "typing.start"
	CommandTypingStop  = "typing.stop"
	CommandPing        = "ping"
)

// Client is one authenticated WebSocket connection. A connection belongs
// to exactly one user and may join many conversation rooms; the user
// channel needs no join, the hub routes on userID directly.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID

	// rooms is written by the read pump and read by the hub loop.
	rooms map[uuid.UUID]struct{}
	mu    sync.RWMutex

	send chan []byte
	done chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		userID: userID,
		rooms:  make(map[uuid.UUID]struct{}),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) InRoom(conversationID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[conversationID]
	return ok
}

func (c *Client) join(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[conversationID] = struct{}{}
}

func (c *Client) leave(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, conversationID)
}

// ReadPump reads commands from the WebSocket until the connection dies.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var cmd Command
		if err := wsjson.Read(context.Background(), c.conn, &cmd); err != nil {
			return
		}
		c.handleCommand(&cmd)
	}
}

// WritePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handleCommand(cmd *Command) {
	switch cmd.Type {
	case CommandJoin:
		if cmd.ConversationID != nil {
			c.join(*cmd.ConversationID)
		}
	case CommandLeave:
		if cmd.ConversationID != nil {
			c.leave(*cmd.ConversationID)
		}
	case CommandTypingStart:
		if cmd.ConversationID != nil {
			c.hub.relayTyping(c, realtime.EventUserTyping, *cmd.ConversationID)
		}
	case CommandTypingStop:
		if cmd.ConversationID != nil {
			c.hub.relayTyping(c, realtime.EventUserStopTyping, *cmd.ConversationID)
		}
	case CommandPing:
		data, _ := json.Marshal(map[string]string{"type": "pong"})
		select {
		case c.send <- data:
		default:
		}
	}
}
