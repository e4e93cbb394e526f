package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/Ikram11215/puissance4game/internal/match"
	"github.com/Ikram11215/puissance4game/internal/msgcat"
	"github.com/Ikram11215/puissance4game/internal/obslog"
	"github.com/Ikram11215/puissance4game/pkg/wire"
)

const sendQueueSize = 32

// client is one accepted connection. Outgoing frames go through the send
// channel so the single writer goroutine owns all writes to the socket.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	roomID string
}

// Hub routes outgoing events to connections. It implements match.Publisher:
// an event with To set goes to that single connection, otherwise it fans out
// to every connection joined to the room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client

	cat *msgcat.Catalog
}

func NewHub(cat *msgcat.Catalog) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
		cat:     cat,
	}
}

func (h *Hub) register(id string, conn *websocket.Conn) *client {
	c := &client{id: id, conn: conn, send: make(chan []byte, sendQueueSize)}
	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()
	return c
}

// unregister drops the connection and returns the room it was joined to,
// so the caller can dispatch the disconnect intent.
func (h *Hub) unregister(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return ""
	}
	delete(h.clients, id)
	roomID := c.roomID
	if roomID != "" {
		if group, ok := h.rooms[roomID]; ok {
			delete(group, id)
			if len(group) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	close(c.send)
	return roomID
}

// join moves the connection into the room's broadcast group. A connection
// belongs to at most one room.
func (h *Hub) join(id, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	if c.roomID != "" && c.roomID != roomID {
		if group, ok := h.rooms[c.roomID]; ok {
			delete(group, id)
			if len(group) == 0 {
				delete(h.rooms, c.roomID)
			}
		}
	}
	c.roomID = roomID
	group, ok := h.rooms[roomID]
	if !ok {
		group = make(map[string]*client)
		h.rooms[roomID] = group
	}
	group[id] = c
}

// roomOf returns the room the connection is currently joined to.
func (h *Hub) roomOf(id string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[id]; ok {
		return c.roomID
	}
	return ""
}

// Publish satisfies match.Publisher. Group membership follows acceptance:
// a connection enters the room's broadcast group only when the room grants
// it a seat (room-created, room-joined), never before.
func (h *Hub) Publish(roomID string, ev match.Event) {
	frame, err := h.encode(ev)
	if err != nil {
		obslog.L().Error("encode_error", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	if ev.To != "" {
		if roomID != "" && (ev.Name == wire.EventRoomCreated || ev.Name == wire.EventRoomJoined) {
			h.join(ev.To, roomID)
		}
		h.sendTo(ev.To, frame)
		return
	}
	h.mu.RLock()
	group := h.rooms[roomID]
	targets := make([]*client, 0, len(group))
	for _, c := range group {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		h.enqueue(c, frame)
	}
}

func (h *Hub) sendTo(id string, frame []byte) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if ok {
		h.enqueue(c, frame)
	}
}

// sendError renders a taxonomy error for a single connection.
func (h *Hub) sendError(id string, err error) {
	h.Publish("", match.Event{Name: wire.EventError, To: id, Payload: match.Rejection{Err: err}})
}

func (h *Hub) enqueue(c *client, frame []byte) {
	select {
	case c.send <- frame:
	default:
		// slow consumer: drop the frame rather than stall the room worker
		obslog.L().Warn("send_queue_full", zap.String("conn_id", c.id))
	}
}

// encode turns a room event into its wire frame. Rejections are rendered
// to user-facing text here so the lifecycle layer never deals in prose.
func (h *Hub) encode(ev match.Event) ([]byte, error) {
	name := ev.Name
	payload := ev.Payload
	if rej, ok := ev.Payload.(match.Rejection); ok {
		name = wire.EventError
		payload = wire.ErrorPayload{
			Message: h.cat.Message("errors." + match.ErrorCode(rej.Err)),
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire.Envelope{Event: name, Data: data})
}
