package wire

import "encoding/json"

// Inbound event names (client → server).
const (
	EventCreateRoom     = "create-room"
	EventJoinRoom       = "join-room"
	EventPlayerReady    = "player-ready"
	EventMakeMove       = "make-move"
	EventRequestRematch = "request-rematch"
)

// Outbound event names (server → room participants).
const (
	EventRoomCreated        = "room-created"
	EventRoomJoined         = "room-joined"
	EventPlayerJoined       = "player-joined"
	EventPlayerReadyUpdate  = "player-ready-update"
	EventGameStart          = "game-start"
	EventRematchStarted     = "rematch-started"
	EventMoveMade           = "move-made"
	EventGameOver           = "game-over"
	EventPlayerDisconnected = "player-disconnected"
	EventPlayerReconnected  = "player-reconnected"
	EventPlayerLeft         = "player-left"
	EventError              = "error"
)

// Envelope frames every message on the wire: an event name plus a
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CreateRoomPayload seats the sender as red in a fresh room.
type CreateRoomPayload struct {
	Pseudo string `json:"pseudo"`
	UserID int64  `json:"userId"`
}

// JoinRoomPayload seats the sender as yellow, or reconnects a known userId.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	Pseudo string `json:"pseudo"`
	UserID int64  `json:"userId"`
}

// RoomRefPayload addresses an existing room (player-ready, request-rematch).
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

// MovePayload is a validated move attempt.
type MovePayload struct {
	RoomID string `json:"roomId"`
	Column int    `json:"column"`
}

// ErrorPayload carries the human-readable text of a rejected intent.
type ErrorPayload struct {
	Message string `json:"message"`
}
