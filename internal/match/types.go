package match

import (
	"time"

	"github.com/Ikram11215/puissance4game/internal/board"
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// PlayerSlot is one occupied seat. Identity across reconnects is UserID;
// ConnID is ephemeral and empty while the player is disconnected.
type PlayerSlot struct {
	ConnID       string      `json:"id"`
	Pseudo       string      `json:"pseudo"`
	Color        board.Color `json:"color"`
	Ready        bool        `json:"isReady"`
	Disconnected bool        `json:"disconnected,omitempty"`
	UserID       int64       `json:"userId"`
}

// MatchState is the board plus turn bookkeeping.
type MatchState struct {
	Grid   board.Grid    `json:"grid"`
	Turn   board.Color   `json:"currentPlayer"`
	Winner board.Verdict `json:"winner,omitempty"`
	Status Status        `json:"status"`
}

// Room is one match's full live state. It is owned by the registry and only
// ever mutated from its dedicated worker goroutine.
type Room struct {
	ID        string        `json:"id"`
	Players   []*PlayerSlot `json:"players"`
	State     MatchState    `json:"board"`
	CreatedAt time.Time     `json:"createdAt"`
}

func newRoom(id string) *Room {
	return &Room{
		ID: id,
		State: MatchState{
			Grid:   board.NewGrid(),
			Turn:   board.Red,
			Status: StatusWaiting,
		},
		CreatedAt: time.Now(),
	}
}

// Snapshot deep-copies the room for broadcast; outgoing events must not
// alias state the worker keeps mutating.
func (r *Room) Snapshot() *Room {
	cp := *r
	cp.Players = make([]*PlayerSlot, len(r.Players))
	for i, p := range r.Players {
		slot := *p
		cp.Players[i] = &slot
	}
	return &cp
}

func (r *Room) seatByConn(connID string) *PlayerSlot {
	for _, p := range r.Players {
		if p.ConnID != "" && p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) seatByUser(userID int64) *PlayerSlot {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Room) allConnected() bool {
	for _, p := range r.Players {
		if p.Disconnected {
			return false
		}
	}
	return true
}

func (r *Room) allReady() bool {
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func (r *Room) removeSeat(slot *PlayerSlot) {
	for i, p := range r.Players {
		if p == slot {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return
		}
	}
}

// IntentKind tags a participant-originated request.
type IntentKind int

const (
	IntentJoin IntentKind = iota
	IntentReady
	IntentMove
	IntentRematch
	IntentDisconnect
)

// Intent is one queued request against a room. Intents are applied in
// strict arrival order by the room worker.
type Intent struct {
	Kind   IntentKind
	ConnID string
	UserID int64
	Pseudo string
	Column int
}

// Event is an outgoing notification. To addresses a single connection;
// empty To means broadcast to the whole room group.
type Event struct {
	Name    string
	To      string
	Payload any
}

// Rejection wraps a taxonomy error for the error event; the gateway
// renders it to user-facing text.
type Rejection struct {
	Err error
}

// RoomPayload backs most outgoing events.
type RoomPayload struct {
	RoomID string `json:"roomId,omitempty"`
	Room   *Room  `json:"room"`
}

// MoveMadePayload backs move-made.
type MoveMadePayload struct {
	Room   *Room `json:"room"`
	Column int   `json:"column"`
	Row    int   `json:"row"`
}

// GameOverPayload backs game-over; Reason is "abandon" when a seated
// player dropped mid-game.
type GameOverPayload struct {
	Room   *Room         `json:"room"`
	Winner board.Verdict `json:"winner"`
	Reason string        `json:"reason,omitempty"`
}

// effectKind enumerates durable side effects a step asks the registry to
// apply before its events are broadcast.
type effectKind int

const (
	effectSetYellow effectKind = iota
	effectStartGame
	effectFinishGame
	effectRestartGame
)

type effect struct {
	kind     effectKind
	yellowID int64
	winner   board.Verdict
	abandon  bool
}
