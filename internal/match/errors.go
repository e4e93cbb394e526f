package match

import (
	"errors"

	"github.com/Ikram11215/puissance4game/internal/board"
)

// Recoverable rejection taxonomy. Every entry is surfaced to the sender
// via the error event; none terminates the connection or the room.
var (
	ErrRoomNotFound         = errf("room not found")
	ErrRoomFull             = errf("room full")
	ErrAlreadyStarted       = errf("game already started")
	ErrNotPlaying           = errf("game not in progress")
	ErrNotYourTurn          = errf("not your turn")
	ErrDisconnectedOpponent = errf("opponent disconnected")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// ErrorCode maps a taxonomy error to its stable message-catalog key.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room-not-found"
	case errors.Is(err, ErrRoomFull):
		return "room-full"
	case errors.Is(err, ErrAlreadyStarted):
		return "already-started"
	case errors.Is(err, ErrNotPlaying):
		return "not-playing"
	case errors.Is(err, ErrNotYourTurn):
		return "not-your-turn"
	case errors.Is(err, ErrDisconnectedOpponent):
		return "disconnected-opponent"
	case errors.Is(err, board.ErrInvalidColumn):
		return "invalid-column"
	case errors.Is(err, board.ErrColumnFull):
		return "column-full"
	default:
		return "internal"
	}
}
