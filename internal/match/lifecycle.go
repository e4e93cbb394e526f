package match

import (
	"github.com/Ikram11215/puissance4game/internal/board"
	"github.com/Ikram11215/puissance4game/pkg/wire"
)

// step applies one intent to the room and returns the events to publish
// plus the durable effects the registry must apply before publishing.
// It is a pure state transition: no I/O, no locking, no logging.
//
// Disconnect policy: a drop while Waiting or Paused removes the seat
// (room evicted once empty); a drop while Playing ends the match by
// abandonment in favor of the remaining seat.
func step(r *Room, in Intent) ([]Event, []effect) {
	switch in.Kind {
	case IntentJoin:
		return stepJoin(r, in)
	case IntentReady:
		return stepReady(r, in)
	case IntentMove:
		return stepMove(r, in)
	case IntentRematch:
		return stepRematch(r, in)
	case IntentDisconnect:
		return stepDisconnect(r, in)
	default:
		return nil, nil
	}
}

func stepJoin(r *Room, in Intent) ([]Event, []effect) {
	// same connection re-sent join: just resync
	if seat := r.seatByConn(in.ConnID); seat != nil {
		return []Event{roomEvent(wire.EventRoomJoined, in.ConnID, r)}, nil
	}

	// known userId: reconnection, regardless of connection id
	if seat := r.seatByUser(in.UserID); seat != nil {
		seat.ConnID = in.ConnID
		seat.Disconnected = false
		if r.State.Status == StatusPaused && r.allConnected() {
			r.State.Status = StatusPlaying
			// room-joined first: it re-admits the returning connection
			// before the resume broadcast goes out
			return []Event{
				roomEvent(wire.EventRoomJoined, in.ConnID, r),
				roomEvent(wire.EventPlayerReconnected, "", r),
			}, nil
		}
		return []Event{roomEvent(wire.EventRoomJoined, in.ConnID, r)}, nil
	}

	if len(r.Players) >= 2 {
		return []Event{reject(in.ConnID, ErrRoomFull)}, nil
	}
	if r.State.Status != StatusWaiting {
		return []Event{reject(in.ConnID, ErrAlreadyStarted)}, nil
	}

	// second joiner is always yellow
	r.Players = append(r.Players, &PlayerSlot{
		ConnID: in.ConnID,
		Pseudo: in.Pseudo,
		Color:  board.Yellow,
		UserID: in.UserID,
	})
	events := []Event{
		roomEvent(wire.EventRoomJoined, in.ConnID, r),
		roomEvent(wire.EventPlayerJoined, "", r),
	}
	return events, []effect{{kind: effectSetYellow, yellowID: in.UserID}}
}

func stepReady(r *Room, in Intent) ([]Event, []effect) {
	seat := r.seatByConn(in.ConnID)
	if seat == nil || r.State.Status != StatusWaiting {
		return nil, nil
	}
	seat.Ready = true

	if len(r.Players) == 2 && r.allReady() {
		r.State.Grid = board.NewGrid()
		r.State.Turn = board.Red
		r.State.Winner = board.VerdictNone
		r.State.Status = StatusPlaying
		// consume the flags so a later rematch needs both signals again
		for _, p := range r.Players {
			p.Ready = false
		}
		return []Event{roomEvent(wire.EventGameStart, "", r)}, []effect{{kind: effectStartGame}}
	}
	return []Event{roomEvent(wire.EventPlayerReadyUpdate, "", r)}, nil
}

func stepMove(r *Room, in Intent) ([]Event, []effect) {
	if r.State.Status != StatusPlaying {
		return []Event{reject(in.ConnID, ErrNotPlaying)}, nil
	}
	if !r.allConnected() {
		return []Event{reject(in.ConnID, ErrDisconnectedOpponent)}, nil
	}
	seat := r.seatByConn(in.ConnID)
	if seat == nil || seat.Color != r.State.Turn {
		return []Event{reject(in.ConnID, ErrNotYourTurn)}, nil
	}

	grid, row, err := r.State.Grid.Drop(in.Column, seat.Color)
	if err != nil {
		return []Event{reject(in.ConnID, err)}, nil
	}
	r.State.Grid = grid

	verdict := grid.Outcome(row, in.Column)
	if verdict == board.VerdictNone {
		r.State.Turn = board.Opponent(r.State.Turn)
		snap := r.Snapshot()
		return []Event{{
			Name:    wire.EventMoveMade,
			Payload: MoveMadePayload{Room: snap, Column: in.Column, Row: row},
		}}, nil
	}

	r.State.Winner = verdict
	r.State.Status = StatusFinished
	snap := r.Snapshot()
	events := []Event{{
		Name:    wire.EventGameOver,
		Payload: GameOverPayload{Room: snap, Winner: verdict},
	}}
	return events, []effect{{kind: effectFinishGame, winner: verdict}}
}

func stepRematch(r *Room, in Intent) ([]Event, []effect) {
	seat := r.seatByConn(in.ConnID)
	if seat == nil || r.State.Status != StatusFinished || len(r.Players) != 2 {
		return nil, nil
	}
	seat.Ready = true

	if !r.allReady() {
		return []Event{roomEvent(wire.EventPlayerReadyUpdate, "", r)}, nil
	}

	// both seats re-signaled: fresh board, red starts again
	r.State.Grid = board.NewGrid()
	r.State.Turn = board.Red
	r.State.Winner = board.VerdictNone
	r.State.Status = StatusPlaying
	for _, p := range r.Players {
		p.Ready = false
	}
	return []Event{roomEvent(wire.EventRematchStarted, "", r)}, []effect{{kind: effectRestartGame}}
}

func stepDisconnect(r *Room, in Intent) ([]Event, []effect) {
	seat := r.seatByConn(in.ConnID)
	if seat == nil {
		return nil, nil
	}

	switch r.State.Status {
	case StatusPlaying:
		// abandonment: the remaining seat wins
		seat.ConnID = ""
		seat.Disconnected = true
		winner := board.Opponent(seat.Color)
		r.State.Winner = board.Verdict(winner)
		r.State.Status = StatusFinished
		snap := r.Snapshot()
		events := []Event{{
			Name:    wire.EventGameOver,
			Payload: GameOverPayload{Room: snap, Winner: board.Verdict(winner), Reason: "abandon"},
		}}
		return events, []effect{{kind: effectFinishGame, winner: board.Verdict(winner), abandon: true}}

	case StatusWaiting, StatusPaused:
		r.removeSeat(seat)
		if len(r.Players) == 0 {
			// registry evicts the empty room after this step
			return nil, nil
		}
		return []Event{roomEvent(wire.EventPlayerLeft, "", r)}, nil

	default:
		// finished room: keep the seat so a rematch stays possible
		seat.ConnID = ""
		seat.Disconnected = true
		seat.Ready = false
		return []Event{roomEvent(wire.EventPlayerDisconnected, "", r)}, nil
	}
}

func roomEvent(name, to string, r *Room) Event {
	return Event{Name: name, To: to, Payload: RoomPayload{Room: r.Snapshot()}}
}

func reject(connID string, err error) Event {
	return Event{Name: wire.EventError, To: connID, Payload: Rejection{Err: err}}
}
