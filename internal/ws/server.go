package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/Ikram11215/puissance4game/internal/match"
	"github.com/Ikram11215/puissance4game/internal/obslog"
	"github.com/Ikram11215/puissance4game/pkg/wire"
)

const writeTimeout = 5 * time.Second

// Coordinator is the room-registry contract the gateway drives.
type Coordinator interface {
	CreateRoom(ctx context.Context, connID string, userID int64, pseudo string) (*match.Room, error)
	Dispatch(ctx context.Context, roomID string, in match.Intent) error
}

// Server accepts websocket connections and translates wire envelopes into
// room intents.
type Server struct {
	hub    *Hub
	reg    Coordinator
	origin string
}

func NewServer(hub *Hub, reg Coordinator, allowedOrigin string) *Server {
	return &Server{hub: hub, reg: reg, origin: allowedOrigin}
}

// HandleHealth answers liveness probes on the socket listener, which is
// the port deployment platforms point PORT at.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleWS upgrades the request and runs the connection until it drops.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if s.origin != "" {
		opts.OriginPatterns = []string{s.origin}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	c := s.hub.register(connID, conn)
	obslog.L().Info("ws_connect", zap.String("conn_id", connID))

	go s.writeLoop(c)
	s.readLoop(r.Context(), connID, conn)

	roomID := s.hub.unregister(connID)
	if roomID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := s.reg.Dispatch(ctx, roomID, match.Intent{Kind: match.IntentDisconnect, ConnID: connID}); err != nil {
			obslog.L().Warn("disconnect_dispatch_error",
				zap.String("room_id", roomID), zap.Error(err))
		}
		cancel()
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	obslog.L().Info("ws_disconnect", zap.String("conn_id", connID), zap.String("room_id", roomID))
}

func (s *Server) writeLoop(c *client) {
	for frame := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			return
		}
	}
}

func (s *Server) readLoop(ctx context.Context, connID string, conn *websocket.Conn) {
	for {
		var env wire.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		s.route(ctx, connID, env)
	}
}

func (s *Server) route(ctx context.Context, connID string, env wire.Envelope) {
	switch env.Event {
	case wire.EventCreateRoom:
		var p wire.CreateRoomPayload
		if !s.decode(connID, env.Data, &p) {
			return
		}
		room, err := s.reg.CreateRoom(ctx, connID, p.UserID, p.Pseudo)
		if err != nil {
			s.hub.sendError(connID, err)
			return
		}
		s.hub.Publish(room.ID, match.Event{
			Name:    wire.EventRoomCreated,
			To:      connID,
			Payload: match.RoomPayload{RoomID: room.ID, Room: room},
		})

	case wire.EventJoinRoom:
		var p wire.JoinRoomPayload
		if !s.decode(connID, env.Data, &p) {
			return
		}
		// the hub admits us to the broadcast group only once the room
		// answers with room-joined; a rejected join never enters it
		err := s.reg.Dispatch(ctx, p.RoomID, match.Intent{
			Kind:   match.IntentJoin,
			ConnID: connID,
			UserID: p.UserID,
			Pseudo: p.Pseudo,
		})
		if err != nil {
			s.hub.sendError(connID, err)
		}

	case wire.EventPlayerReady:
		var p wire.RoomRefPayload
		if !s.decode(connID, env.Data, &p) {
			return
		}
		s.dispatch(ctx, connID, p.RoomID, match.Intent{Kind: match.IntentReady, ConnID: connID})

	case wire.EventMakeMove:
		var p wire.MovePayload
		if !s.decode(connID, env.Data, &p) {
			return
		}
		s.dispatch(ctx, connID, p.RoomID, match.Intent{
			Kind:   match.IntentMove,
			ConnID: connID,
			Column: p.Column,
		})

	case wire.EventRequestRematch:
		var p wire.RoomRefPayload
		if !s.decode(connID, env.Data, &p) {
			return
		}
		s.dispatch(ctx, connID, p.RoomID, match.Intent{Kind: match.IntentRematch, ConnID: connID})

	default:
		obslog.L().Warn("ws_unknown_event",
			zap.String("conn_id", connID), zap.String("event", env.Event))
	}
}

// dispatch resolves a missing room id from the connection's joined room
// before queueing the intent.
func (s *Server) dispatch(ctx context.Context, connID, roomID string, in match.Intent) {
	if roomID == "" {
		roomID = s.hub.roomOf(connID)
	}
	if roomID == "" {
		s.hub.sendError(connID, match.ErrRoomNotFound)
		return
	}
	if err := s.reg.Dispatch(ctx, roomID, in); err != nil {
		s.hub.sendError(connID, err)
	}
}

func (s *Server) decode(connID string, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		obslog.L().Warn("ws_bad_payload", zap.String("conn_id", connID), zap.Error(err))
		s.hub.sendError(connID, err)
		return false
	}
	return true
}
