package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/Ikram11215/puissance4game/internal/obslog"
	"github.com/Ikram11215/puissance4game/internal/store"
)

const queryTimeout = 5 * time.Second

// Reader is the read-only query surface backing the HTTP API.
type Reader interface {
	Leaderboard(ctx context.Context, limit int) ([]store.User, error)
	HistoryByUser(ctx context.Context, userID int64, limit int) ([]store.GameSummary, error)
}

// PresenceIndex answers live-room lookups. Optional; endpoints that need it
// return 503 when it is absent.
type PresenceIndex interface {
	RoomsByUser(ctx context.Context, userID int64) ([]string, error)
	ActiveRooms(ctx context.Context) (int64, error)
}

// Server exposes the read-only companion API next to the websocket gateway:
// leaderboard, per-user history, lost-room recovery and a health probe.
type Server struct {
	reader   Reader
	presence PresenceIndex
}

func NewServer(reader Reader, presence PresenceIndex) *Server {
	return &Server{reader: reader, presence: presence}
}

// Handler is the fasthttp entry point.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/health":
		s.handleHealth(ctx)
	case "/api/leaderboard":
		s.handleLeaderboard(ctx)
	case "/api/history":
		s.handleHistory(ctx)
	case "/api/room":
		s.handleRoom(ctx)
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	body := map[string]any{"status": "ok"}
	if s.presence != nil {
		qctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		if n, err := s.presence.ActiveRooms(qctx); err == nil {
			body["activeRooms"] = n
		}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, body)
}

func (s *Server) handleLeaderboard(ctx *fasthttp.RequestCtx) {
	limit := queryInt(ctx, "limit", 50)
	qctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	users, err := s.reader.Leaderboard(qctx, limit)
	if err != nil {
		obslog.L().Error("api_error", zap.String("route", "leaderboard"), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "query failed")
		return
	}
	if users == nil {
		users = []store.User{}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, users)
}

func (s *Server) handleHistory(ctx *fasthttp.RequestCtx) {
	userID, ok := queryUserID(ctx)
	if !ok {
		s.writeError(ctx, fasthttp.StatusBadRequest, "userId is required")
		return
	}
	limit := queryInt(ctx, "limit", 20)
	qctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	games, err := s.reader.HistoryByUser(qctx, userID, limit)
	if err != nil {
		obslog.L().Error("api_error", zap.String("route", "history"), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "query failed")
		return
	}
	if games == nil {
		games = []store.GameSummary{}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, games)
}

// handleRoom recovers the room ids a user is currently seated in, for
// clients that lost their roomId across a reload.
func (s *Server) handleRoom(ctx *fasthttp.RequestCtx) {
	if s.presence == nil {
		s.writeError(ctx, fasthttp.StatusServiceUnavailable, "room index unavailable")
		return
	}
	userID, ok := queryUserID(ctx)
	if !ok {
		s.writeError(ctx, fasthttp.StatusBadRequest, "userId is required")
		return
	}
	qctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rooms, err := s.presence.RoomsByUser(qctx, userID)
	if err != nil {
		obslog.L().Error("api_error", zap.String("route", "room"), zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "query failed")
		return
	}
	if rooms == nil {
		rooms = []string{}
	}
	s.writeJSON(ctx, fasthttp.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusInternalServerError, "encoding failed")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(body)
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	s.writeJSON(ctx, status, map[string]string{"error": msg})
}

func queryInt(ctx *fasthttp.RequestCtx, key string, def int) int {
	raw := string(ctx.QueryArgs().Peek(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func queryUserID(ctx *fasthttp.RequestCtx) (int64, bool) {
	raw := string(ctx.QueryArgs().Peek("userId"))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
