package match

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ikram11215/puissance4game/internal/board"
	"github.com/Ikram11215/puissance4game/internal/obslog"
)

// Store is the durable-record contract the registry depends on. Writes are
// awaited before the triggering event is broadcast; failures are logged and
// the in-memory room is not rolled back.
type Store interface {
	CreateGame(ctx context.Context, roomID string, redPlayerID int64) error
	SetYellowPlayer(ctx context.Context, roomID string, userID int64) error
	MarkPlaying(ctx context.Context, roomID string) error
	ApplyResult(ctx context.Context, roomID string, winner board.Verdict) error
	RestartGame(ctx context.Context, roomID string) error
	GetGame(ctx context.Context, roomID string) (*PersistedGame, error)
}

// PersistedGame is the durable projection of a room, re-derivable into a
// fresh in-memory Room after a restart.
type PersistedGame struct {
	RoomID         string
	RedPlayerID    int64
	RedPseudo      string
	YellowPlayerID *int64
	YellowPseudo   string
	Status         Status
	Winner         board.Verdict
	CreatedAt      time.Time
}

// Publisher delivers outgoing events; ev.To selects a single connection,
// empty To fans out to the room's broadcast group.
type Publisher interface {
	Publish(roomID string, ev Event)
}

// Presence mirrors seat occupancy into a fast lookup index. Optional.
type Presence interface {
	SetRoom(ctx context.Context, roomID string, userIDs []int64) error
	Clear(ctx context.Context, roomID string, userIDs []int64) error
}

const persistTimeout = 5 * time.Second

// Registry is the process-wide directory of live rooms. Each room owns a
// worker goroutine fed by a bounded intent channel, so intents for one room
// apply in strict arrival order while unrelated rooms proceed in parallel.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomHandle

	store    Store
	pub      Publisher
	presence Presence

	queueSize   int
	finishedTTL time.Duration
}

type roomHandle struct {
	room    *Room
	intents chan Intent
	done    chan struct{}

	evictTimer *time.Timer
}

// Option tweaks registry construction.
type Option func(*Registry)

// WithQueueSize bounds each room's intent channel.
func WithQueueSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithFinishedTTL sets how long a finished room stays resident before
// eviction (its durable record remains).
func WithFinishedTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.finishedTTL = d
		}
	}
}

// WithPresence attaches a live-room index.
func WithPresence(p Presence) Option {
	return func(r *Registry) { r.presence = p }
}

func NewRegistry(store Store, pub Publisher, opts ...Option) *Registry {
	r := &Registry{
		rooms:       make(map[string]*roomHandle),
		store:       store,
		pub:         pub,
		queueSize:   64,
		finishedTTL: 30 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// CreateRoom allocates a fresh room, seats the creator as red and persists
// the shell record. The caller announces room-created after joining the
// connection to the room's broadcast group.
func (reg *Registry) CreateRoom(ctx context.Context, connID string, userID int64, pseudo string) (*Room, error) {
	room := newRoom(uuid.NewString())
	room.Players = append(room.Players, &PlayerSlot{
		ConnID: connID,
		Pseudo: pseudo,
		Color:  board.Red,
		UserID: userID,
	})

	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := reg.store.CreateGame(pctx, room.ID, userID); err != nil {
		// availability over consistency: the room still opens
		obslog.L().Error("persist_error",
			zap.String("room_id", room.ID), zap.String("op", "create"), zap.Error(err))
	}

	h := reg.newHandle(room)
	reg.mu.Lock()
	reg.rooms[room.ID] = h
	reg.mu.Unlock()
	go reg.runRoom(h)

	reg.syncPresence(room.ID, []int64{userID}, nil)
	obslog.L().Info("room_create",
		zap.String("room_id", room.ID), zap.Int64("user_id", userID))
	return room.Snapshot(), nil
}

// Dispatch queues an intent for the room, rehydrating it from the durable
// record when it is not resident. Enqueueing blocks only the sending
// connection when the room's queue is full.
func (reg *Registry) Dispatch(ctx context.Context, roomID string, in Intent) error {
	h, err := reg.resolve(ctx, roomID)
	if err != nil {
		return err
	}
	select {
	case h.intents <- in:
		return nil
	case <-h.done:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resident reports whether the room is currently held in memory.
func (reg *Registry) Resident(roomID string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.rooms[roomID]
	return ok
}

func (reg *Registry) newHandle(room *Room) *roomHandle {
	return &roomHandle{
		room:    room,
		intents: make(chan Intent, reg.queueSize),
		done:    make(chan struct{}),
	}
}

func (reg *Registry) resolve(ctx context.Context, roomID string) (*roomHandle, error) {
	reg.mu.RLock()
	h, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if ok {
		return h, nil
	}

	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	pg, err := reg.store.GetGame(pctx, roomID)
	if err != nil {
		obslog.L().Error("rehydrate_error", zap.String("room_id", roomID), zap.Error(err))
		return nil, ErrRoomNotFound
	}
	if pg == nil {
		return nil, ErrRoomNotFound
	}

	room := rehydrate(pg)
	h = reg.newHandle(room)

	reg.mu.Lock()
	if existing, ok := reg.rooms[roomID]; ok {
		// lost the rehydration race
		reg.mu.Unlock()
		return existing, nil
	}
	reg.rooms[roomID] = h
	reg.mu.Unlock()
	go reg.runRoom(h)

	obslog.L().Info("room_rehydrate",
		zap.String("room_id", roomID), zap.String("status", string(room.State.Status)))
	return h, nil
}

// rehydrate rebuilds an in-memory room from the durable record: empty board
// (move history is not retained), playing coerced to paused, seats marked
// disconnected when play was interrupted.
func rehydrate(pg *PersistedGame) *Room {
	room := newRoom(pg.RoomID)
	room.CreatedAt = pg.CreatedAt

	interrupted := pg.Status == StatusPlaying || pg.Status == StatusPaused
	room.Players = append(room.Players, &PlayerSlot{
		Pseudo:       pg.RedPseudo,
		Color:        board.Red,
		UserID:       pg.RedPlayerID,
		Disconnected: interrupted,
	})
	if pg.YellowPlayerID != nil {
		room.Players = append(room.Players, &PlayerSlot{
			Pseudo:       pg.YellowPseudo,
			Color:        board.Yellow,
			UserID:       *pg.YellowPlayerID,
			Disconnected: interrupted,
		})
	}

	switch pg.Status {
	case StatusPlaying, StatusPaused:
		room.State.Status = StatusPaused
	default:
		room.State.Status = pg.Status
	}
	room.State.Winner = pg.Winner
	return room
}

func (reg *Registry) runRoom(h *roomHandle) {
	for {
		select {
		case <-h.done:
			return
		case in := <-h.intents:
			reg.stepRoom(h, in)
		}
	}
}

func (reg *Registry) stepRoom(h *roomHandle, in Intent) {
	before := userIDs(h.room)
	events, effects := step(h.room, in)
	for _, ef := range effects {
		reg.applyEffect(h.room, ef)
	}
	for _, ev := range events {
		reg.pub.Publish(h.room.ID, ev)
	}
	reg.syncPresence(h.room.ID, userIDs(h.room), before)
	reg.postStep(h)
}

func (reg *Registry) applyEffect(room *Room, ef effect) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	var op string
	switch ef.kind {
	case effectSetYellow:
		op = "set_yellow"
		err = reg.store.SetYellowPlayer(ctx, room.ID, ef.yellowID)
	case effectStartGame:
		op = "start"
		err = reg.store.MarkPlaying(ctx, room.ID)
	case effectFinishGame:
		op = "finish"
		err = reg.store.ApplyResult(ctx, room.ID, ef.winner)
		obslog.L().Info("match_finish",
			zap.String("room_id", room.ID),
			zap.String("winner", string(ef.winner)),
			zap.Bool("abandon", ef.abandon))
	case effectRestartGame:
		op = "rematch"
		err = reg.store.RestartGame(ctx, room.ID)
	}
	if err != nil {
		// in-memory state is not rolled back; memory may outrun storage
		obslog.L().Error("persist_error",
			zap.String("room_id", room.ID), zap.String("op", op), zap.Error(err))
	}
}

func (reg *Registry) postStep(h *roomHandle) {
	st := h.room.State.Status

	if len(h.room.Players) == 0 && (st == StatusWaiting || st == StatusPaused) {
		reg.evict(h.room.ID)
		return
	}

	if st == StatusFinished {
		if h.evictTimer == nil {
			id := h.room.ID
			h.evictTimer = time.AfterFunc(reg.finishedTTL, func() { reg.evict(id) })
		}
	} else if h.evictTimer != nil {
		// rematch revived the room
		h.evictTimer.Stop()
		h.evictTimer = nil
	}
}

func (reg *Registry) evict(roomID string) {
	reg.mu.Lock()
	h, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()
	if !ok {
		return
	}
	if h.evictTimer != nil {
		h.evictTimer.Stop()
	}
	close(h.done)
	reg.syncPresence(roomID, nil, userIDs(h.room))
	obslog.L().Info("room_evict", zap.String("room_id", roomID))
}

// syncPresence reconciles the live-room index with the current seat set.
func (reg *Registry) syncPresence(roomID string, current, previous []int64) {
	if reg.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var gone []int64
	for _, id := range previous {
		if !containsID(current, id) {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		if err := reg.presence.Clear(ctx, roomID, gone); err != nil {
			obslog.L().Warn("presence_error", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	if len(current) > 0 {
		if err := reg.presence.SetRoom(ctx, roomID, current); err != nil {
			obslog.L().Warn("presence_error", zap.String("room_id", roomID), zap.Error(err))
		}
	}
}

func userIDs(r *Room) []int64 {
	ids := make([]int64, 0, len(r.Players))
	for _, p := range r.Players {
		ids = append(ids, p.UserID)
	}
	return ids
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
