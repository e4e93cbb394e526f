package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Ikram11215/puissance4game/internal/board"
	"github.com/Ikram11215/puissance4game/pkg/wire"
)

type fakeStore struct {
	mu    sync.Mutex
	ops   []string
	games map[string]*PersistedGame
}

func newFakeStore() *fakeStore {
	return &fakeStore{games: make(map[string]*PersistedGame)}
}

func (s *fakeStore) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *fakeStore) opList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func (s *fakeStore) CreateGame(_ context.Context, roomID string, redID int64) error {
	s.record("create")
	s.mu.Lock()
	s.games[roomID] = &PersistedGame{
		RoomID: roomID, RedPlayerID: redID, Status: StatusWaiting, CreatedAt: time.Now(),
	}
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) SetYellowPlayer(_ context.Context, roomID string, userID int64) error {
	s.record("set_yellow")
	s.mu.Lock()
	if g, ok := s.games[roomID]; ok {
		id := userID
		g.YellowPlayerID = &id
	}
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) MarkPlaying(_ context.Context, roomID string) error {
	s.record("start")
	s.mu.Lock()
	if g, ok := s.games[roomID]; ok {
		g.Status = StatusPlaying
	}
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ApplyResult(_ context.Context, roomID string, winner board.Verdict) error {
	s.record("finish")
	s.mu.Lock()
	if g, ok := s.games[roomID]; ok {
		g.Status = StatusFinished
		g.Winner = winner
	}
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) RestartGame(_ context.Context, roomID string) error {
	s.record("restart")
	return nil
}

func (s *fakeStore) GetGame(_ context.Context, roomID string) (*PersistedGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[roomID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{notify: make(chan struct{}, 128)}
}

func (p *fakePublisher) Publish(_ string, ev Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	p.notify <- struct{}{}
}

// waitFor blocks until an event with the given name has been published.
func (p *fakePublisher) waitFor(t *testing.T, name string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		p.mu.Lock()
		for _, ev := range p.events {
			if ev.Name == name {
				p.mu.Unlock()
				return ev
			}
		}
		p.mu.Unlock()
		select {
		case <-p.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %s; got %v", name, p.names())
		}
	}
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Name
	}
	return out
}

func waitEvicted(t *testing.T, reg *Registry, roomID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !reg.Resident(roomID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s still resident", roomID)
}

func TestRegistryFullMatchFlow(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	reg := NewRegistry(store, pub)
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx, "conn-red", 1, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if !reg.Resident(room.ID) {
		t.Fatalf("created room not resident")
	}

	mustDispatch := func(in Intent) {
		t.Helper()
		if err := reg.Dispatch(ctx, room.ID, in); err != nil {
			t.Fatalf("Dispatch %v: %v", in.Kind, err)
		}
	}

	mustDispatch(Intent{Kind: IntentJoin, ConnID: "conn-yellow", UserID: 2, Pseudo: "bob"})
	pub.waitFor(t, wire.EventPlayerJoined)

	mustDispatch(Intent{Kind: IntentReady, ConnID: "conn-red"})
	mustDispatch(Intent{Kind: IntentReady, ConnID: "conn-yellow"})
	pub.waitFor(t, wire.EventGameStart)

	mustDispatch(Intent{Kind: IntentMove, ConnID: "conn-red", Column: 3})
	ev := pub.waitFor(t, wire.EventMoveMade)
	mp, ok := ev.Payload.(MoveMadePayload)
	if !ok || mp.Column != 3 {
		t.Fatalf("move payload: %+v", ev.Payload)
	}

	ops := store.opList()
	want := []string{"create", "set_yellow", "start"}
	if len(ops) < len(want) {
		t.Fatalf("store ops = %v", ops)
	}
	for i, op := range want {
		if ops[i] != op {
			t.Fatalf("store ops = %v, want prefix %v", ops, want)
		}
	}
}

func TestRegistryAbandonmentPersistsResult(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	reg := NewRegistry(store, pub)
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx, "conn-red", 1, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, in := range []Intent{
		{Kind: IntentJoin, ConnID: "conn-yellow", UserID: 2, Pseudo: "bob"},
		{Kind: IntentReady, ConnID: "conn-red"},
		{Kind: IntentReady, ConnID: "conn-yellow"},
		{Kind: IntentDisconnect, ConnID: "conn-yellow"},
	} {
		if err := reg.Dispatch(ctx, room.ID, in); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	ev := pub.waitFor(t, wire.EventGameOver)
	p := ev.Payload.(GameOverPayload)
	if p.Winner != board.VerdictRed || p.Reason != "abandon" {
		t.Fatalf("game over payload: %+v", p)
	}

	store.mu.Lock()
	g := store.games[room.ID]
	store.mu.Unlock()
	if g.Status != StatusFinished || g.Winner != board.VerdictRed {
		t.Fatalf("result not persisted: %+v", g)
	}
}

func TestRegistryEvictsEmptyRoom(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	reg := NewRegistry(store, pub)
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx, "conn-red", 1, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := reg.Dispatch(ctx, room.ID, Intent{Kind: IntentDisconnect, ConnID: "conn-red"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	waitEvicted(t, reg, room.ID)

	// the durable record still exists, so the room rehydrates on demand
	if err := reg.Dispatch(ctx, room.ID, Intent{Kind: IntentJoin, ConnID: "conn-red-2", UserID: 1, Pseudo: "alice"}); err != nil {
		t.Fatalf("Dispatch after evict: %v", err)
	}
	pub.waitFor(t, wire.EventRoomJoined)
}

func TestRegistryDispatchUnknownRoom(t *testing.T) {
	reg := NewRegistry(newFakeStore(), newFakePublisher())
	err := reg.Dispatch(context.Background(), "no-such-room", Intent{Kind: IntentJoin, ConnID: "c", UserID: 9})
	if err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestRegistryRehydratesInterruptedGameAsPaused(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	reg := NewRegistry(store, pub)
	ctx := context.Background()

	yellow := int64(2)
	store.games["room-old"] = &PersistedGame{
		RoomID:         "room-old",
		RedPlayerID:    1,
		RedPseudo:      "alice",
		YellowPlayerID: &yellow,
		YellowPseudo:   "bob",
		Status:         StatusPlaying,
		CreatedAt:      time.Now().Add(-time.Hour),
	}

	// red reconnects first; the game stays paused for the missing seat
	if err := reg.Dispatch(ctx, "room-old", Intent{Kind: IntentJoin, ConnID: "conn-red-2", UserID: 1, Pseudo: "alice"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	ev := pub.waitFor(t, wire.EventRoomJoined)
	rp := ev.Payload.(RoomPayload)
	if rp.Room.State.Status != StatusPaused {
		t.Fatalf("status after first reconnect = %s, want paused", rp.Room.State.Status)
	}
	if rp.Room.State.Grid != board.NewGrid() {
		t.Fatalf("rehydrated room must start from an empty board")
	}

	// second reconnect resumes play
	if err := reg.Dispatch(ctx, "room-old", Intent{Kind: IntentJoin, ConnID: "conn-yellow-2", UserID: 2, Pseudo: "bob"}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	ev = pub.waitFor(t, wire.EventPlayerReconnected)
	rp = ev.Payload.(RoomPayload)
	if rp.Room.State.Status != StatusPlaying {
		t.Fatalf("status after both reconnect = %s, want playing", rp.Room.State.Status)
	}
}

func TestRegistryFinishedRoomEvictsAfterTTL(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	reg := NewRegistry(store, pub, WithFinishedTTL(30*time.Millisecond))
	ctx := context.Background()

	room, err := reg.CreateRoom(ctx, "conn-red", 1, "alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	for _, in := range []Intent{
		{Kind: IntentJoin, ConnID: "conn-yellow", UserID: 2, Pseudo: "bob"},
		{Kind: IntentReady, ConnID: "conn-red"},
		{Kind: IntentReady, ConnID: "conn-yellow"},
		{Kind: IntentDisconnect, ConnID: "conn-yellow"},
	} {
		if err := reg.Dispatch(ctx, room.ID, in); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	pub.waitFor(t, wire.EventGameOver)
	waitEvicted(t, reg, room.ID)
}
