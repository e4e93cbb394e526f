package presence

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := New(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("presence.New: %v", err)
	}
	return s
}

func TestSetAndClearRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetRoom(ctx, "room-1", []int64{10, 20}); err != nil {
		t.Fatalf("SetRoom: %v", err)
	}

	rooms, err := s.RoomsByUser(ctx, 10)
	if err != nil || len(rooms) != 1 || rooms[0] != "room-1" {
		t.Fatalf("RoomsByUser(10) = %v, %v", rooms, err)
	}
	if n, _ := s.ActiveRooms(ctx); n != 1 {
		t.Fatalf("ActiveRooms = %d, want 1", n)
	}

	if err := s.Clear(ctx, "room-1", []int64{10, 20}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	rooms, _ = s.RoomsByUser(ctx, 10)
	if len(rooms) != 0 {
		t.Fatalf("index not cleared: %v", rooms)
	}
	if n, _ := s.ActiveRooms(ctx); n != 0 {
		t.Fatalf("active set not cleared: %d", n)
	}
}

func TestSetRoomIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.SetRoom(ctx, "room-2", []int64{7}); err != nil {
			t.Fatalf("SetRoom: %v", err)
		}
	}
	rooms, err := s.RoomsByUser(ctx, 7)
	if err != nil || len(rooms) != 1 {
		t.Fatalf("RoomsByUser = %v, %v", rooms, err)
	}
	if n, _ := s.ActiveRooms(ctx); n != 1 {
		t.Fatalf("ActiveRooms = %d, want 1", n)
	}
}

func TestUserInTwoRooms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.SetRoom(ctx, "room-a", []int64{5})
	_ = s.SetRoom(ctx, "room-b", []int64{5})
	rooms, err := s.RoomsByUser(ctx, 5)
	if err != nil || len(rooms) != 2 {
		t.Fatalf("RoomsByUser = %v, %v", rooms, err)
	}

	_ = s.Clear(ctx, "room-a", []int64{5})
	rooms, _ = s.RoomsByUser(ctx, 5)
	if len(rooms) != 1 || rooms[0] != "room-b" {
		t.Fatalf("partial clear: %v", rooms)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("http://localhost:6379"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
