package presence

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlRoom = 24 * time.Hour

// Store mirrors live seat occupancy into Redis: a per-user set of room ids
// plus a global set of active rooms. It is a lookup aid (lost roomId
// recovery, health counters), not the durable record.
type Store struct {
	rdb *redis.Client
}

// New connects from a redis:// URL and pings before returning.
func New(redisURL string) (*Store, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient wraps an existing client (tests).
func NewWithClient(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func keyUserIdx(userID int64) string { return "room:index:user:" + strconv.FormatInt(userID, 10) }
func keyActive() string              { return "room:active" }

// SetRoom indexes the room for every seated user and marks it active.
func (s *Store) SetRoom(ctx context.Context, roomID string, userIDs []int64) error {
	if strings.TrimSpace(roomID) == "" {
		return nil
	}
	if err := s.rdb.SAdd(ctx, keyActive(), roomID).Err(); err != nil {
		return err
	}
	for _, id := range userIDs {
		key := keyUserIdx(id)
		if err := s.rdb.SAdd(ctx, key, roomID).Err(); err != nil {
			return err
		}
		// keep the index from accumulating forever
		_ = s.rdb.Expire(ctx, key, ttlRoom).Err()
	}
	return nil
}

// Clear drops the room from the given users' indexes; the room leaves the
// active set once no seated users remain known to the caller.
func (s *Store) Clear(ctx context.Context, roomID string, userIDs []int64) error {
	if strings.TrimSpace(roomID) == "" {
		return nil
	}
	for _, id := range userIDs {
		if err := s.rdb.SRem(ctx, keyUserIdx(id), roomID).Err(); err != nil {
			return err
		}
	}
	return s.rdb.SRem(ctx, keyActive(), roomID).Err()
}

// RoomsByUser returns the room ids currently indexed for the user.
func (s *Store) RoomsByUser(ctx context.Context, userID int64) ([]string, error) {
	return s.rdb.SMembers(ctx, keyUserIdx(userID)).Result()
}

// ActiveRooms counts rooms currently resident somewhere in the cluster.
func (s *Store) ActiveRooms(ctx context.Context) (int64, error) {
	return s.rdb.SCard(ctx, keyActive()).Result()
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
