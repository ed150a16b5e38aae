package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
)

// RoomStore registers room codes in Redis so instances sharing the server never hand out
// the same code. Room state itself stays in the local map; Redis only holds the claim.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*app.Room
}

// NewRoomStore claims codes for ttl under an owner tag identifying this instance.
func NewRoomStore(client *redis.Client, ttl time.Duration, owner string, logger *slog.Logger) *RoomStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		owner:  owner,
		logger: logger,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Reserve(ctx context.Context, room *app.Room) (bool, error) {
	code := room.Code()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[code]; taken {
		return false, nil
	}

	claimed, err := s.client.SetNX(ctx, roomKey(code), s.owner, s.ttl).Result()
	if err != nil {
		// Redis is advisory: keep serving locally and rely on the map for uniqueness.
		s.logger.Warn("room code claim failed, using local registry", "code", code, "error", err)
		claimed = true
	}
	if !claimed {
		return false, nil
	}
	s.rooms[code] = room
	return true, nil
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(ctx context.Context, code string) {
	s.mu.Lock()
	delete(s.rooms, code)
	s.mu.Unlock()
	if err := s.client.Del(ctx, roomKey(code)).Err(); err != nil {
		s.logger.Warn("room code release failed", "code", code, "error", err)
	}
}

func (s *RoomStore) List() []*app.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func roomKey(code string) string {
	return "quiz:room:" + code
}
