// internal/room/store.go
package room

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/parlorgames/trivia/internal/models"
)

// Store is the durable record of room state. All mutation call sites load,
// mutate entirely in memory, then save; a concurrent reader never observes a
// partial mutation.
type Store interface {
	// Create persists a brand-new room. ErrRoomExists on code collision.
	Create(ctx context.Context, r *models.Room) error
	// Load returns a private copy of the room. ErrRoomNotFound when the code
	// is absent or the room is inactive.
	Load(ctx context.Context, code string) (*models.Room, error)
	// Save persists the room iff its version still matches the loaded one,
	// then bumps the version. ErrVersionConflict otherwise.
	Save(ctx context.Context, r *models.Room) error
	// ListActive returns copies of every active room (matchmaking, sweeps).
	ListActive(ctx context.Context) ([]*models.Room, error)
}

// MemoryStore is the in-process Store used by tests and single-node runs.
// Rooms are kept as JSON snapshots so callers always get isolated copies.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*storedRoom
}

type storedRoom struct {
	data     []byte
	version  int64
	isActive bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*storedRoom)}
}

func (s *MemoryStore) Create(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rooms[r.Code]; exists {
		return ErrRoomExists
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	r.Version = 1
	s.rooms[r.Code] = &storedRoom{data: data, version: 1, isActive: r.IsActive}
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.rooms[code]
	if !ok || !sr.isActive {
		return nil, ErrRoomNotFound
	}
	var r models.Room
	if err := json.Unmarshal(sr.data, &r); err != nil {
		return nil, err
	}
	r.Version = sr.version
	return &r, nil
}

func (s *MemoryStore) Save(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.rooms[r.Code]
	if !ok {
		return ErrRoomNotFound
	}
	if sr.version != r.Version {
		return ErrVersionConflict
	}
	r.UpdatedAt = time.Now()
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	sr.data = data
	sr.version++
	sr.isActive = r.IsActive
	r.Version = sr.version
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Room
	for _, sr := range s.rooms {
		if !sr.isActive {
			continue
		}
		var r models.Room
		if err := json.Unmarshal(sr.data, &r); err != nil {
			return nil, err
		}
		r.Version = sr.version
		out = append(out, &r)
	}
	return out, nil
}
