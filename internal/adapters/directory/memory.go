package directory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/domain"
)

// MemoryStore keeps records in process. Used for dev mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.RoomID]domain.DirectoryRecord
	order   []domain.RoomID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.RoomID]domain.DirectoryRecord)}
}

func (s *MemoryStore) Create(_ context.Context, rec domain.DirectoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.RoomID]; ok {
		return fmt.Errorf("room %s: %w", rec.RoomID, core.ErrRoomExists)
	}
	s.records[rec.RoomID] = clone(rec)
	s.order = append(s.order, rec.RoomID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id domain.RoomID) (domain.DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.DirectoryRecord{}, fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	return clone(rec), nil
}

func (s *MemoryStore) AddPlayer(_ context.Context, id domain.RoomID, p domain.DirectoryPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	rec.Players = append(withoutPlayer(rec.Players, p.SessionID), p)
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) RemovePlayer(_ context.Context, id domain.RoomID, sid domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("room %s: %w", id, domain.ErrRoomNotFound)
	}
	rec.Players = withoutPlayer(rec.Players, sid)
	s.records[id] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	s.order = slices.DeleteFunc(s.order, func(x domain.RoomID) bool { return x == id })
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DirectoryRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.records[id]))
	}
	return out, nil
}

func withoutPlayer(players []domain.DirectoryPlayer, sid domain.SessionID) []domain.DirectoryPlayer {
	return slices.DeleteFunc(slices.Clone(players), func(p domain.DirectoryPlayer) bool {
		return p.SessionID == sid
	})
}

func clone(rec domain.DirectoryRecord) domain.DirectoryRecord {
	rec.Players = slices.Clone(rec.Players)
	if rec.Players == nil {
		rec.Players = []domain.DirectoryPlayer{}
	}
	return rec
}
