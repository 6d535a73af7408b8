package coach

import (
	"context"
	"sort"
	"sync"

	"github.com/kapu/chess-coach-go/internal/domain"
)

// memrepo is a development-only in-memory repository used when no database
// is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID     int64
	byUUID     map[string]*domain.CoachSession
	insertions []*domain.CoachSession
}

func NewMemoryRepository() Repository {
	return &memrepo{byUUID: make(map[string]*domain.CoachSession)}
}

func (m *memrepo) InsertSession(_ context.Context, session *domain.CoachSession) (int64, error) {
	if session == nil {
		return 0, ErrDuplicateSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUUID[session.SessionUUID]; exists {
		return 0, ErrDuplicateSession
	}

	m.nextID++
	stored := *session
	stored.ID = m.nextID
	m.byUUID[stored.SessionUUID] = &stored
	m.insertions = append(m.insertions, &stored)
	return stored.ID, nil
}

func (m *memrepo) RecentSessions(_ context.Context, limit int) ([]*domain.CoachSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := append([]*domain.CoachSession(nil), m.insertions...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]*domain.CoachSession, len(items))
	for i, s := range items {
		copied := *s
		out[i] = &copied
	}
	return out, nil
}
