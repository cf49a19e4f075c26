package settings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps settings in process memory. It backs the service
// when no database is configured.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]Setting
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: map[string]Setting{}, now: time.Now}
}

func (m *MemoryRepository) Get(_ context.Context, key string) (*Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) Set(_ context.Context, key string, value bool) (*Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Setting{Key: key, Value: value, UpdatedAt: m.now().UTC()}
	m.rows[key] = s
	return &s, nil
}

func (m *MemoryRepository) List(_ context.Context) ([]Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Setting, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
