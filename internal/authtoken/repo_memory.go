package authtoken

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-insights/internal/pagination"

	"github.com/google/uuid"
)

// MemoryStore keeps tokens in process. Used by tests and local runs without Postgres.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]AuthToken
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: map[uuid.UUID]AuthToken{}, now: time.Now}
}

func (m *MemoryStore) Create(_ context.Context, t AuthToken) (AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = m.now().UTC()
	t.UpdatedAt = t.CreatedAt
	m.tokens[t.ID] = t
	return t, nil
}

func (m *MemoryStore) List(_ context.Context, page pagination.Page) ([]AuthToken, int, error) {
	m.mu.Lock()
	all := make([]AuthToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		all = append(all, t)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := len(all)
	start := int(min(page.Offset, int64(total)))
	end := total
	if page.Limit != nil && start+*page.Limit < end {
		end = start + *page.Limit
	}
	return all[start:end], total, nil
}

func (m *MemoryStore) Bulk() (BulkOps, bool) { return nil, false }

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return AuthToken{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) FindByToken(_ context.Context, token string) (AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return AuthToken{}, ErrNotFound
}

func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return "", ErrNotFound
	}
	delete(m.tokens, id)
	return t.Token, nil
}

func (m *MemoryStore) Rotate(_ context.Context, id uuid.UUID, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return "", ErrNotFound
	}
	previous := t.Token
	t.Token = token
	t.UpdatedAt = m.now().UTC()
	m.tokens[id] = t
	return previous, nil
}
