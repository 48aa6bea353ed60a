package calls

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"call-insights/internal/clients"
	"call-insights/internal/pagination"

	"github.com/google/uuid"
)

// MemoryStore keeps calls in process and folds analyses into a clients.MemoryStore.
// Aggregate units are serialised store-wide.
type MemoryStore struct {
	mu       sync.Mutex
	calls    map[uuid.UUID]Call
	byCallID map[int64]uuid.UUID
	clients  *clients.MemoryStore
	now      func() time.Time
}

func NewMemoryStore(cs *clients.MemoryStore) *MemoryStore {
	return &MemoryStore{
		calls:    map[uuid.UUID]Call{},
		byCallID: map[int64]uuid.UUID{},
		clients:  cs,
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, c Call) (Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCallID[c.CallID]; ok {
		return Call{}, ErrDuplicate
	}
	c.CreatedAt = m.now().UTC()
	c.UpdatedAt = c.CreatedAt
	m.calls[c.ID] = c
	m.byCallID[c.CallID] = c.ID
	return c, nil
}

func (m *MemoryStore) List(_ context.Context, orgID int64, s Sort, page pagination.Page) ([]Call, int, error) {
	m.mu.Lock()
	all := make([]Call, 0, len(m.calls))
	for _, c := range m.calls {
		if c.OrgID == orgID {
			all = append(all, c)
		}
	}
	m.mu.Unlock()

	asc := strings.EqualFold(s.Datetime, "asc")
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Datetime.Equal(all[j].Datetime) {
			return all[i].Datetime.Before(all[j].Datetime) == asc
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

func (m *MemoryStore) Get(_ context.Context, orgID int64, id uuid.UUID) (Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.calls[id]
	if !ok || c.OrgID != orgID {
		return Call{}, ErrNotFound
	}
	return c, nil
}

// ByCallID returns the call with the given external id.
func (m *MemoryStore) ByCallID(callID int64) (Call, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCallID[callID]
	if !ok {
		return Call{}, false
	}
	return m.calls[id], true
}

func (m *MemoryStore) Aggregate(ctx context.Context, fn AggregateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memAnalysisTx{store: m, clients: m.clients.Begin(), staged: map[uuid.UUID]Call{}}
	if err := fn(ctx, tx); err != nil {
		tx.clients.Rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.clients.Rollback()
		return err
	}
	for id, c := range tx.staged {
		m.calls[id] = c
	}
	tx.clients.Commit()
	return nil
}

type memAnalysisTx struct {
	store   *MemoryStore
	clients *clients.MemoryTx
	staged  map[uuid.UUID]Call
}

func (t *memAnalysisTx) Clients() clients.Writer { return t.clients }

func (t *memAnalysisTx) current(id uuid.UUID) (Call, bool) {
	if c, ok := t.staged[id]; ok {
		return c, true
	}
	c, ok := t.store.calls[id]
	return c, ok
}

func (t *memAnalysisTx) LockByCallID(_ context.Context, callID int64) (Call, error) {
	id, ok := t.store.byCallID[callID]
	if !ok {
		return Call{}, ErrNotFound
	}
	c, _ := t.current(id)
	return c, nil
}

func (t *memAnalysisTx) ApplyAnalysis(_ context.Context, id uuid.UUID, a Analysis, at time.Time) error {
	c, ok := t.current(id)
	if !ok {
		return ErrNotFound
	}
	if c.AnalyzedAt != nil {
		return ErrAlreadyAnalyzed
	}
	c.Analysis = a
	c.AnalyzedAt = &at
	c.UpdatedAt = at
	t.staged[id] = c
	return nil
}

func (t *memAnalysisTx) InsertDetails(_ context.Context, id uuid.UUID, d Details) error {
	c, ok := t.current(id)
	if !ok {
		return ErrNotFound
	}
	if c.ClientInfo != nil {
		return ErrDuplicate
	}
	ci, in, si := d.ClientInfo, d.Insights, d.Satisfaction
	c.ClientInfo, c.ClientInsightsInfo, c.SatisfactionInfo = &ci, &in, &si
	t.staged[id] = c
	return nil
}
