package clients

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"call-insights/internal/pagination"

	"github.com/google/uuid"
)

type phoneKey struct {
	org   int64
	phone string
}

type memRow struct {
	// lock is held by a unit of work from ResolveOrCreate until commit or rollback.
	lock sync.Mutex
	// mu guards c.
	mu sync.Mutex
	c  Client
}

// MemoryStore keeps clients in process. Writes go through MemoryTx and become
// visible on Commit; rows are serialised per client.
type MemoryStore struct {
	mu      sync.RWMutex
	rows    map[uuid.UUID]*memRow
	byPhone map[phoneKey]uuid.UUID
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:    map[uuid.UUID]*memRow{},
		byPhone: map[phoneKey]uuid.UUID{},
		now:     time.Now,
	}
}

func (m *MemoryStore) row(id uuid.UUID) *memRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rows[id]
}

func cloneClient(c Client) Client {
	out := c
	for _, a := range Attributes {
		if src := *c.Map(a); src != nil {
			*out.Map(a) = maps.Clone(src)
		}
	}
	out.Relatives = append([]Relative{}, c.Relatives...)
	return out
}

func (m *MemoryStore) snapshot(orgID int64) []Client {
	m.mu.RLock()
	rows := make([]*memRow, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, r)
	}
	m.mu.RUnlock()

	out := make([]Client, 0, len(rows))
	for _, r := range rows {
		r.mu.Lock()
		if r.c.OrgID == orgID {
			out = append(out, cloneClient(r.c))
		}
		r.mu.Unlock()
	}
	return out
}

func (m *MemoryStore) List(_ context.Context, orgID int64, s Sort, page pagination.Page) ([]Client, int, error) {
	all := m.snapshot(orgID)
	asc := strings.EqualFold(s.CreatedAt, "asc")
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt) == asc
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

func (m *MemoryStore) Get(_ context.Context, orgID int64, id uuid.UUID) (Client, error) {
	r := m.row(id)
	if r == nil {
		return Client{}, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c.OrgID != orgID {
		return Client{}, ErrNotFound
	}
	return cloneClient(r.c), nil
}

// Begin opens a unit of work. Exactly one of Commit or Rollback must follow.
func (m *MemoryStore) Begin() *MemoryTx {
	return &MemoryTx{
		store:   m,
		created: map[phoneKey]uuid.UUID{},
		held:    map[uuid.UUID]*memRow{},
	}
}

type increment struct {
	client uuid.UUID
	attr   Attribute
	value  string
}

// MemoryTx stages writes against a MemoryStore.
type MemoryTx struct {
	store     *MemoryStore
	created   map[phoneKey]uuid.UUID
	held      map[uuid.UUID]*memRow
	incs      []increment
	relatives []Relative
	done      bool
}

var _ Writer = (*MemoryTx)(nil)

func (tx *MemoryTx) ResolveOrCreate(_ context.Context, orgID int64, phone string) (uuid.UUID, error) {
	key := phoneKey{org: orgID, phone: phone}
	if id, ok := tx.created[key]; ok {
		return id, nil
	}
	tx.store.mu.RLock()
	id, ok := tx.store.byPhone[key]
	r := tx.store.rows[id]
	tx.store.mu.RUnlock()
	if ok {
		if _, held := tx.held[id]; !held {
			r.lock.Lock()
			tx.held[id] = r
		}
		return id, nil
	}
	id = uuid.New()
	tx.created[key] = id
	return id, nil
}

func (tx *MemoryTx) known(id uuid.UUID) bool {
	if _, ok := tx.held[id]; ok {
		return true
	}
	for _, c := range tx.created {
		if c == id {
			return true
		}
	}
	return false
}

func (tx *MemoryTx) MergeIncrement(_ context.Context, clientID uuid.UUID, attr Attribute, value string) error {
	if _, ok := attr.Column(); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, attr)
	}
	if !tx.known(clientID) {
		return ErrNotFound
	}
	tx.incs = append(tx.incs, increment{client: clientID, attr: attr, value: value})
	return nil
}

func (tx *MemoryTx) InsertRelative(_ context.Context, clientID uuid.UUID, r Relative) error {
	if !tx.known(clientID) {
		return ErrNotFound
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.ClientID = clientID
	tx.relatives = append(tx.relatives, r)
	return nil
}

// Commit applies the staged writes. A client created concurrently by another
// unit of work for the same phone absorbs this one's writes.
func (tx *MemoryTx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	s := tx.store
	now := s.now().UTC()

	remap := map[uuid.UUID]uuid.UUID{}
	s.mu.Lock()
	for key, id := range tx.created {
		if existing, ok := s.byPhone[key]; ok {
			remap[id] = existing
			continue
		}
		s.rows[id] = &memRow{c: Client{ID: id, OrgID: key.org, PhoneNumber: key.phone, CreatedAt: now, UpdatedAt: now}}
		s.byPhone[key] = id
	}
	s.mu.Unlock()

	target := func(id uuid.UUID) uuid.UUID {
		if to, ok := remap[id]; ok {
			return to
		}
		return id
	}
	for _, inc := range tx.incs {
		tx.apply(target(inc.client), func(c *Client) {
			fm := c.Map(inc.attr)
			if *fm == nil {
				*fm = FrequencyMap{}
			}
			(*fm)[inc.value]++
			c.UpdatedAt = now
		})
	}
	for _, r := range tx.relatives {
		r.ClientID = target(r.ClientID)
		r.CreatedAt, r.UpdatedAt = now, now
		tx.apply(r.ClientID, func(c *Client) { c.Relatives = append(c.Relatives, r) })
	}
	tx.release()
}

func (tx *MemoryTx) apply(id uuid.UUID, fn func(*Client)) {
	r, held := tx.held[id]
	if !held {
		r = tx.store.row(id)
		if r == nil {
			return
		}
		r.lock.Lock()
		defer r.lock.Unlock()
	}
	r.mu.Lock()
	fn(&r.c)
	r.mu.Unlock()
}

// Rollback discards the staged writes.
func (tx *MemoryTx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.release()
}

func (tx *MemoryTx) release() {
	for id, r := range tx.held {
		r.lock.Unlock()
		delete(tx.held, id)
	}
}
