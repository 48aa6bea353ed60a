package authtoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/audit"
	"call-insights/internal/pagination"
	"call-insights/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]int64
	sets    int
	deletes []string
	failGet error
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]int64{}} }

func (f *fakeCache) GetJSON(_ context.Context, key string, dst any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return f.failGet
	}
	v, ok := f.data[key]
	if !ok {
		return utils.ErrCacheMiss
	}
	*(dst.(*[]int64)) = append([]int64(nil), v...)
	return nil
}

func (f *fakeCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = v.([]int64)
	f.sets++
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		f.deletes = append(f.deletes, k)
	}
	return nil
}

// countingStore counts token lookups on top of MemoryStore.
type countingStore struct {
	*MemoryStore
	finds int
}

func (c *countingStore) FindByToken(ctx context.Context, token string) (AuthToken, error) {
	c.finds++
	return c.MemoryStore.FindByToken(ctx, token)
}

func newService(t *testing.T) (*Service, *countingStore, *fakeCache, *audit.MemoryRepo) {
	t.Helper()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	cache := newFakeCache()
	events := audit.NewMemoryRepo()
	return NewService(store, cache, time.Minute, audit.NewService(events)), store, cache, events
}

func TestCreate_IssuesHexTokenAndAudits(t *testing.T) {
	svc, _, _, events := newService(t)

	tok, err := svc.Create(context.Background(), CreateInput{Name: "crm", Orgs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Len(t, tok.Token, 32)
	assert.Regexp(t, "^[0-9a-f]{32}$", tok.Token)
	assert.NotEqual(t, uuid.Nil, tok.ID)

	evs := events.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventAuthTokenCreated, evs[0].Type)
	assert.Equal(t, tok.ID.String(), evs[0].TargetID)
}

func TestResolveOrgs_CachesAfterFirstLookup(t *testing.T) {
	svc, store, cache, _ := newService(t)
	ctx := context.Background()
	tok, err := svc.Create(ctx, CreateInput{Name: "crm", Orgs: []int64{7}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		orgs, err := svc.ResolveOrgs(ctx, tok.Token)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, orgs)
	}
	assert.Equal(t, 1, store.finds)
	assert.Equal(t, 1, cache.sets)
	assert.NotContains(t, cache.data, tok.Token, "raw token must not be a cache key")
}

func TestResolveOrgs_UnknownTokenIsUnauthorized(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.ResolveOrgs(context.Background(), "nope")
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized), "got %v", err)
}

func TestResolveOrgs_CacheFailureFallsBackToStore(t *testing.T) {
	svc, store, cache, _ := newService(t)
	ctx := context.Background()
	tok, err := svc.Create(ctx, CreateInput{Name: "crm", Orgs: []int64{3}})
	require.NoError(t, err)

	cache.failGet = errors.New("connection refused")
	orgs, err := svc.ResolveOrgs(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, orgs)
	assert.Equal(t, 1, store.finds)
}

func TestRevoke_RotatesAndEvicts(t *testing.T) {
	svc, _, _, events := newService(t)
	ctx := context.Background()
	tok, err := svc.Create(ctx, CreateInput{Name: "crm", Orgs: []int64{1}})
	require.NoError(t, err)
	_, err = svc.ResolveOrgs(ctx, tok.Token)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, tok.ID))

	_, err = svc.ResolveOrgs(ctx, tok.Token)
	assert.True(t, apperr.IsKind(err, apperr.KindUnauthorized), "old token must stop resolving, got %v", err)

	fresh, err := svc.Get(ctx, tok.ID)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Token, fresh.Token)
	orgs, err := svc.ResolveOrgs(ctx, fresh.Token)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, orgs)

	evs := events.Events()
	assert.Equal(t, audit.EventAuthTokenRevoked, evs[len(evs)-1].Type)
}

func TestRevokeAndDelete_MissingIsNotFound(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()
	assert.True(t, apperr.IsKind(svc.Revoke(ctx, uuid.New()), apperr.KindNotFound))
	assert.True(t, apperr.IsKind(svc.Delete(ctx, uuid.New()), apperr.KindNotFound))
}

func TestDeleteMany_FallsBackWithoutBulkCapability(t *testing.T) {
	svc, _, cache, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateInput{Name: "a", Orgs: []int64{1}})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Name: "b", Orgs: []int64{1}})
	require.NoError(t, err)

	n, err := svc.DeleteMany(ctx, []uuid.UUID{a.ID, uuid.New(), b.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, cache.deletes, 2)

	_, total, err := svc.List(ctx, pagination.Page{Page: 1})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestList_PagesNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }
	svc := NewService(store, nil, 0, nil)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		_, err := svc.Create(ctx, CreateInput{Name: name, Orgs: []int64{1}})
		require.NoError(t, err)
	}

	limit := 2
	items, total, err := svc.List(ctx, pagination.Page{Page: 1, Limit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Name)

	items, _, err = svc.List(ctx, pagination.Page{Page: 2, Limit: &limit, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Name)
}
