package authtoken

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"call-insights/internal/apperr"
	"call-insights/internal/audit"
	"call-insights/internal/pagination"
	"call-insights/pkg/b64u"
	"call-insights/pkg/logger"
	"call-insights/pkg/utils"

	"github.com/google/uuid"
)

// tokenBytes of entropy render as a 32 character hex token.
const tokenBytes = 16

// Cache is the cache-aside store for token resolution. *utils.RedisCache satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	store    Store
	cache    Cache
	ttl      time.Duration
	audit    *audit.Service
	newToken func() (string, error)
}

// NewService wires the store with an optional cache and audit trail; both may be nil.
func NewService(store Store, cache Cache, ttl time.Duration, auditSvc *audit.Service) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		ttl:      ttl,
		audit:    auditSvc,
		newToken: func() (string, error) { return b64u.RandomHex(tokenBytes) },
	}
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(err)
	}
	return apperr.FromStore(err)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (AuthToken, error) {
	tok, err := s.newToken()
	if err != nil {
		return AuthToken{}, apperr.Internal(err)
	}
	created, err := s.store.Create(ctx, AuthToken{ID: uuid.New(), Name: in.Name, Orgs: in.Orgs, Token: tok})
	if err != nil {
		return AuthToken{}, mapErr(err)
	}
	s.audit.Record(ctx, audit.Event{
		Type:     audit.EventAuthTokenCreated,
		TargetID: created.ID.String(),
		Metadata: audit.Meta(map[string]any{"name": created.Name, "orgs": created.Orgs}),
	})
	return created, nil
}

func (s *Service) List(ctx context.Context, page pagination.Page) ([]AuthToken, int, error) {
	items, total, err := s.store.List(ctx, page)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (AuthToken, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return AuthToken{}, mapErr(err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	tok, err := s.store.Delete(ctx, id)
	if err != nil {
		return mapErr(err)
	}
	s.evict(ctx, tok)
	s.audit.Record(ctx, audit.Event{Type: audit.EventAuthTokenDeleted, TargetID: id.String()})
	return nil
}

// DeleteMany removes every listed token and reports how many existed.
// Stores with BulkOps do it in one statement.
func (s *Service) DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if bulk, ok := s.store.Bulk(); ok {
		toks, err := bulk.DeleteMany(ctx, ids)
		if err != nil {
			return 0, mapErr(err)
		}
		s.evict(ctx, toks...)
		for _, id := range ids {
			s.audit.Record(ctx, audit.Event{Type: audit.EventAuthTokenDeleted, TargetID: id.String()})
		}
		return len(toks), nil
	}

	n := 0
	for _, id := range ids {
		err := s.Delete(ctx, id)
		if apperr.IsKind(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Revoke issues a fresh secret for the token; the previous one stops resolving immediately.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	tok, err := s.newToken()
	if err != nil {
		return apperr.Internal(err)
	}
	previous, err := s.store.Rotate(ctx, id, tok)
	if err != nil {
		return mapErr(err)
	}
	s.evict(ctx, previous)
	s.audit.Record(ctx, audit.Event{Type: audit.EventAuthTokenRevoked, TargetID: id.String()})
	return nil
}

// ResolveOrgs implements auth.TokenResolver.
func (s *Service) ResolveOrgs(ctx context.Context, token string) ([]int64, error) {
	key := cacheKey(token)
	if s.cache != nil {
		var orgs []int64
		err := s.cache.GetJSON(ctx, key, &orgs)
		switch {
		case err == nil:
			return orgs, nil
		case !errors.Is(err, utils.ErrCacheMiss):
			logger.Op(ctx, "authtoken.resolve", "auth_token").Warn("token cache read failed", "err", err)
		}
	}

	t, err := s.store.FindByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Unauthorized(err)
	}
	if err != nil {
		return nil, apperr.FromStore(err)
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, t.Orgs, s.ttl); err != nil {
			logger.Op(ctx, "authtoken.resolve", "auth_token").Warn("token cache write failed", "err", err)
		}
	}
	return t.Orgs, nil
}

func (s *Service) evict(ctx context.Context, tokens ...string) {
	if s.cache == nil || len(tokens) == 0 {
		return
	}
	keys := make([]string, len(tokens))
	for i, t := range tokens {
		keys[i] = cacheKey(t)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.Op(ctx, "authtoken.evict", "auth_token").Warn("token cache eviction failed", "err", err)
	}
}

// cacheKey keeps raw secrets out of Redis key space.
func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
