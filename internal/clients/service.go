package clients

import (
	"context"
	"errors"

	"call-insights/internal/apperr"
	"call-insights/internal/pagination"
	"call-insights/pkg/logger"

	"github.com/google/uuid"
)

// Service is the read side of the client aggregate. Writes happen only during call analysis.
type Service struct {
	reader Reader
}

func NewService(r Reader) *Service { return &Service{reader: r} }

func (s *Service) List(ctx context.Context, orgID int64, sort Sort, page pagination.Page) ([]Client, int, error) {
	items, total, err := s.reader.List(ctx, orgID, sort, page)
	if err != nil {
		logger.Op(ctx, "clients.list", "client").Error("list clients failed", "org_id", orgID, "err", err)
		return nil, 0, apperr.FromStore(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, orgID int64, id uuid.UUID) (Client, error) {
	c, err := s.reader.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return Client{}, apperr.NotFound(err)
	}
	if err != nil {
		logger.Op(ctx, "clients.get", "client").Error("get client failed", "org_id", orgID, "client_id", id, "err", err)
		return Client{}, apperr.FromStore(err)
	}
	return c, nil
}
